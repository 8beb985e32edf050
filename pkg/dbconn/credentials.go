package dbconn

import (
	"fmt"
	"net"
	"strconv"

	"github.com/go-ini/ini"
	"github.com/go-sql-driver/mysql"
)

const defaultMySQLPort = 3306

// optionFile holds the [client] section of a MySQL option file.
type optionFile struct {
	host, database, user string
	password             *string
	port                 int
}

// loadOptionFile reads the [client] section of the ini file at path.
// A file without that section yields empty settings.
func loadOptionFile(path string) (*optionFile, error) {
	creds, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	opts := &optionFile{}
	if !creds.HasSection("client") {
		return opts, nil
	}
	client := creds.Section("client")
	opts.host = client.Key("host").String()
	opts.database = client.Key("database").String()
	opts.user = client.Key("user").String()
	opts.port = client.Key("port").MustInt()
	if client.HasKey("password") {
		pw := client.Key("password").String()
		opts.password = &pw
	}
	return opts, nil
}

// MySQLDSNWithCredentials overlays the credentials of a MySQL option file
// onto dsn. Values already present in dsn win, so the file only fills gaps.
func MySQLDSNWithCredentials(dsn, credentialsFile string) (string, error) {
	if credentialsFile == "" {
		return dsn, nil
	}
	opts, err := loadOptionFile(credentialsFile)
	if err != nil {
		return "", fmt.Errorf("could not read credentials file %s: %w", credentialsFile, err)
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	if cfg.User == "" {
		cfg.User = opts.user
	}
	if cfg.Passwd == "" && opts.password != nil {
		cfg.Passwd = *opts.password
	}
	if cfg.DBName == "" {
		cfg.DBName = opts.database
	}
	// ParseDSN fills in 127.0.0.1:3306 when the address is absent.
	if opts.host != "" && cfg.Addr == "127.0.0.1:3306" {
		port := opts.port
		if port == 0 {
			port = defaultMySQLPort
		}
		cfg.Addr = net.JoinHostPort(opts.host, strconv.Itoa(port))
	}
	return cfg.FormatDSN(), nil
}
