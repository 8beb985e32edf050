// Package statement is a wrapper around the MySQL parser. It turns DDL into
// table descriptors for offline planning, and checks that rendered MySQL
// statements parse.
package statement

import (
	"errors"
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

var (
	ErrNotCreateTable = errors.New("not a CREATE TABLE statement")
	ErrNotSingle      = errors.New("expected exactly one statement")
)

// parseOne parses sql and requires it to hold a single statement.
func parseOne(sql string) (ast.StmtNode, error) {
	p := parser.New()
	stmtNodes, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQL: %w", err)
	}
	if len(stmtNodes) != 1 {
		return nil, fmt.Errorf("%w, got %d", ErrNotSingle, len(stmtNodes))
	}
	return stmtNodes[0], nil
}

// CheckMySQL returns an error unless sql is a single statement that the
// MySQL parser accepts. Optimizer hints it does not know are not errors.
func CheckMySQL(sql string) error {
	_, err := parseOne(sql)
	return err
}
