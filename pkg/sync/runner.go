package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/block/keysync/pkg/dbconn"
	"github.com/block/keysync/pkg/metrics"
	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/reconcile"
	"github.com/block/keysync/pkg/table"
	"github.com/block/keysync/pkg/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes sync cycles for every configured table pair.
type Runner struct {
	config   *Config
	dbConfig *dbconn.DBConfig

	dest        *sql.DB
	destType    TargetType
	dialect     query.Dialect
	destCatalog table.Catalog

	// source is nil when source tables are described through the destination.
	source        *sql.DB
	sourceCatalog table.Catalog

	metricsSink metrics.Sink
	logger      *slog.Logger
}

// NewRunner creates a runner for a validated configuration.
// Call Open before running cycles.
func NewRunner(config *Config) (*Runner, error) {
	destType := ParseTargetType(config.Sync.Destination.Type)
	if destType == TargetTypeUnknown {
		return nil, fmt.Errorf("unsupported destination type: %s", config.Sync.Destination.Type)
	}
	dialect, err := query.DialectFor(destType.String())
	if err != nil {
		return nil, err
	}
	destCatalog, err := table.CatalogFor(destType.String())
	if err != nil {
		return nil, err
	}
	dbConfig := dbconn.NewDBConfig()
	dbConfig.MaxRetries = config.Sync.Performance.MaxRetries
	if threads := config.Sync.Performance.Threads; threads > dbConfig.MaxOpenConnections {
		dbConfig.MaxOpenConnections = threads
	}
	return &Runner{
		config:      config,
		dbConfig:    dbConfig,
		destType:    destType,
		dialect:     dialect,
		destCatalog: destCatalog,
		metricsSink: &metrics.NoopSink{},
		logger:      slog.Default(),
	}, nil
}

// SetLogger sets the logger for the runner
func (r *Runner) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// SetMetricsSink sets where per cycle metrics are sent.
func (r *Runner) SetMetricsSink(sink metrics.Sink) {
	r.metricsSink = sink
}

// Open connects to the destination, and to the source when it has its
// own DSN, and creates the history table if history is enabled.
func (r *Runner) Open(ctx context.Context) error {
	cfg := r.config.Sync
	destConfig := *r.dbConfig
	destConfig.InitStatements = cfg.Destination.Init
	var err error
	if r.dest, err = dbconn.New(ctx, r.destType.String(), cfg.Destination.DSN, &destConfig); err != nil {
		return fmt.Errorf("failed to connect to destination %s: %w", maskDSN(cfg.Destination.DSN), err)
	}
	r.logger.Info("connected to destination", "type", r.destType, "dsn", maskDSN(cfg.Destination.DSN))

	if cfg.Source.DSN != "" {
		sourceType := ParseTargetType(cfg.Source.Type)
		if r.sourceCatalog, err = table.CatalogFor(sourceType.String()); err != nil {
			return err
		}
		dsn := cfg.Source.DSN
		if cfg.Source.CredentialsFile != "" {
			if dsn, err = dbconn.MySQLDSNWithCredentials(dsn, cfg.Source.CredentialsFile); err != nil {
				return err
			}
		}
		if r.source, err = dbconn.New(ctx, sourceType.String(), dsn, r.dbConfig); err != nil {
			return fmt.Errorf("failed to connect to source %s: %w", maskDSN(dsn), err)
		}
		r.logger.Info("connected to source", "type", sourceType, "dsn", maskDSN(dsn))
	}

	if cfg.History.Enabled {
		if err := CreateHistoryTable(ctx, r.dest, r.dialect, cfg.History.Table); err != nil {
			return fmt.Errorf("failed to create history table: %w", err)
		}
	}
	return nil
}

// Destination returns the destination handle. It is nil before Open.
func (r *Runner) Destination() *sql.DB {
	return r.dest
}

// Run runs a cycle immediately and then once per interval until ctx is
// cancelled. A failed cycle is logged and does not stop the loop.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	r.logger.Info("starting keysync", "name", r.config.Sync.Name, "interval", interval, "tables", len(r.config.Sync.Tables))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("sync cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("stopping keysync", "name", r.config.Sync.Name)
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle for every table pair, at most
// performance.threads pairs at a time. A failing pair does not stop the
// others; the failures are joined in the returned error. The cycles are
// returned in configuration order.
func (r *Runner) RunOnce(ctx context.Context) ([]*Cycle, error) {
	if r.dest == nil {
		return nil, errors.New("runner is not open")
	}
	runID := uuid.NewString()
	tables := r.config.Sync.Tables
	cycles := make([]*Cycle, len(tables))
	errs := make([]error, len(tables))

	var g errgroup.Group
	g.SetLimit(r.config.Sync.Performance.Threads)
	for i := range tables {
		g.Go(func() error {
			cycles[i], errs[i] = r.syncTable(ctx, runID, &tables[i])
			return nil
		})
	}
	_ = g.Wait()
	return cycles, errors.Join(errs...)
}

func (r *Runner) syncTable(ctx context.Context, runID string, tbl *TableConfig) (*Cycle, error) {
	logger := r.logger.With("run_id", runID, "table", tbl.Name)
	cycle := &Cycle{
		RunID:     runID,
		SyncName:  r.config.Sync.Name,
		TableName: tbl.Name,
		StartedAt: time.Now(),
	}
	err := r.execute(ctx, tbl, cycle, logger)
	cycle.FinishedAt = time.Now()
	if err != nil {
		err = fmt.Errorf("table %s: %w", tbl.Name, err)
		cycle.Error = err.Error()
		logger.Error("sync failed", "error", err, "duration", cycle.Duration())
	} else {
		logger.Info("sync complete",
			"inserted", cycle.Inserted,
			"revived", cycle.Revived,
			"updated", cycle.Updated,
			"marked_deleted", cycle.MarkedDeleted,
			"duration", cycle.Duration(),
		)
	}
	if r.config.Sync.History.Enabled && ctx.Err() == nil {
		if herr := RecordCycle(ctx, r.dest, r.dialect, r.config.Sync.History.Table, cycle); herr != nil {
			logger.Error("failed to record history", "error", herr)
		}
	}
	r.sendMetrics(ctx, cycle, err != nil, logger)
	return cycle, err
}

// PlannedStep is one rendered statement of a table pair.
type PlannedStep struct {
	Table string
	Step  string
	SQL   string
}

// Plan describes every table pair and renders its statements in
// execution order without running them.
func (r *Runner) Plan(ctx context.Context) ([]PlannedStep, error) {
	if r.dest == nil {
		return nil, errors.New("runner is not open")
	}
	var out []PlannedStep
	for i := range r.config.Sync.Tables {
		tbl := &r.config.Sync.Tables[i]
		plan, err := r.buildPlan(ctx, tbl)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", tbl.Name, err)
		}
		for _, s := range plan.Steps() {
			c, err := query.Render(r.dialect, s.Statement)
			if err != nil {
				return nil, fmt.Errorf("table %s: failed to render %s: %w", tbl.Name, s.Name, err)
			}
			out = append(out, PlannedStep{Table: tbl.Name, Step: s.Name, SQL: c.SQL})
		}
	}
	return out, nil
}

func (r *Runner) buildPlan(ctx context.Context, tbl *TableConfig) (*reconcile.Plan, error) {
	src, dst, err := r.describe(ctx, tbl)
	if err != nil {
		return nil, err
	}
	return reconcile.BuildPlan(src, dst, r.planOptions(tbl)...)
}

func (r *Runner) execute(ctx context.Context, tbl *TableConfig, cycle *Cycle, logger *slog.Logger) error {
	plan, err := r.buildPlan(ctx, tbl)
	if err != nil {
		return err
	}
	for _, t := range []*table.TableInfo{plan.Source, plan.Destination} {
		if err := r.probeNullKeys(ctx, t); err != nil {
			return err
		}
	}
	steps := plan.Steps()
	compiled := make([]query.Compiled, len(steps))
	for i, s := range steps {
		if compiled[i], err = query.Render(r.dialect, s.Statement); err != nil {
			return fmt.Errorf("failed to render %s: %w", s.Name, err)
		}
		logger.Debug("rendered statement", "step", s.Name, "sql", compiled[i].SQL)
	}

	counts := make([]int64, len(steps))
	if tbl.InsertMode == InsertModeClient {
		err = dbconn.RetryableTx(ctx, r.dest, r.dbConfig, func(ctx context.Context, tx *sql.Tx) error {
			inserted, err := r.insertClientSide(ctx, tx, plan, tbl.BatchSize)
			if err != nil {
				return err
			}
			counts[0] = inserted
			for i := 1; i < len(steps); i++ {
				res, err := tx.ExecContext(ctx, compiled[i].SQL, compiled[i].Args...)
				if err != nil {
					return fmt.Errorf("%s failed: %w", steps[i].Name, err)
				}
				if counts[i], err = res.RowsAffected(); err != nil {
					return err
				}
			}
			return nil
		})
	} else {
		counts, err = dbconn.RetryableTransaction(ctx, r.dest, r.dbConfig, compiled...)
	}
	if err != nil {
		return err
	}
	for i, s := range steps {
		switch s.Name {
		case reconcile.StepInsert:
			cycle.Inserted = counts[i]
		case reconcile.StepRevive:
			cycle.Revived = counts[i]
		case reconcile.StepUpdate:
			cycle.Updated = counts[i]
		case reconcile.StepMarkDeleted:
			cycle.MarkedDeleted = counts[i]
		}
	}
	return nil
}

// describe loads both descriptors. A configured primary key replaces the
// source's declared one and its columns are treated as NOT NULL; the
// runtime probe enforces that.
func (r *Runner) describe(ctx context.Context, tbl *TableConfig) (*table.TableInfo, *table.TableInfo, error) {
	srcDB, srcCatalog := r.dest, r.destCatalog
	if r.source != nil {
		srcDB, srcCatalog = r.source, r.sourceCatalog
	}
	src := table.NewTableInfo(srcDB, tbl.SourceSchema, tbl.SourceTable)
	src.KeyColumns = tbl.PrimaryKey
	if err := src.SetInfo(ctx, srcCatalog); err != nil {
		return nil, nil, fmt.Errorf("failed to describe source: %w", err)
	}
	if len(tbl.PrimaryKey) > 0 {
		for i := range src.Columns {
			for _, key := range tbl.PrimaryKey {
				if src.Columns[i].Name == key {
					src.Columns[i].Nullable = false
				}
			}
		}
	}
	dst := table.NewTableInfo(r.dest, tbl.DestinationSchema, tbl.DestinationTable)
	if err := dst.SetInfo(ctx, r.destCatalog); err != nil {
		return nil, nil, fmt.Errorf("failed to describe destination: %w", err)
	}
	return src, dst, nil
}

func (r *Runner) planOptions(tbl *TableConfig) []reconcile.Option {
	var opts []reconcile.Option
	if tbl.TimestampColumn != "" {
		opts = append(opts, reconcile.WithTimestampColumn(tbl.TimestampColumn))
	}
	if tbl.DeletedColumn != "" {
		opts = append(opts, reconcile.WithDeletedColumn(tbl.DeletedColumn))
	}
	if tbl.Revive {
		opts = append(opts, reconcile.WithRevive())
	}
	return opts
}

// probeNullKeys runs on the destination, which reads both tables.
func (r *Runner) probeNullKeys(ctx context.Context, t *table.TableInfo) error {
	probe, err := reconcile.BuildNullKeyProbe(t)
	if err != nil {
		return err
	}
	c, err := query.Render(r.dialect, probe)
	if err != nil {
		return err
	}
	var n int64
	if err := r.dest.QueryRowContext(ctx, c.SQL, c.Args...).Scan(&n); err != nil {
		return fmt.Errorf("failed to probe %s for NULL keys: %w", t, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d rows in %s", reconcile.ErrNullKeys, n, t)
	}
	return nil
}

// insertClientSide reads the insert selection and writes it back in
// batches with bound parameters. The whole selection is read before the
// first write since not every driver can interleave a result set with
// writes on one connection.
func (r *Runner) insertClientSide(ctx context.Context, tx *sql.Tx, plan *reconcile.Plan, batchSize int) (int64, error) {
	sel, err := query.Render(r.dialect, plan.InsertSelect)
	if err != nil {
		return 0, err
	}
	rows, err := tx.QueryContext(ctx, sel.SQL, sel.Args...)
	if err != nil {
		return 0, fmt.Errorf("insert selection failed: %w", err)
	}
	defer utils.CloseAndLog(rows)
	width := len(plan.Insert.Columns)
	var pending [][]any
	for rows.Next() {
		vals := make([]any, width)
		ptrs := make([]any, width)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, err
		}
		pending = append(pending, vals)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	if capped := query.RowsPerBatch(r.dialect, width, batchSize); capped < batchSize {
		r.logger.Debug("batch size capped by parameter limit",
			"table", plan.Destination.String(), "batch_size", batchSize, "rows_per_batch", capped)
		batchSize = capped
	}
	var inserted int64
	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		c, err := query.Render(r.dialect, &query.InsertValues{
			Table:   plan.Insert.Table,
			Columns: plan.Insert.Columns,
			Rows:    pending[start:end],
		})
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, c.SQL, c.Args...)
		if err != nil {
			return 0, fmt.Errorf("insert batch failed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	return inserted, nil
}

func (r *Runner) sendMetrics(ctx context.Context, cycle *Cycle, failed bool, logger *slog.Logger) {
	m := &metrics.Metrics{Table: cycle.TableName}
	if failed {
		m.Values = []metrics.MetricValue{metrics.Counter(metrics.CycleFailuresMetricName, 1)}
	} else {
		m.Values = []metrics.MetricValue{
			metrics.Counter(metrics.RowsInsertedMetricName, float64(cycle.Inserted)),
			metrics.Counter(metrics.RowsRevivedMetricName, float64(cycle.Revived)),
			metrics.Counter(metrics.RowsUpdatedMetricName, float64(cycle.Updated)),
			metrics.Counter(metrics.RowsMarkedDeletedMetricName, float64(cycle.MarkedDeleted)),
			metrics.Gauge(metrics.CycleDurationMetricName, cycle.Duration().Seconds()),
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metrics.SinkTimeout)
	defer cancel()
	if err := r.metricsSink.Send(ctx, m); err != nil {
		logger.Error("failed to send metrics", "error", err)
	}
}

// Close closes the database handles.
func (r *Runner) Close() error {
	var errs []error
	for _, db := range []*sql.DB{r.source, r.dest} {
		if db != nil {
			errs = append(errs, db.Close())
		}
	}
	return errors.Join(errs...)
}

// maskDSN hides the password of a MySQL or URL style DSN for logging.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
		return dsn
	}
	if cfg, err := mysql.ParseDSN(dsn); err == nil && cfg.Passwd != "" {
		cfg.Passwd = "***"
		return cfg.FormatDSN()
	}
	return dsn
}
