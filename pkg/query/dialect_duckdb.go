package query

// DuckDB renders for DuckDB, typically used as the local destination with
// the remote source attached through the postgres extension.
type DuckDB struct{}

var _ Dialect = (*DuckDB)(nil)

func (d *DuckDB) Name() string {
	return "duckdb"
}

func (d *DuckDB) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (d *DuckDB) Placeholder(int) string {
	return "?"
}

func (d *DuckDB) Materialization() MaterializeStyle {
	return MaterializeKeyword
}

func (d *DuckDB) MaterializeHint(string) string {
	return ""
}

func (d *DuckDB) UpdateStyle() UpdateStyle {
	return UpdateFrom
}

func (d *DuckDB) InsertWithPlacement() WithPlacement {
	return WithBeforeInsert
}

// DuckDB has no fixed limit.
func (d *DuckDB) MaxParams() int {
	return 65535
}
