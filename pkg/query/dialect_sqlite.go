package query

// SQLite renders for SQLite 3.35 and later (MATERIALIZED CTEs, UPDATE FROM
// and row values are all required).
type SQLite struct{}

var _ Dialect = (*SQLite)(nil)

func (d *SQLite) Name() string {
	return "sqlite"
}

func (d *SQLite) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (d *SQLite) Placeholder(int) string {
	return "?"
}

func (d *SQLite) Materialization() MaterializeStyle {
	return MaterializeKeyword
}

func (d *SQLite) MaterializeHint(string) string {
	return ""
}

func (d *SQLite) UpdateStyle() UpdateStyle {
	return UpdateFrom
}

func (d *SQLite) InsertWithPlacement() WithPlacement {
	return WithBeforeInsert
}

// SQLITE_MAX_VARIABLE_NUMBER since 3.32.
func (d *SQLite) MaxParams() int {
	return 32766
}
