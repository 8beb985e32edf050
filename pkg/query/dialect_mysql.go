package query

// MySQL renders for MySQL 8.0.22 and later. MySQL has no MATERIALIZED
// keyword; the NO_MERGE hint on the query block reading the CTE stops the
// optimizer from merging it into the outer query.
type MySQL struct{}

var _ Dialect = (*MySQL)(nil)

func (d *MySQL) Name() string {
	return "mysql"
}

func (d *MySQL) QuoteIdentifier(name string) string {
	return quoteWith(name, "`")
}

func (d *MySQL) Placeholder(int) string {
	return "?"
}

func (d *MySQL) Materialization() MaterializeStyle {
	return MaterializeHint
}

func (d *MySQL) MaterializeHint(quotedName string) string {
	return "/*+ NO_MERGE(" + quotedName + ") */"
}

func (d *MySQL) UpdateStyle() UpdateStyle {
	return UpdateMultiTable
}

// MySQL does not accept WITH in front of INSERT.
func (d *MySQL) InsertWithPlacement() WithPlacement {
	return WithInsideSelect
}

// The prepared statement protocol counts parameters in 16 bits.
func (d *MySQL) MaxParams() int {
	return 65535
}
