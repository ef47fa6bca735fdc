package dialect

import "strconv"

// subqueryAlias names the derived table wrapping the record-limiting subquery.
const subqueryAlias = "dql_subquery_alias"

type postgres struct {
	base
}

// NewPostgres returns the PostgreSQL dialect.
func NewPostgres(opts ...Option) Dialect {
	d := &postgres{base: newBase(Postgres, '"', '"', opts)}
	d.boolean = [2]string{"false", "true"}
	d.funcs = map[string]renderFunc{}
	return d
}

func (d *postgres) RegexpOperator() string { return "~" }

// LimitSubqueryColumns adds the ORDER BY expressions to the select list, as
// PostgreSQL requires them to appear in the select list of a SELECT DISTINCT.
func (d *postgres) LimitSubqueryColumns(pk string, orderBy []string) []string {
	var cols []string
	for _, expr := range orderBy {
		if expr == pk {
			continue
		}
		cols = append(cols, expr+" AS dql_order_"+strconv.Itoa(len(cols)))
	}
	return cols
}

func (d *postgres) WrapLimitSubquery(subquery, identifier string) string {
	return "SELECT " + subqueryAlias + "." + d.QuoteIdentifier(identifier) + " FROM (" + subquery + ") AS " + subqueryAlias
}
