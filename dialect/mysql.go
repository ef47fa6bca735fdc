package dialect

import "strconv"

// maxRows is the LIMIT used by MySQL when only an OFFSET was given.
const maxRows = "18446744073709551615"

type mysql struct {
	base
}

// NewMySQL returns the MySQL dialect.
func NewMySQL(opts ...Option) Dialect {
	d := &mysql{base: newBase(MySQL, '`', '`', opts)}
	d.boolean = [2]string{"0", "1"}
	d.funcs = map[string]renderFunc{
		"RANDOM": constant("RAND()"),
	}
	return d
}

func (d *mysql) ModifyLimitQuery(query string, limit, offset int) string {
	switch {
	case limit > 0:
		query += " LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		query += " LIMIT " + maxRows
	}
	if offset > 0 {
		query += " OFFSET " + strconv.Itoa(offset)
	}
	return query
}

func (d *mysql) Literal(v any) string {
	switch v := v.(type) {
	case string:
		return quoteString(v, true)
	case []byte:
		return quoteString(string(v), true)
	default:
		return d.base.Literal(v)
	}
}

func (d *mysql) RegexpOperator() string { return "RLIKE" }

// EagerLimitSubquery reports true: MySQL does not support LIMIT inside an IN subquery.
func (d *mysql) EagerLimitSubquery() bool { return true }
