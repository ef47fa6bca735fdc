package dialect

import "strconv"

type sqlite struct {
	base
}

// NewSQLite returns the SQLite dialect.
func NewSQLite(opts ...Option) Dialect {
	d := &sqlite{base: newBase(SQLite, '"', '"', opts)}
	d.boolean = [2]string{"0", "1"}
	d.funcs = map[string]renderFunc{
		"CONCAT":    infix("||"),
		"MOD":       infix("%"),
		"SUBSTRING": call("SUBSTR"),
		"NOW":       constant("CURRENT_TIMESTAMP"),
	}
	return d
}

func (d *sqlite) ModifyLimitQuery(query string, limit, offset int) string {
	switch {
	case limit > 0:
		query += " LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		query += " LIMIT -1"
	}
	if offset > 0 {
		query += " OFFSET " + strconv.Itoa(offset)
	}
	return query
}
