package dialect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// ErrUnknownFunction is returned by Dialect.Function for names outside the
// portable function table.
var ErrUnknownFunction = errors.New("dialect: unknown function")

// Dialect describes the SQL flavour a statement is compiled for.
//
// Besides identifier quoting and LIMIT/OFFSET syntax, a dialect decides how
// the record-limiting subquery is embedded into the outer statement:
//
//   - nested directly inside "pk IN (...)" (SQLite),
//   - wrapped once more so ORDER BY columns may appear in its select list (Postgres),
//   - executed ahead of the main statement and inlined as a key list (MySQL,
//     which cannot use LIMIT inside an IN subquery).
type Dialect interface {
	// Name returns the dialect name, one of MySQL, SQLite or Postgres.
	Name() string

	// QuoteIdentifier quotes a table or column name if quoting is enabled.
	QuoteIdentifier(name string) string

	// ModifyLimitQuery appends the LIMIT/OFFSET clause to query.
	// Non-positive values mean "not set".
	ModifyLimitQuery(query string, limit, offset int) string

	// Boolean renders a boolean literal.
	Boolean(v bool) string

	// Literal renders a scalar value as an SQL literal.
	Literal(v any) string

	// RegexpOperator returns the regular expression match operator.
	RegexpOperator() string

	// Function renders a call of a portable function.
	Function(name string, distinct bool, args ...string) (string, error)

	// LimitSubqueryColumns returns the extra select-list entries the
	// record-limiting subquery needs besides the primary key.
	LimitSubqueryColumns(pk string, orderBy []string) []string

	// WrapLimitSubquery returns the SQL placed inside "pk IN (...)".
	// identifier is the bare primary key column name.
	WrapLimitSubquery(subquery, identifier string) string

	// EagerLimitSubquery reports whether the record-limiting subquery must be
	// executed before the main statement and its keys inlined.
	EagerLimitSubquery() bool
}

// Option configures a Dialect.
type Option func(*config)

type config struct {
	quote bool
}

// WithQuotedIdentifiers enables identifier quoting. Identifiers are emitted
// as-is by default.
func WithQuotedIdentifiers() Option {
	return func(c *config) {
		c.quote = true
	}
}

// Open returns the Dialect registered under the given name.
func Open(name string, opts ...Option) (Dialect, error) {
	switch name {
	case Postgres, "postgresql", "pgx":
		return NewPostgres(opts...), nil
	case MySQL:
		return NewMySQL(opts...), nil
	case SQLite, "sqlite":
		return NewSQLite(opts...), nil
	default:
		return nil, fmt.Errorf("dialect: unsupported dialect %q", name)
	}
}

// Names returns the names accepted by Open, canonical names first.
func Names() []string {
	return []string{Postgres, MySQL, SQLite}
}

// Driver is the interface that wraps the Query method used to execute the
// record-limiting key subquery.
type Driver interface {
	ExecQuerier
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// ExecQuerier wraps the Query method.
type ExecQuerier interface {
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v.
	Query(ctx context.Context, query string, args, v any) error
}

// base holds the behavior shared by all dialects.
type base struct {
	config
	name    string
	open    byte
	close   byte
	funcs   map[string]renderFunc
	boolean [2]string
}

func newBase(name string, open, close byte, opts []Option) base {
	b := base{name: name, open: open, close: close}
	for _, opt := range opts {
		opt(&b.config)
	}
	return b
}

func (b base) Name() string { return b.name }

func (b base) QuoteIdentifier(name string) string {
	if !b.quote || name == "" {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		p = strings.ReplaceAll(p, string(b.close), string(b.close)+string(b.close))
		parts[i] = string(b.open) + p + string(b.close)
	}
	return strings.Join(parts, ".")
}

func (b base) ModifyLimitQuery(query string, limit, offset int) string {
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	if offset > 0 {
		query += " OFFSET " + strconv.Itoa(offset)
	}
	return query
}

func (b base) Boolean(v bool) string {
	if v {
		return b.boolean[1]
	}
	return b.boolean[0]
}

func (b base) Literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return b.Boolean(v)
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []byte:
		return quoteString(string(v), false)
	case time.Time:
		return quoteString(v.UTC().Format("2006-01-02 15:04:05"), false)
	case fmt.Stringer:
		return quoteString(v.String(), false)
	default:
		return quoteString(fmt.Sprint(v), false)
	}
}

func (b base) RegexpOperator() string { return "REGEXP" }

func (b base) LimitSubqueryColumns(string, []string) []string { return nil }

func (b base) WrapLimitSubquery(subquery, _ string) string { return subquery }

func (b base) EagerLimitSubquery() bool { return false }

// quoteString quotes a string literal by doubling single quotes.
// If backslash is set, backslashes are escaped as well.
func quoteString(s string, backslash bool) string {
	if backslash && strings.Contains(s, `\`) {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
