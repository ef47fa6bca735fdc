package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/syssam/dql"
	"github.com/syssam/dql/dialect"
	"github.com/syssam/dql/schema"
)

// KeyLoader executes the record-limiting subquery for dialects that cannot
// nest it, and returns the selected primary keys. *sql.Driver implements it.
type KeyLoader interface {
	LoadKeys(ctx context.Context, query string, args []any) ([]any, error)
}

// Option configures a Query.
type Option func(*Query)

// WithKeyLoader sets the loader used by dialects whose record-limiting
// subquery runs ahead of the main statement (MySQL).
func WithKeyLoader(l KeyLoader) Option {
	return func(q *Query) {
		q.loader = l
	}
}

// Query compiles one DQL statement to SQL.
//
// A Query is filled either from a DQL string with Parse, or with the builder
// methods, which record the first error and return the Query for chaining:
//
//	q := query.New(registry, dialect.NewSQLite()).
//	    Select("u.name", "p.phonenumber").
//	    From("User u").
//	    LeftJoin("u.Phonenumber p").
//	    Where("u.name LIKE ?", "A%").
//	    Limit(10)
//	c, err := q.Compile(ctx)
//
// Clauses are parsed when the statement is first compiled and the result is
// kept until the Query is modified again. A Query is not safe for concurrent use.
type Query struct {
	resolver schema.Resolver
	dialect  dialect.Dialect
	loader   KeyLoader

	kind     Kind
	distinct bool
	parts    [numClauses][]string
	params   [numClauses][][]any
	err      error

	// inherit is the alias scope of the enclosing statement, set on subqueries.
	inherit *scope
	state   *state
}

// New returns an empty SELECT query resolving components with r and
// rendering SQL for d.
func New(r schema.Resolver, d dialect.Dialect, opts ...Option) *Query {
	q := &Query{resolver: r, dialect: d}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Compiled is a compiled statement.
type Compiled struct {
	SQL  string `msgpack:"sql"`
	Args []any  `msgpack:"args"`
	// Aggregates maps the aliases of computed select entries to their
	// column names in the result set.
	Aggregates map[string]string `msgpack:"aggregates"`
	// LimitSubquery is set when LIMIT/OFFSET was moved into a subquery on
	// the root primary key.
	LimitSubquery bool `msgpack:"limit_subquery"`
	// Binds holds, for every entry of Args, the index of the Compile
	// argument it binds, or -1 for a value given to a builder method.
	Binds []int `msgpack:"binds"`
}

// Kind returns the statement kind.
func (q *Query) Kind() Kind { return q.kind }

// Dialect returns the dialect the query renders SQL for.
func (q *Query) Dialect() dialect.Dialect { return q.dialect }

// Err returns the first error recorded by a builder method.
func (q *Query) Err() error { return q.err }

// Parse replaces the query with the DQL statement and parses it.
func (q *Query) Parse(stmt string) error {
	q.reset()
	if err := q.split(stmt); err != nil {
		q.err = err
		return err
	}
	_, err := q.prepare()
	return err
}

// Select sets the select list.
func (q *Query) Select(selects ...string) *Query {
	q.kind = KindSelect
	return q.set(ClauseSelect, strings.Join(selects, ", "))
}

// AddSelect appends entries to the select list.
func (q *Query) AddSelect(selects ...string) *Query {
	return q.add(ClauseSelect, strings.Join(selects, ", "))
}

// Distinct sets whether the statement selects distinct rows.
func (q *Query) Distinct(distinct bool) *Query {
	q.distinct = distinct
	q.state = nil
	return q
}

// From sets the root component path, dropping joins added before.
func (q *Query) From(path string) *Query {
	return q.set(ClauseFrom, path)
}

// LeftJoin joins a relation path. args bind the placeholders of its ON condition.
func (q *Query) LeftJoin(path string, args ...any) *Query {
	return q.add(ClauseFrom, "LEFT JOIN "+path, args...)
}

// InnerJoin joins a relation path that must match.
func (q *Query) InnerJoin(path string, args ...any) *Query {
	return q.add(ClauseFrom, "INNER JOIN "+path, args...)
}

// Update turns the query into an UPDATE of the component.
func (q *Query) Update(path string) *Query {
	q.kind = KindUpdate
	return q.set(ClauseFrom, path)
}

// Delete turns the query into a DELETE.
func (q *Query) Delete() *Query {
	q.kind = KindDelete
	q.state = nil
	return q
}

// Set appends an assignment of an UPDATE statement.
func (q *Query) Set(assignment string, args ...any) *Query {
	return q.add(ClauseSet, assignment, args...)
}

// Where sets the WHERE condition.
func (q *Query) Where(cond string, args ...any) *Query {
	return q.set(ClauseWhere, cond, args...)
}

// AddWhere appends a condition ANDed to the WHERE clause.
func (q *Query) AddWhere(cond string, args ...any) *Query {
	return q.add(ClauseWhere, cond, args...)
}

// WhereIn appends "expr IN (?, ...)" with one placeholder per value.
// With no values the condition matches nothing.
func (q *Query) WhereIn(expr string, values ...any) *Query {
	if len(values) == 0 {
		return q.add(ClauseWhere, "1 = 0")
	}
	return q.add(ClauseWhere, expr+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")+")", values...)
}

// GroupBy appends GROUP BY expressions.
func (q *Query) GroupBy(groupBy ...string) *Query {
	return q.add(ClauseGroupBy, strings.Join(groupBy, ", "))
}

// Having sets the HAVING condition.
func (q *Query) Having(cond string, args ...any) *Query {
	return q.set(ClauseHaving, cond, args...)
}

// AddHaving appends a condition ANDed to the HAVING clause.
func (q *Query) AddHaving(cond string, args ...any) *Query {
	return q.add(ClauseHaving, cond, args...)
}

// OrderBy sets the ORDER BY list.
func (q *Query) OrderBy(orderBy ...string) *Query {
	return q.set(ClauseOrderBy, strings.Join(orderBy, ", "))
}

// AddOrderBy appends to the ORDER BY list.
func (q *Query) AddOrderBy(orderBy ...string) *Query {
	return q.add(ClauseOrderBy, strings.Join(orderBy, ", "))
}

// Limit sets the maximum number of root records (or rows, see
// schema.QueryLimit) to return. Zero removes the limit.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		return q.fail(dql.NewSyntaxError(strconv.Itoa(n), "negative LIMIT"))
	}
	return q.set(ClauseLimit, strconv.Itoa(n))
}

// Offset sets the number of root records (or rows) to skip.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail(dql.NewSyntaxError(strconv.Itoa(n), "negative OFFSET"))
	}
	return q.set(ClauseOffset, strconv.Itoa(n))
}

// SQL compiles the statement and returns its SQL text.
func (q *Query) SQL() (string, error) {
	c, err := q.Compile(context.Background())
	if err != nil {
		return "", err
	}
	return c.SQL, nil
}

// Compile compiles the statement. args bind, in order of appearance, the
// placeholders no builder method gave a value to; Args lists the values in
// the order the placeholders appear in the SQL. ctx is used only when the
// record-limiting subquery must be executed.
func (q *Query) Compile(ctx context.Context, args ...any) (*Compiled, error) {
	s, err := q.prepare()
	if err != nil {
		return nil, err
	}
	c, err := s.assemble(ctx, args)
	if err != nil {
		return nil, err
	}
	c.SQL, c.Args, c.Binds = s.bindArgs(c.SQL, args, true)
	return c, nil
}

// CountSQL returns the statement counting the distinct root records the
// query matches.
func (q *Query) CountSQL() (string, error) {
	c, err := q.CompileCount()
	if err != nil {
		return "", err
	}
	return c.SQL, nil
}

// CompileCount compiles the count statement of the query.
func (q *Query) CompileCount(args ...any) (*Compiled, error) {
	s, err := q.prepare()
	if err != nil {
		return nil, err
	}
	c, err := s.count()
	if err != nil {
		return nil, err
	}
	c.SQL, c.Args, c.Binds = s.bindArgs(c.SQL, args, true)
	return c, nil
}

func (q *Query) reset() {
	q.kind = KindSelect
	q.distinct = false
	q.parts = [numClauses][]string{}
	q.params = [numClauses][][]any{}
	q.err = nil
	q.state = nil
}

func (q *Query) set(k ClauseKind, fragment string, args ...any) *Query {
	q.parts[k] = nil
	q.params[k] = nil
	return q.add(k, fragment, args...)
}

func (q *Query) add(k ClauseKind, fragment string, args ...any) *Query {
	q.state = nil
	if fragment = strings.TrimSpace(fragment); fragment == "" {
		return q
	}
	q.parts[k] = append(q.parts[k], fragment)
	q.params[k] = append(q.params[k], args)
	return q
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// whitespace separates the tokens of a DQL statement.
var whitespace = []string{" ", "\t", "\n", "\r"}

// split distributes the tokens of a DQL statement into clause buckets.
func (q *Query) split(stmt string) error {
	if err := checkBalanced(stmt); err != nil {
		return err
	}
	tokens := termExplode(stmt, whitespace...)
	if len(tokens) == 0 {
		return dql.ErrEmptyQuery
	}
	var (
		cur     ClauseKind
		started bool
		seen    [numClauses]bool
		buckets [numClauses][]string
	)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		lower := strings.ToLower(tok)
		kw, ok := keywords[lower]
		if ok && (lower == "group" || lower == "order") {
			ok = i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "by")
		}
		if !ok {
			if !started {
				return dql.NewSyntaxError(stmt, "unexpected %q at the start of the statement", tok)
			}
			buckets[cur] = append(buckets[cur], tok)
			continue
		}
		// DELETE FROM and UPDATE carry the path in the FROM bucket.
		if lower == "from" && started && cur == ClauseFrom && len(buckets[ClauseFrom]) == 0 {
			continue
		}
		if kw.stmt {
			if started {
				return dql.NewSyntaxError(stmt, "unexpected %s", strings.ToUpper(tok))
			}
			q.kind = kw.kind
		}
		if seen[kw.clause] {
			return dql.NewSyntaxError(stmt, "%s clause given twice", kw.clause)
		}
		seen[kw.clause], cur, started = true, kw.clause, true
		if lower == "group" || lower == "order" {
			i++
		}
	}
	for k, toks := range buckets {
		if len(toks) > 0 {
			q.parts[k] = []string{strings.Join(toks, " ")}
		} else if seen[k] {
			return dql.NewSyntaxError(stmt, "empty %s clause", ClauseKind(k))
		}
	}
	return nil
}

// prepare parses the clause buckets into a fresh compilation state, in
// ClauseKind order.
func (q *Query) prepare() (*state, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.state != nil {
		return q.state, nil
	}
	if q.kind == KindInsert || q.kind == KindCreate {
		return nil, dql.NewSyntaxError("", "%s statements are not supported", q.kind)
	}
	s := newState(q)
	for k := range numClauses {
		for i, fragment := range q.parts[k] {
			if err := checkBalanced(fragment); err != nil {
				return nil, err
			}
			var bound []any
			if i < len(q.params[k]) {
				bound = q.params[k][i]
			}
			numbered, n := numberPlaceholders(fragment, len(s.slots))
			s.addSlots(n, bound)
			if err := parsers[k](s, numbered); err != nil {
				return nil, err
			}
		}
	}
	q.state = s
	return s, nil
}
