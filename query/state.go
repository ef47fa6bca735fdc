package query

import (
	"context"
	"maps"
	"strings"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema"
)

// scope is the alias state a subquery inherits from its enclosing statement.
type scope struct {
	aliases      *AliasHandler
	compAliases  map[string]string        // user alias -> component path
	tableAliases map[string]string        // component path -> table alias
	tables       map[string]*schema.Table // table alias -> table
}

func newScope() scope {
	return scope{
		aliases:      NewAliasHandler(),
		compAliases:  make(map[string]string),
		tableAliases: make(map[string]string),
		tables:       make(map[string]*schema.Table),
	}
}

func (sc *scope) clone() *scope {
	return &scope{
		aliases:      sc.aliases.Clone(),
		compAliases:  maps.Clone(sc.compAliases),
		tableAliases: maps.Clone(sc.tableAliases),
		tables:       maps.Clone(sc.tables),
	}
}

// SelectItem is one entry of the rendered select list.
type SelectItem struct {
	Expr  string
	Alias string
}

// String renders the entry.
func (i SelectItem) String() string {
	if i.Alias == "" {
		return i.Expr
	}
	return i.Expr + " AS " + i.Alias
}

type orderItem struct {
	expr string
	dir  string
	// aggregate is set when the item names a computed select entry.
	aggregate string
}

type aggregateAlias struct {
	column string // generated column alias
	expr   string
	// aliases are the table aliases the expression references.
	aliases []string
}

// state is the compilation context of one statement.
type state struct {
	q *Query
	scope

	kind       Kind
	distinct   bool
	isSubquery bool

	root       string // root table alias
	from       string
	tableOrder []string

	selects  []SelectItem
	joins    []*JoinClause
	sets     []string
	wheres   []string
	groupBys []string
	havings  []string
	orderBys []orderItem
	limit    int
	offset   int

	// slots are the placeholders in numbering order; extra holds bound
	// values without a placeholder.
	slots []paramSlot
	extra []any

	// needed holds the aliases whose columns are selected.
	needed map[string]bool
	// subqueryAliases holds the aliases the record-limiting subquery must keep.
	subqueryAliases map[string]bool
	needsSubquery   bool

	selectFields        bool
	selectAggregates    bool
	pendingFields       map[string][]string
	pendingAggregates   []*aggregate
	pendingSubqueries   []pendingSubquery
	subqueriesProcessed bool
	renderingAggregates bool
	aggregateSeq        int
	aggregates          map[string]aggregateAlias
}

func newState(q *Query) *state {
	s := &state{
		q:               q,
		scope:           newScope(),
		kind:            q.kind,
		distinct:        q.distinct,
		needed:          make(map[string]bool),
		subqueryAliases: make(map[string]bool),
		pendingFields:   make(map[string][]string),
		aggregates:      make(map[string]aggregateAlias),
	}
	if q.inherit != nil {
		s.scope = *q.inherit.clone()
		s.isSubquery = true
	}
	return s
}

// subquery returns a query nested in the statement, sharing its alias scope.
func (s *state) subquery() *Query {
	return &Query{
		resolver: s.q.resolver,
		dialect:  s.q.dialect,
		kind:     KindSelect,
		inherit:  &s.scope,
	}
}

// compileSubquery compiles a nested SELECT statement.
func (s *state) compileSubquery(stmt string) (string, error) {
	sub := s.subquery()
	if err := sub.Parse(stmt); err != nil {
		return "", err
	}
	s.aliases.absorb(sub.state.aliases)
	c, err := sub.state.assemble(context.Background(), nil)
	if err != nil {
		return "", err
	}
	return c.SQL, nil
}

// rootTable returns the table of the root component.
func (s *state) rootTable() *schema.Table {
	return s.tables[s.root]
}

// qualify renders a column of the table registered under alias. Columns
// are not qualified in UPDATE and DELETE statements.
func (s *state) qualify(alias, column string) string {
	if s.kind != KindSelect {
		return column
	}
	return alias + "." + column
}

// resolveRef resolves a "component.field" or "path.field" reference to
// its qualified column, loading the path when needed.
func (s *state) resolveRef(ref string, opts loadOptions) (string, *schema.Table, *schema.Column, error) {
	i := strings.LastIndexByte(ref, '.')
	if i <= 0 || i == len(ref)-1 {
		return "", nil, nil, dql.NewSyntaxError(ref, "expected a component field reference")
	}
	alias, err := s.load(ref[:i], opts)
	if err != nil {
		return "", nil, nil, err
	}
	t := s.tables[alias]
	field := ref[i+1:]
	if field == "*" {
		return s.qualify(alias, "*"), t, nil, nil
	}
	col, ok := t.Column(field)
	if !ok {
		return "", nil, nil, dql.NewUnknownColumnError(t.Component(), field)
	}
	return s.qualify(alias, col.Name), t, col, nil
}

// resolveFragment resolves every component reference of an SQL fragment.
// Function names, keywords and literals are kept. With inline set, bare
// words naming computed select entries are replaced by their expression,
// and the tables it reads are kept in the limit subquery.
func (s *state) resolveFragment(fragment string, inline bool) (string, error) {
	return replaceWords(fragment, func(word string, call bool) (string, error) {
		switch {
		case call:
			return word, nil
		case strings.Contains(word, "."):
			ref, _, _, err := s.resolveRef(word, loadOptions{})
			return ref, err
		case inline:
			if a, ok := s.aggregates[word]; ok {
				for _, alias := range a.aliases {
					s.subqueryAliases[alias] = true
				}
				return a.expr, nil
			}
		}
		return word, nil
	})
}

// renameAliases rewrites the "alias.column" references of a fragment with
// the regenerated aliases of the record-limiting subquery.
func (s *state) renameAliases(fragment string) string {
	out, _ := replaceWords(fragment, func(word string, _ bool) (string, error) {
		alias, rest, ok := strings.Cut(word, ".")
		if !ok {
			return word, nil
		}
		return s.aliases.NewAlias(alias) + "." + rest, nil
	})
	return out
}

// pathOf returns the component path a user alias or path root stands for.
func (s *state) pathOf(name string) string {
	if p, ok := s.compAliases[name]; ok {
		return p
	}
	return name
}

// registered reports whether the component alias or path is registered and
// returns its table alias.
func (s *state) registered(name string) (string, bool) {
	alias, ok := s.tableAliases[s.pathOf(name)]
	return alias, ok
}
