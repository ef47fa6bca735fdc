package query

import (
	"slices"
	"strings"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema"
)

// JoinKind is the kind of a join.
type JoinKind uint8

// Join kinds. A '.' in a component path joins LEFT, a ':' joins INNER.
const (
	JoinLeft JoinKind = iota
	JoinInner
)

// String returns the SQL keyword of the join kind.
func (k JoinKind) String() string {
	if k == JoinInner {
		return "INNER"
	}
	return "LEFT"
}

// JoinClause is one join of a statement. The two joins of a many-to-many
// relation share the Target alias, so they are kept or pruned together.
type JoinClause struct {
	Kind   JoinKind
	Table  string
	Alias  string
	Parent string // alias of the table joined to
	Target string // alias of the relation target
	On     []string
}

// render renders the join. alias maps the join alias and on rewrites the
// ON conditions; both are identity functions in the main statement.
func (j *JoinClause) render(quote, alias, on func(string) string) string {
	conds := make([]string, len(j.On))
	for i, c := range j.On {
		conds[i] = on(c)
	}
	return j.Kind.String() + " JOIN " + quote(j.Table) + " " + alias(j.Alias) + " ON " + strings.Join(conds, " AND ")
}

type loadOptions struct {
	// fields loads the selected columns of the components on the path.
	fields bool
	// declare is set for paths declared by the FROM clause.
	declare bool
	// selectList is set for references of select-list aggregates. The joins
	// they traverse do not restrict the root records.
	selectList bool
}

// segment is one component of a path: Name[-fetchmode][(field1,field2)].
type segment struct {
	raw    string
	name   string
	inner  bool
	mode   string
	fields []string
}

func parseSegments(path string) ([]segment, error) {
	var (
		segs  []segment
		start int
		inner bool
		depth int
	)
	for i := 0; i <= len(path); i++ {
		if i < len(path) {
			switch path[i] {
			case '(':
				depth++
				continue
			case ')':
				depth--
				continue
			case '.', ':':
				if depth > 0 {
					continue
				}
			default:
				continue
			}
		}
		seg, err := parseSegment(path[start:i])
		if err != nil {
			return nil, err
		}
		seg.inner = inner
		segs = append(segs, seg)
		if i < len(path) {
			inner = path[i] == ':'
		}
		start = i + 1
	}
	return segs, nil
}

func parseSegment(raw string) (segment, error) {
	seg := segment{raw: raw, name: raw}
	if i := strings.IndexByte(raw, '('); i >= 0 {
		if !strings.HasSuffix(raw, ")") {
			return seg, dql.NewSyntaxError(raw, "unterminated field list")
		}
		for _, f := range strings.Split(raw[i+1:len(raw)-1], ",") {
			if f = strings.TrimSpace(f); f != "" {
				seg.fields = append(seg.fields, f)
			}
		}
		seg.name = raw[:i]
	}
	if i := strings.IndexByte(seg.name, '-'); i >= 0 {
		seg.name, seg.mode = seg.name[:i], seg.name[i+1:]
	}
	if seg.name == "" {
		return seg, dql.NewSyntaxError(raw, "empty path segment")
	}
	return seg, nil
}

// load registers the tables of a component path and the joins leading to
// them, and returns the table alias of the last component. A path may carry
// a component alias ("u.Phonenumber p", "u.Phonenumber AS p") and an ON
// condition appended to the join of its last component.
func (s *state) load(path string, opts loadOptions) (string, error) {
	path = strings.TrimSpace(path)
	var cond string
	if parts := termExplode(path, " ON "); len(parts) > 1 {
		path, cond = parts[0], strings.Join(parts[1:], " ON ")
	}
	words := termExplode(path, whitespace...)
	var compAlias string
	switch {
	case len(words) == 1:
	case len(words) == 2:
		compAlias = words[1]
	case len(words) == 3 && strings.EqualFold(words[1], "AS"):
		compAlias = words[2]
	default:
		return "", dql.NewSyntaxError(path, "malformed component path")
	}
	segs, err := parseSegments(words[0])
	if err != nil {
		return "", err
	}
	if canonical, ok := s.compAliases[segs[0].name]; ok {
		base, err := parseSegments(canonical)
		if err != nil {
			return "", err
		}
		segs = append(base, segs[1:]...)
	}
	if cond != "" && len(segs) == 1 {
		return "", dql.NewSyntaxError(path, "ON condition without a relation")
	}

	var (
		alias    string
		currPath string
		created  bool
	)
	for i, seg := range segs {
		last := i == len(segs)-1
		if i == 0 {
			currPath, alias, created, err = s.loadRoot(seg, path, opts)
		} else {
			currPath, alias, created, err = s.loadRelation(seg, currPath, alias, opts, last && cond != "")
		}
		if err != nil {
			return "", err
		}
		if created {
			s.tableOrder = append(s.tableOrder, alias)
		}
		if last && compAlias != "" {
			s.compAliases[compAlias] = currPath
		}
		if err := s.loadFields(seg, alias, created, last, compAlias, opts); err != nil {
			return "", err
		}
	}
	if cond != "" {
		on, err := s.condition(cond, ClauseJoinCondition, alias)
		if err != nil {
			return "", err
		}
		for _, j := range s.joins {
			if j.Alias == alias {
				j.On = append(j.On, on)
			}
		}
	}
	return alias, nil
}

func (s *state) loadRoot(seg segment, path string, opts loadOptions) (string, string, bool, error) {
	existing, ok := s.tableAliases[seg.name]
	switch {
	case opts.declare && s.from == "", !ok && s.from == "":
		t, err := s.q.resolver.Resolve(seg.name)
		if err != nil {
			return "", "", false, err
		}
		key, alias := s.newRoot(seg.name, t)
		return key, alias, true, nil
	case ok:
		return seg.name, existing, false, nil
	}
	if _, err := s.q.resolver.Resolve(seg.name); err != nil {
		return "", "", false, err
	}
	return "", "", false, dql.NewSyntaxError(path, "multiple root components")
}

// newRoot seeds the FROM clause. A subquery always allocates a fresh alias:
// the enclosing statement may select from the same table.
func (s *state) newRoot(name string, t *schema.Table) (key, alias string) {
	if s.isSubquery {
		alias = s.aliases.GenerateShortAlias(t.Name())
	} else {
		alias = s.aliases.ShortAlias(t.Name())
	}
	key = name
	if _, taken := s.tableAliases[key]; taken {
		key = name + "@" + alias
	}
	s.tableAliases[key] = alias
	s.tables[alias] = t
	s.root = alias
	s.from = s.q.dialect.QuoteIdentifier(t.Name())
	if s.kind == KindSelect {
		s.from += " " + alias
	}
	return key, alias
}

func (s *state) loadRelation(seg segment, prevPath, parent string, opts loadOptions, hasCond bool) (string, string, bool, error) {
	owner := s.tables[parent]
	rel, err := owner.Relation(seg.name)
	if err != nil {
		return "", "", false, err
	}
	currPath := prevPath + "." + seg.name
	kind := JoinLeft
	if seg.inner {
		kind = JoinInner
	}
	if alias, ok := s.tableAliases[currPath]; ok {
		if !opts.fields && !opts.selectList {
			s.subqueryAliases[alias] = true
		}
		if kind == JoinInner {
			for _, j := range s.joins {
				if j.Target == alias {
					j.Kind = JoinInner
				}
			}
		}
		return currPath, alias, false, nil
	}
	if s.kind != KindSelect {
		return "", "", false, dql.NewSyntaxError(currPath, "relations cannot be joined in %s statements", s.kind)
	}
	target, err := s.q.resolver.Resolve(rel.Target)
	if err != nil {
		return "", "", false, err
	}
	alias := s.aliases.GenerateShortAlias(target.Name())
	s.tables[alias] = target
	s.tableAliases[currPath] = alias
	if !rel.IsOneToOne() {
		s.needsSubquery = true
	}
	keep := (!opts.fields && !opts.selectList) || hasCond || len(target.Inheritance()) > 0
	if !rel.IsManyToMany() {
		s.joins = append(s.joins, &JoinClause{
			Kind:   kind,
			Table:  target.Name(),
			Alias:  alias,
			Parent: parent,
			Target: alias,
			On:     []string{parent + "." + columnName(owner, rel.Local) + " = " + alias + "." + columnName(target, rel.Foreign)},
		})
	} else {
		assocPath := prevPath + "." + rel.Association.Component
		assoc, ok := s.tableAliases[assocPath]
		if !ok {
			assoc = s.aliases.GenerateShortAlias(rel.Association.Table)
			s.tableAliases[assocPath] = assoc
			on := parent + "." + owner.Identifier() + " = " + assoc + "." + rel.Local
			if rel.IsSelfReferencing() {
				on += " OR " + parent + "." + owner.Identifier() + " = " + assoc + "." + rel.Foreign
			}
			s.joins = append(s.joins, &JoinClause{
				Kind:   kind,
				Table:  rel.Association.Table,
				Alias:  assoc,
				Parent: parent,
				Target: alias,
				On:     []string{on},
			})
		}
		if keep {
			s.subqueryAliases[assoc] = true
		}
		on := alias + "." + target.Identifier() + " = " + assoc + "." + rel.Foreign
		if rel.IsSelfReferencing() {
			on += " OR " + alias + "." + target.Identifier() + " = " + assoc + "." + rel.Local
			if hasCond {
				on = "(" + on + ")"
			}
		}
		s.joins = append(s.joins, &JoinClause{
			Kind:   kind,
			Table:  target.Name(),
			Alias:  alias,
			Parent: assoc,
			Target: alias,
			On:     []string{on},
		})
	}
	if keep {
		s.subqueryAliases[alias] = true
	}
	return currPath, alias, true, nil
}

// loadFields resolves the select entries waiting for a registered alias,
// or selects the default columns of the component when the statement has
// no select list.
func (s *state) loadFields(seg segment, alias string, isNew, last bool, compAlias string, opts loadOptions) error {
	if !opts.fields {
		return s.processPendingAggregates()
	}
	if last {
		key := compAlias
		if key == "" {
			key = seg.name
		}
		if _, ok := s.pendingFields[key]; ok {
			if err := s.processPendingFields(key, alias); err != nil {
				return err
			}
		}
	}
	if err := s.processPendingAggregates(); err != nil {
		return err
	}
	if !isNew || s.selectFields || s.selectAggregates || s.kind != KindSelect {
		return nil
	}
	return s.loadDefaultFields(seg, alias)
}

func (s *state) loadDefaultFields(seg segment, alias string) error {
	t := s.tables[alias]
	mode := t.FetchMode()
	if seg.mode != "" {
		m, err := schema.ParseFetchMode(seg.mode)
		if err != nil {
			return dql.NewSyntaxError(seg.raw, "unknown fetch mode %q", seg.mode)
		}
		mode = m
	}
	if mode == schema.FetchOffset || mode == schema.FetchLazyOffset {
		s.limit = t.CollectionLimit()
	}
	var cols []string
	if (mode == schema.FetchImmediate || mode == schema.FetchOffset) && len(seg.fields) == 0 {
		cols = t.ColumnNames()
	} else {
		cols = t.PrimaryKeys()
		for _, f := range seg.fields {
			c, err := t.ColumnName(f)
			if err != nil {
				return err
			}
			if !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	for _, c := range cols {
		s.selectColumn(alias, c)
	}
	return nil
}

func (s *state) processPendingFields(key, alias string) error {
	fields := s.pendingFields[key]
	delete(s.pendingFields, key)
	t := s.tables[alias]
	var cols []string
	if slices.Contains(fields, "*") {
		cols = t.ColumnNames()
	} else {
		if !s.isSubquery {
			cols = append(cols, t.PrimaryKeys()...)
		}
		for _, f := range fields {
			c, err := t.ColumnName(f)
			if err != nil {
				return err
			}
			if !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	for _, c := range cols {
		s.selectColumn(alias, c)
	}
	s.needed[alias] = true
	return nil
}

func (s *state) selectColumn(alias, column string) {
	item := SelectItem{Expr: alias + "." + column}
	if !s.isSubquery {
		item.Alias = alias + "__" + column
	}
	s.selects = append(s.selects, item)
}

// columnName maps a relation key to the storage column of the table. Keys
// of tables that do not declare them are used as written.
func columnName(t *schema.Table, key string) string {
	if c, ok := t.Column(key); ok {
		return c.Name
	}
	return key
}
