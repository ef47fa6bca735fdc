package query

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema"
)

// assemble renders the parsed statement. It does not modify the clause
// collections, so repeated calls render the same SQL.
func (s *state) assemble(ctx context.Context, args []any) (*Compiled, error) {
	if err := s.processPendingSubqueries(); err != nil {
		return nil, err
	}
	if s.from == "" {
		return nil, dql.ErrEmptyQuery
	}
	if err := s.checkPending(); err != nil {
		return nil, err
	}
	var b strings.Builder
	switch s.kind {
	case KindSelect:
		if len(s.selects) == 0 {
			return nil, dql.ErrEmptyQuery
		}
		b.WriteString("SELECT ")
		if s.distinct {
			b.WriteString("DISTINCT ")
		}
		for i, item := range s.selects {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(item.String())
		}
		b.WriteString(" FROM ")
		b.WriteString(s.from)
	case KindUpdate:
		if len(s.sets) == 0 {
			return nil, dql.NewSyntaxError("", "UPDATE requires a SET clause")
		}
		b.WriteString("UPDATE ")
		b.WriteString(s.from)
		b.WriteString(" SET ")
		b.WriteString(strings.Join(s.sets, ", "))
	case KindDelete:
		b.WriteString("DELETE FROM ")
		b.WriteString(s.from)
	default:
		return nil, dql.NewSyntaxError("", "%s statements are not supported", s.kind)
	}
	joins := s.keptJoins()
	for _, j := range joins {
		b.WriteByte(' ')
		b.WriteString(j.render(s.q.dialect.QuoteIdentifier, identity, identity))
	}

	c := &Compiled{Aggregates: s.aggregateColumns()}
	var wheres []string
	if s.useLimitSubquery() {
		cond, err := s.limitSubqueryCondition(ctx, args)
		if err != nil {
			return nil, err
		}
		wheres = append(wheres, cond)
		c.LimitSubquery = true
	}
	wheres = append(wheres, s.wheres...)
	wheres = append(wheres, s.inheritance(joins, identity)...)
	writeList(&b, " WHERE ", wheres, " AND ")
	writeList(&b, " GROUP BY ", s.groupBys, ", ")
	writeList(&b, " HAVING ", s.havings, " AND ")
	orders := make([]string, len(s.orderBys))
	for i, o := range s.orderBys {
		orders[i] = s.orderExpr(o, false) + direction(o)
	}
	writeList(&b, " ORDER BY ", orders, ", ")
	c.SQL = b.String()
	if !c.LimitSubquery {
		c.SQL = s.q.dialect.ModifyLimitQuery(c.SQL, s.limit, s.offset)
	}
	return c, nil
}

// checkPending reports select entries whose component was never declared.
func (s *state) checkPending() error {
	if len(s.pendingFields) > 0 {
		return dql.NewUnknownComponentError(slices.Sorted(maps.Keys(s.pendingFields))[0])
	}
	for _, a := range s.pendingAggregates {
		for _, c := range append([]string{a.owner}, a.comps...) {
			if _, ok := s.registered(c); c != "" && !ok {
				return dql.NewUnknownComponentError(c)
			}
		}
		return dql.ErrEmptyQuery
	}
	return nil
}

func (s *state) useLimitSubquery() bool {
	return s.kind == KindSelect && !s.isSubquery && (s.limit > 0 || s.offset > 0) &&
		s.needsSubquery && s.rootTable().QueryLimit() == schema.LimitRecords
}

// limitSubqueryCondition returns the condition restricting the statement to
// the root records selected by the limit subquery. Dialects that cannot
// nest it run the subquery with args and inline the keys.
func (s *state) limitSubqueryCondition(ctx context.Context, args []any) (string, error) {
	sub, err := s.limitSubquery()
	if err != nil {
		return "", err
	}
	d := s.q.dialect
	pk := s.rootTable().Identifier()
	ref := s.root + "." + pk
	if !d.EagerLimitSubquery() {
		return ref + " IN (" + d.WrapLimitSubquery(sub, pk) + ")", nil
	}
	if s.q.loader == nil {
		return "", dql.ErrNoKeyLoader
	}
	sub, subArgs, _ := s.bindArgs(sub, args, false)
	keys, err := s.q.loader.LoadKeys(ctx, sub, subArgs)
	if err != nil {
		return "", fmt.Errorf("query: load limit subquery keys: %w", err)
	}
	if len(keys) == 0 {
		return "1 = 0", nil
	}
	lits := make([]string, len(keys))
	for i, k := range keys {
		lits[i] = d.Literal(k)
	}
	return ref + " IN (" + strings.Join(lits, ", ") + ")", nil
}

// limitSubquery renders the statement selecting the distinct primary keys
// of the root records to return. Every alias is regenerated so the subquery
// can be nested in the statement it restricts.
func (s *state) limitSubquery() (string, error) {
	root := s.rootTable()
	pk := root.Identifier()
	if pk == "" {
		return "", fmt.Errorf("query: component %s has no primary key", root.Component())
	}
	var (
		d      = s.q.dialect
		b      strings.Builder
		ra     = s.aliases.NewAlias(s.root)
		orders = make([]string, len(s.orderBys))
	)
	for i, o := range s.orderBys {
		orders[i] = s.renameAliases(s.orderExpr(o, true))
	}
	b.WriteString("SELECT DISTINCT ")
	b.WriteString(ra + "." + pk)
	for _, c := range d.LimitSubqueryColumns(ra+"."+pk, orders) {
		b.WriteString(", ")
		b.WriteString(c)
	}
	b.WriteString(" FROM ")
	b.WriteString(d.QuoteIdentifier(root.Name()))
	b.WriteString(" " + ra)
	joins := s.subqueryJoins()
	for _, j := range joins {
		b.WriteByte(' ')
		b.WriteString(j.render(d.QuoteIdentifier, s.aliases.NewAlias, s.renameAliases))
	}
	wheres := make([]string, 0, len(s.wheres))
	for _, w := range s.wheres {
		wheres = append(wheres, s.renameAliases(w))
	}
	wheres = append(wheres, s.inheritance(joins, s.aliases.NewAlias)...)
	writeList(&b, " WHERE ", wheres, " AND ")
	writeList(&b, " GROUP BY ", mapStrings(s.groupBys, s.renameAliases), ", ")
	writeList(&b, " HAVING ", mapStrings(s.havings, s.renameAliases), " AND ")
	for i, o := range s.orderBys {
		orders[i] += direction(o)
	}
	writeList(&b, " ORDER BY ", orders, ", ")
	return d.ModifyLimitQuery(b.String(), s.limit, s.offset), nil
}

// keptJoins returns the joins of the statement. With an explicit select
// list, LEFT joins neither selected from nor needed for filtering are
// pruned.
func (s *state) keptJoins() []*JoinClause {
	if !s.selectFields {
		return s.joins
	}
	keep := maps.Clone(s.needed)
	maps.Copy(keep, s.subqueryAliases)
	return s.closeJoins(keep)
}

// subqueryJoins returns the joins restricting the root records: INNER joins
// and the joins the filtering clauses reference.
func (s *state) subqueryJoins() []*JoinClause {
	return s.closeJoins(maps.Clone(s.subqueryAliases))
}

// closeJoins returns the joins leading to the aliases of keep, and every
// INNER join.
func (s *state) closeJoins(keep map[string]bool) []*JoinClause {
	for _, j := range s.joins {
		if j.Kind == JoinInner {
			keep[j.Target] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, j := range s.joins {
			if (keep[j.Target] || keep[j.Alias]) && !keep[j.Parent] {
				keep[j.Parent] = true
				changed = true
			}
		}
	}
	var out []*JoinClause
	for _, j := range s.joins {
		if keep[j.Target] || keep[j.Alias] {
			out = append(out, j)
		}
	}
	return out
}

// inheritance returns the discriminator conditions of the root table and
// the joined tables. A joined table may be absent from a row, so its
// condition accepts NULL.
func (s *state) inheritance(joins []*JoinClause, alias func(string) string) []string {
	var conds []string
	add := func(a string, joined bool) {
		t, ok := s.tables[a]
		if !ok {
			return
		}
		for _, d := range t.Inheritance() {
			ref := s.qualify(alias(a), columnName(t, d.Column))
			lit := s.q.dialect.Literal(d.Value)
			if joined {
				conds = append(conds, "("+ref+" = "+lit+" OR "+ref+" IS NULL)")
			} else {
				conds = append(conds, ref+" = "+lit)
			}
		}
	}
	add(s.root, false)
	for _, j := range joins {
		add(j.Alias, true)
	}
	return conds
}

// count renders the statement counting the distinct root records.
func (s *state) count() (*Compiled, error) {
	if s.kind != KindSelect {
		return nil, dql.NewSyntaxError("", "only SELECT statements can be counted")
	}
	if s.from == "" {
		return nil, dql.ErrEmptyQuery
	}
	if err := s.checkPending(); err != nil {
		return nil, err
	}
	root := s.rootTable()
	pk := root.Identifier()
	if pk == "" {
		return nil, fmt.Errorf("query: component %s has no primary key", root.Component())
	}
	grouped := len(s.groupBys) > 0 || len(s.havings) > 0
	var b strings.Builder
	if grouped {
		b.WriteString("SELECT COUNT(*) FROM (SELECT DISTINCT " + s.root + "." + pk + " FROM ")
	} else {
		b.WriteString("SELECT COUNT(DISTINCT " + s.root + "." + pk + ") FROM ")
	}
	b.WriteString(s.from)
	joins := s.subqueryJoins()
	for _, j := range joins {
		b.WriteByte(' ')
		b.WriteString(j.render(s.q.dialect.QuoteIdentifier, identity, identity))
	}
	writeList(&b, " WHERE ", append(slices.Clone(s.wheres), s.inheritance(joins, identity)...), " AND ")
	if grouped {
		writeList(&b, " GROUP BY ", s.groupBys, ", ")
		writeList(&b, " HAVING ", s.havings, " AND ")
		b.WriteString(") dql_count")
	}
	return &Compiled{SQL: b.String()}, nil
}

// orderExpr returns the expression of an ORDER BY item. Computed entries
// are referenced by their generated column, or inlined when the item is
// rendered into the limit subquery.
func (s *state) orderExpr(o orderItem, inline bool) string {
	if o.aggregate == "" {
		return o.expr
	}
	a := s.aggregates[o.aggregate]
	if inline {
		return a.expr
	}
	return a.column
}

func (s *state) aggregateColumns() map[string]string {
	if len(s.aggregates) == 0 {
		return nil
	}
	m := make(map[string]string, len(s.aggregates))
	for k, a := range s.aggregates {
		m[k] = a.column
	}
	return m
}

func direction(o orderItem) string {
	if o.dir == "" {
		return ""
	}
	return " " + o.dir
}

func writeList(b *strings.Builder, prefix string, items []string, sep string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(prefix)
	b.WriteString(strings.Join(items, sep))
}

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

func identity(s string) string { return s }
