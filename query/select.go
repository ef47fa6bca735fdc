package query

import (
	"strconv"
	"strings"

	"github.com/syssam/dql"
)

// aggregate is a function call of the select list, rendered once every
// component it references is registered.
type aggregate struct {
	entry string
	fn    *funcExpr
	alias string
	// owner is the component alias naming the generated column; empty for
	// the root component.
	owner string
	comps []string
}

// funcExpr is a parsed function call: NAME([DISTINCT] arg, ...).
type funcExpr struct {
	name     string
	distinct bool
	args     []funcArg
}

// funcArg is one argument of a function call; exactly one field is set.
type funcArg struct {
	fn  *funcExpr
	ref string
	raw string
}

type pendingSubquery struct {
	stmt  string
	alias string
}

func (s *state) parseSelect(fragment string) error {
	if len(fragment) > 9 && strings.EqualFold(fragment[:9], "DISTINCT ") {
		s.distinct = true
		fragment = fragment[9:]
	}
	for _, entry := range termExplode(fragment, ",") {
		var err error
		switch {
		case strings.HasPrefix(entry, "("):
			err = s.parseSubqueryEntry(entry)
		case strings.Contains(entry, "("):
			err = s.parseAggregate(entry)
		default:
			err = s.parseField(entry)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// parseField queues "alias.field" or "alias.*" until the alias is declared.
func (s *state) parseField(entry string) error {
	if strings.ContainsAny(entry, " \t\n\r") {
		return dql.NewSyntaxError(entry, "unexpected alias on a field")
	}
	parts := strings.Split(entry, ".")
	switch {
	case len(parts) == 1:
		return dql.NewSyntaxError(entry, "field needs a component alias")
	case len(parts) > 2:
		return dql.NewSyntaxError(entry, "select entries cannot traverse relations")
	}
	comp, field := parts[0], parts[1]
	s.pendingFields[comp] = append(s.pendingFields[comp], field)
	s.selectFields = true
	if alias, ok := s.registered(comp); ok {
		return s.processPendingFields(comp, alias)
	}
	return nil
}

func (s *state) parseSubqueryEntry(entry string) error {
	end := closingParen(entry, 0)
	if end < 0 {
		return dql.NewSyntaxError(entry, "unbalanced parentheses")
	}
	rest := strings.Fields(entry[end+1:])
	var alias string
	switch {
	case len(rest) == 0:
	case len(rest) == 1:
		alias = rest[0]
	case len(rest) == 2 && strings.EqualFold(rest[0], "AS"):
		alias = rest[1]
	default:
		return dql.NewSyntaxError(entry, "malformed subquery alias")
	}
	s.pendingSubqueries = append(s.pendingSubqueries, pendingSubquery{stmt: entry[1:end], alias: alias})
	return nil
}

// parseAggregate parses FUNC(args) [[AS] alias] where alias may be written
// as "component.alias" to name the component owning the generated column.
func (s *state) parseAggregate(entry string) error {
	tokens := termExplode(entry, whitespace...)
	var alias string
	switch len(tokens) {
	case 1:
	case 2:
		alias = tokens[1]
	case 3:
		if !strings.EqualFold(tokens[1], "AS") {
			return dql.NewSyntaxError(entry, "expected AS before the alias")
		}
		alias = tokens[2]
	default:
		return dql.NewSyntaxError(entry, "malformed aggregate")
	}
	fn, err := parseFunc(tokens[0])
	if err != nil {
		return err
	}
	a := &aggregate{entry: entry, fn: fn, alias: alias}
	if comp, name, ok := strings.Cut(alias, "."); ok {
		a.owner, a.alias = comp, name
	}
	if a.alias == "" {
		a.alias = strings.ToLower(fn.name)
	}
	a.comps = fn.components(nil)
	if a.owner == "" && len(a.comps) > 0 {
		a.owner = a.comps[0]
	}
	s.pendingAggregates = append(s.pendingAggregates, a)
	s.selectAggregates = true
	return s.processPendingAggregates()
}

func parseFunc(expr string) (*funcExpr, error) {
	i := strings.IndexByte(expr, '(')
	if i <= 0 || closingParen(expr, i) != len(expr)-1 {
		return nil, dql.NewSyntaxError(expr, "malformed function call")
	}
	f := &funcExpr{name: strings.TrimSpace(expr[:i])}
	inner := strings.TrimSpace(expr[i+1 : len(expr)-1])
	if len(inner) > 9 && strings.EqualFold(inner[:9], "DISTINCT ") {
		f.distinct = true
		inner = inner[9:]
	}
	for _, a := range termExplode(inner, ",") {
		switch {
		case isWordStart(a[0]) && strings.HasSuffix(a, ")"):
			fn, err := parseFunc(a)
			if err != nil {
				return nil, err
			}
			f.args = append(f.args, funcArg{fn: fn})
		case isRef(a):
			f.args = append(f.args, funcArg{ref: a})
		default:
			f.args = append(f.args, funcArg{raw: a})
		}
	}
	return f, nil
}

// components returns the component aliases referenced by the call, in
// argument order.
func (f *funcExpr) components(comps []string) []string {
	for _, a := range f.args {
		switch {
		case a.fn != nil:
			comps = a.fn.components(comps)
		case a.ref != "":
			comp, _, _ := strings.Cut(a.ref, ".")
			found := false
			for _, c := range comps {
				found = found || c == comp
			}
			if !found {
				comps = append(comps, comp)
			}
		}
	}
	return comps
}

// renderFunc renders a call with the dialect, resolving its column arguments.
func (s *state) renderFunc(f *funcExpr) (string, error) {
	args := make([]string, len(f.args))
	for i, a := range f.args {
		switch {
		case a.fn != nil:
			r, err := s.renderFunc(a.fn)
			if err != nil {
				return "", err
			}
			args[i] = r
		case a.ref != "":
			r, _, _, err := s.resolveRef(a.ref, loadOptions{selectList: true})
			if err != nil {
				return "", err
			}
			args[i] = r
		default:
			r, err := s.resolveFragment(a.raw, false)
			if err != nil {
				return "", err
			}
			args[i] = r
		}
	}
	out, err := s.q.dialect.Function(f.name, f.distinct, args...)
	if err != nil {
		return "", dql.NewSyntaxError(f.name, "%v", err)
	}
	return out, nil
}

func (s *state) aggregateReady(a *aggregate) bool {
	if s.root == "" {
		return false
	}
	for _, c := range append([]string{a.owner}, a.comps...) {
		if _, ok := s.registered(c); c != "" && !ok {
			return false
		}
	}
	return true
}

// processPendingAggregates renders the aggregates whose components are all
// registered, as "expr AS owner__N".
func (s *state) processPendingAggregates() error {
	if s.renderingAggregates || len(s.pendingAggregates) == 0 {
		return nil
	}
	s.renderingAggregates = true
	defer func() { s.renderingAggregates = false }()
	var rest []*aggregate
	for _, a := range s.pendingAggregates {
		if !s.aggregateReady(a) {
			rest = append(rest, a)
			continue
		}
		expr, err := s.renderFunc(a.fn)
		if err != nil {
			return err
		}
		owner := s.root
		if a.owner != "" {
			owner, _ = s.registered(a.owner)
		}
		var aliases []string
		for _, c := range a.comps {
			alias, _ := s.registered(c)
			s.needed[alias] = true
			aliases = append(aliases, alias)
		}
		column := owner + "__" + strconv.Itoa(s.aggregateSeq)
		s.aggregateSeq++
		s.selects = append(s.selects, SelectItem{Expr: expr, Alias: column})
		s.aggregates[a.alias] = aggregateAlias{column: column, expr: expr, aliases: aliases}
	}
	s.pendingAggregates = rest
	return nil
}

// processPendingSubqueries compiles the subqueries of the select list. It
// runs once, after the FROM clause registered every component.
func (s *state) processPendingSubqueries() error {
	if s.subqueriesProcessed || len(s.pendingSubqueries) == 0 {
		return nil
	}
	var (
		items []SelectItem
		seq   = s.aggregateSeq
		named = make(map[string]aggregateAlias)
	)
	for _, p := range s.pendingSubqueries {
		sql, err := s.compileSubquery(p.stmt)
		if err != nil {
			return err
		}
		expr := "(" + sql + ")"
		column := s.root + "__" + strconv.Itoa(seq)
		seq++
		items = append(items, SelectItem{Expr: expr, Alias: column})
		if p.alias != "" {
			named[p.alias] = aggregateAlias{column: column, expr: expr}
		}
	}
	s.selects = append(s.selects, items...)
	for k, v := range named {
		s.aggregates[k] = v
	}
	s.aggregateSeq = seq
	s.subqueriesProcessed = true
	return nil
}

// isRef reports whether w is a component field reference such as u.name or
// u.Phonenumber.phonenumber.
func isRef(w string) bool {
	if w == "" || !isWordStart(w[0]) || !strings.Contains(w, ".") || strings.HasSuffix(w, ".") {
		return false
	}
	for i := 1; i < len(w); i++ {
		if !isWordChar(w[i]) && !(w[i] == '*' && w[i-1] == '.') {
			return false
		}
	}
	return true
}
