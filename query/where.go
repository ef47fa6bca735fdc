package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema"
)

func (s *state) parseWhere(fragment string) error {
	cond, err := s.condition(fragment, ClauseWhere, "")
	if err != nil {
		return err
	}
	s.wheres = append(s.wheres, cond)
	return nil
}

func (s *state) parseHaving(fragment string) error {
	cond, err := s.condition(fragment, ClauseHaving, "")
	if err != nil {
		return err
	}
	s.havings = append(s.havings, cond)
	return nil
}

// parseSet parses the comma separated assignments of an UPDATE statement.
func (s *state) parseSet(fragment string) error {
	if s.kind != KindUpdate {
		return dql.NewSyntaxError(fragment, "SET is only allowed in UPDATE statements")
	}
	for _, a := range termExplode(fragment, ",") {
		pos, op := indexOperator(a)
		if pos <= 0 || op != "=" {
			return dql.NewSyntaxError(a, "expected an assignment")
		}
		lhs, t, col, err := s.operand(strings.TrimSpace(a[:pos]), ClauseSet, "")
		if err != nil {
			return err
		}
		rhs, err := s.value(strings.TrimSpace(a[pos+len(op):]), t, col, ClauseSet)
		if err != nil {
			return err
		}
		s.sets = append(s.sets, lhs+" = "+rhs)
	}
	return nil
}

// condition parses a condition tree. Conjunctions bind tighter than
// disjunctions; composite results are parenthesized. alias is the table
// alias of the join a JOIN condition belongs to.
func (s *state) condition(fragment string, kind ClauseKind, alias string) (string, error) {
	orig := strings.TrimSpace(fragment)
	fragment = orig
	for {
		trimmed := BracketTrim(fragment)
		if trimmed == fragment {
			break
		}
		fragment = trimmed
	}
	if fragment == "" {
		return "", dql.NewSyntaxError(orig, "empty %s condition", kind)
	}
	sep := " OR "
	parts := termExplode(fragment, " OR ", " || ")
	if len(parts) == 1 {
		sep = " AND "
		parts = mergeBetween(termExplode(fragment, " AND ", " && "))
	}
	if len(parts) <= 1 {
		return s.leaf(fragment, kind, alias)
	}
	conds := make([]string, len(parts))
	for i, p := range parts {
		c, err := s.condition(p, kind, alias)
		if err != nil {
			return "", err
		}
		conds[i] = c
	}
	return "(" + strings.Join(conds, sep) + ")", nil
}

// mergeBetween rejoins "x BETWEEN a" with the bound that follows its AND.
func mergeBetween(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		p := parts[i]
		tokens := SQLExplode(p, whitespace...)
		if n := len(tokens); n >= 2 && strings.EqualFold(tokens[n-2], "BETWEEN") && i+1 < len(parts) {
			p += " AND " + parts[i+1]
			i++
		}
		out = append(out, p)
	}
	return out
}

var relatedFunc = regexp.MustCompile(`(?is)^([A-Za-z_]\w*(?:\.[A-Za-z_]\w*)+)\.(contains|like|regexp)\((.*)\)$`)

// keywordOps are the operators written as words.
var keywordOps = map[string]bool{
	"IN": true, "NOT": true, "LIKE": true, "ILIKE": true, "IS": true,
	"BETWEEN": true, "REGEXP": true, "RLIKE": true,
}

func (s *state) leaf(leaf string, kind ClauseKind, alias string) (string, error) {
	upper := strings.ToUpper(leaf)
	switch {
	case strings.HasPrefix(upper, "EXISTS") && strings.HasPrefix(strings.TrimSpace(leaf[6:]), "("):
		return s.exists("EXISTS", leaf[6:])
	case strings.HasPrefix(upper, "NOT EXISTS") && strings.HasPrefix(strings.TrimSpace(leaf[10:]), "("):
		return s.exists("NOT EXISTS", leaf[10:])
	}
	if m := relatedFunc.FindStringSubmatch(leaf); m != nil {
		return s.relatedCondition(m[1], strings.ToLower(m[2]), m[3])
	}
	tokens := SQLExplode(leaf, whitespace...)
	if len(tokens) >= 3 && keywordOps[strings.ToUpper(tokens[1])] {
		return s.keywordLeaf(tokens, kind, alias)
	}
	pos, op := indexOperator(leaf)
	if pos <= 0 {
		return s.resolveFragment(leaf, kind == ClauseHaving)
	}
	lhs, t, col, err := s.operand(strings.TrimSpace(leaf[:pos]), kind, alias)
	if err != nil {
		return "", err
	}
	rhs, err := s.rhs(strings.TrimSpace(leaf[pos+len(op):]), t, col, kind)
	if err != nil {
		return "", err
	}
	return lhs + " " + op + " " + rhs, nil
}

// keywordLeaf renders "lhs [NOT] IN|LIKE|IS|BETWEEN ... rhs".
func (s *state) keywordLeaf(tokens []string, kind ClauseKind, alias string) (string, error) {
	lhs, t, col, err := s.operand(tokens[0], kind, alias)
	if err != nil {
		return "", err
	}
	ops := tokens[1 : len(tokens)-1]
	between := -1
	for i, o := range ops {
		if strings.EqualFold(o, "BETWEEN") {
			between = i
		}
	}
	if between >= 0 {
		// lhs [NOT] BETWEEN low AND high
		if len(ops) != between+3 || !strings.EqualFold(ops[between+2], "AND") {
			return "", dql.NewSyntaxError(strings.Join(tokens, " "), "malformed BETWEEN")
		}
		low, err := s.value(ops[between+1], t, col, kind)
		if err != nil {
			return "", err
		}
		high, err := s.value(tokens[len(tokens)-1], t, col, kind)
		if err != nil {
			return "", err
		}
		op := strings.ToUpper(strings.Join(ops[:between+1], " "))
		return lhs + " " + op + " " + low + " AND " + high, nil
	}
	for _, o := range ops {
		if !keywordOps[strings.ToUpper(o)] {
			return "", dql.NewSyntaxError(strings.Join(tokens, " "), "unexpected %q", o)
		}
	}
	op := strings.ToUpper(strings.Join(ops, " "))
	if op == "REGEXP" || op == "RLIKE" {
		op = s.q.dialect.RegexpOperator()
	}
	rhs, err := s.rhs(tokens[len(tokens)-1], t, col, kind)
	if err != nil {
		return "", err
	}
	return lhs + " " + op + " " + rhs, nil
}

// operand resolves the left-hand side of a predicate. It returns the table
// and column of a plain field reference so the right-hand side can map enum
// values.
func (s *state) operand(expr string, kind ClauseKind, alias string) (string, *schema.Table, *schema.Column, error) {
	if kind == ClauseJoinCondition && isBareWord(expr) {
		t := s.tables[alias]
		if col, ok := t.Column(expr); ok {
			return s.qualify(alias, col.Name), t, col, nil
		}
	}
	if kind == ClauseSet && isBareWord(expr) {
		t := s.rootTable()
		col, ok := t.Column(expr)
		if !ok {
			return "", nil, nil, dql.NewUnknownColumnError(t.Component(), expr)
		}
		return col.Name, t, col, nil
	}
	if isRef(expr) && !strings.HasSuffix(expr, "*") {
		return s.resolveRef(expr, loadOptions{})
	}
	out, err := s.resolveFragment(expr, kind == ClauseHaving)
	return out, nil, nil, err
}

// rhs renders the right-hand side of a predicate: a subquery, a raw SQL
// escape, a value list or a single value.
func (s *state) rhs(expr string, t *schema.Table, col *schema.Column, kind ClauseKind) (string, error) {
	if !strings.HasPrefix(expr, "(") || closingParen(expr, 0) != len(expr)-1 {
		return s.value(expr, t, col, kind)
	}
	inner := strings.TrimSpace(expr[1 : len(expr)-1])
	if startsWithWord(inner, "SELECT") || startsWithWord(inner, "FROM") {
		sql, err := s.compileSubquery(inner)
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	}
	if len(inner) >= 4 && strings.EqualFold(inner[:4], "SQL:") {
		return "(" + strings.TrimSpace(inner[4:]) + ")", nil
	}
	if inner == "" {
		return "", dql.NewSyntaxError(expr, "empty value list")
	}
	values := termExplode(inner, ",")
	for i, v := range values {
		r, err := s.value(v, t, col, kind)
		if err != nil {
			return "", err
		}
		values[i] = r
	}
	return "(" + strings.Join(values, ", ") + ")", nil
}

// value renders a single value. Quoted values compared with an enum column
// are replaced by the enum index.
func (s *state) value(v string, t *schema.Table, col *schema.Column, kind ClauseKind) (string, error) {
	if col != nil && len(col.Enums) > 0 && len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		lit := strings.ReplaceAll(v[1:len(v)-1], "''", "'")
		if i, ok := t.EnumIndex(col.Field, lit); ok {
			return strconv.Itoa(i), nil
		}
	}
	switch strings.ToLower(v) {
	case "true":
		return s.q.dialect.Boolean(true), nil
	case "false":
		return s.q.dialect.Boolean(false), nil
	}
	return s.resolveFragment(v, kind == ClauseHaving)
}

func (s *state) exists(op, rest string) (string, error) {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || closingParen(rest, 0) != len(rest)-1 {
		return "", dql.NewSyntaxError(op+" "+rest, "expected a parenthesized subquery")
	}
	sql, err := s.compileSubquery(strings.TrimSpace(rest[1 : len(rest)-1]))
	if err != nil {
		return "", err
	}
	return op + " (" + sql + ")", nil
}

// relatedCondition renders comp.Relation.field.fn(v1, v2) as one IN
// subquery per value over the related table, ANDed together.
func (s *state) relatedCondition(ref, fn, args string) (string, error) {
	parts := strings.Split(ref, ".")
	if len(parts) != 3 {
		return "", dql.NewSyntaxError(ref+"."+fn, "expected component.Relation.field")
	}
	root, err := s.load(parts[0], loadOptions{})
	if err != nil {
		return "", err
	}
	owner := s.tables[root]
	rel, err := owner.Relation(parts[1])
	if err != nil {
		return "", err
	}
	target, err := s.q.resolver.Resolve(rel.Target)
	if err != nil {
		return "", err
	}
	column, err := target.ColumnName(parts[2])
	if err != nil {
		return "", err
	}
	col, _ := target.Column(parts[2])
	var op string
	switch fn {
	case "contains":
		op = "="
	case "like":
		op = "LIKE"
	case "regexp":
		op = s.q.dialect.RegexpOperator()
	}
	// The subquery aliases are scoped like those of a nested statement.
	h := s.aliases.Clone()
	alias := h.GenerateShortAlias(target.Name())
	var assoc string
	if rel.IsManyToMany() {
		assoc = h.GenerateShortAlias(rel.Association.Table)
	}
	s.aliases.absorb(h)
	quote := s.q.dialect.QuoteIdentifier
	values := termExplode(args, ",")
	if len(values) == 0 {
		return "", dql.NewSyntaxError(ref+"."+fn, "no values")
	}
	conds := make([]string, len(values))
	for i, v := range values {
		val, err := s.value(v, target, col, ClauseWhere)
		if err != nil {
			return "", err
		}
		filter := alias + "." + column + " " + op + " " + val
		if !rel.IsManyToMany() {
			conds[i] = s.qualify(root, columnName(owner, rel.Local)) + " IN (SELECT " + alias + "." + columnName(target, rel.Foreign) +
				" FROM " + quote(target.Name()) + " " + alias + " WHERE " + filter + ")"
			continue
		}
		conds[i] = s.qualify(root, owner.Identifier()) + " IN (SELECT " + assoc + "." + rel.Local +
			" FROM " + quote(rel.Association.Table) + " " + assoc + " WHERE " + assoc + "." + rel.Foreign +
			" IN (SELECT " + alias + "." + target.Identifier() + " FROM " + quote(target.Name()) + " " + alias + " WHERE " + filter + "))"
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return "(" + strings.Join(conds, " AND ") + ")", nil
}

func isBareWord(w string) bool {
	if w == "" || !isWordStart(w[0]) {
		return false
	}
	for i := 1; i < len(w); i++ {
		if !isWordChar(w[i]) || w[i] == '.' {
			return false
		}
	}
	return true
}

// startsWithWord reports whether s starts with the keyword followed by a
// space or the end of the string.
func startsWithWord(s, word string) bool {
	return len(s) >= len(word) && strings.EqualFold(s[:len(word)], word) &&
		(len(s) == len(word) || s[len(word)] == ' ' || s[len(word)] == '\t' || s[len(word)] == '\n')
}
