package query

import (
	"strconv"
	"strings"

	"github.com/syssam/dql"
)

func (s *state) parseGroupBy(fragment string) error {
	for _, item := range termExplode(fragment, ",") {
		expr, err := s.resolveFragment(item, false)
		if err != nil {
			return err
		}
		s.groupBys = append(s.groupBys, expr)
	}
	return nil
}

// parseOrderBy parses "expr [ASC|DESC], ...". A bare word naming a computed
// select entry orders by its generated column.
func (s *state) parseOrderBy(fragment string) error {
	for _, item := range termExplode(fragment, ",") {
		tokens := termExplode(item, whitespace...)
		var dir string
		if n := len(tokens); n > 1 {
			switch d := strings.ToUpper(tokens[n-1]); d {
			case "ASC", "DESC":
				dir, tokens = d, tokens[:n-1]
			}
		}
		expr := strings.Join(tokens, " ")
		if isBareWord(expr) {
			if a, ok := s.aggregates[expr]; ok {
				for _, alias := range a.aliases {
					s.subqueryAliases[alias] = true
				}
				s.orderBys = append(s.orderBys, orderItem{dir: dir, aggregate: expr})
				continue
			}
			if s.pendingSubquery(expr) {
				s.orderBys = append(s.orderBys, orderItem{dir: dir, aggregate: expr})
				continue
			}
		}
		resolved, err := s.resolveFragment(expr, false)
		if err != nil {
			return err
		}
		s.orderBys = append(s.orderBys, orderItem{expr: resolved, dir: dir})
	}
	return nil
}

func (s *state) pendingSubquery(alias string) bool {
	for _, p := range s.pendingSubqueries {
		if p.alias == alias {
			return true
		}
	}
	return false
}

func (s *state) parseLimit(fragment string) error {
	n, err := nonNegative(fragment, "LIMIT")
	if err != nil {
		return err
	}
	s.limit = n
	return nil
}

func (s *state) parseOffset(fragment string) error {
	n, err := nonNegative(fragment, "OFFSET")
	if err != nil {
		return err
	}
	s.offset = n
	return nil
}

func nonNegative(fragment, clause string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(fragment))
	if err != nil || n < 0 {
		return 0, dql.NewSyntaxError(fragment, "%s expects a non-negative integer", clause)
	}
	return n, nil
}
