package query

import (
	"strings"

	"github.com/syssam/dql"
)

// parseFrom parses a FROM fragment: comma separated component paths
// followed by any number of [LEFT|INNER] JOIN paths. A bare JOIN is an
// inner join.
func (s *state) parseFrom(fragment string) error {
	var (
		cur  []string
		join = -1
	)
	flush := func() error {
		if len(cur) == 0 {
			if join >= 0 {
				return dql.NewSyntaxError(fragment, "JOIN without a path")
			}
			return nil
		}
		text := strings.Join(cur, " ")
		cur = cur[:0]
		if join < 0 {
			for _, ref := range termExplode(text, ",") {
				if _, err := s.load(ref, loadOptions{fields: true, declare: true}); err != nil {
					return err
				}
			}
			return nil
		}
		path, err := markJoin(text, JoinKind(join))
		if err != nil {
			return err
		}
		_, err = s.load(path, loadOptions{fields: true, declare: true})
		return err
	}
	tokens := termExplode(fragment, whitespace...)
	for i := 0; i < len(tokens); i++ {
		var kind JoinKind
		switch tok := strings.ToUpper(tokens[i]); {
		case (tok == "LEFT" || tok == "INNER") && i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "JOIN"):
			if tok == "LEFT" {
				kind = JoinLeft
			} else {
				kind = JoinInner
			}
			i++
		case tok == "JOIN":
			kind = JoinInner
		default:
			cur = append(cur, tokens[i])
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		join = int(kind)
	}
	return flush()
}

// markJoin rewrites the last separator of the path leading text to the
// separator of the join kind.
func markJoin(text string, kind JoinKind) (string, error) {
	end := strings.IndexAny(text, " \t\n\r")
	if end < 0 {
		end = len(text)
	}
	path := text[:end]
	i, depth := -1, 0
	for j := 0; j < len(path); j++ {
		switch path[j] {
		case '(':
			depth++
		case ')':
			depth--
		case '.', ':':
			if depth == 0 {
				i = j
			}
		}
	}
	if i < 0 {
		return "", dql.NewSyntaxError(text, "JOIN needs a relation path")
	}
	sep := byte('.')
	if kind == JoinInner {
		sep = ':'
	}
	return path[:i] + string(sep) + path[i+1:] + text[end:], nil
}
