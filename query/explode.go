package query

import (
	"strings"

	"github.com/syssam/dql"
)

// BracketExplode splits s on the delimiters, only where the parentheses of
// the accumulated term are balanced:
//
//	BracketExplode("(a AND b) OR c", " OR ") // ["(a AND b)", "c"]
//
// Pieces are trimmed and empty pieces are dropped. Delimiters match
// case-insensitively and default to a single space.
func BracketExplode(s string, delims ...string) []string {
	return explode(s, delims, bracketsClosed)
}

// QuoteExplode splits s on the delimiters, only where the accumulated term
// holds an even number of single quotes.
func QuoteExplode(s string, delims ...string) []string {
	return explode(s, delims, func(term string) bool {
		return strings.Count(term, "'")%2 == 0
	})
}

// SQLExplode splits s on the delimiters, tracking both parentheses and
// quotes: a term starting with '(' closes when its parentheses balance, any
// other term when it holds an even number of ', " and ` characters.
//
//	SQLExplode("name LIKE 'foo bar'", " ") // ["name", "LIKE", "'foo bar'"]
func SQLExplode(s string, delims ...string) []string {
	return explode(s, delims, func(term string) bool {
		if strings.HasPrefix(term, "(") {
			return bracketsClosed(term)
		}
		return quotesClosed(term)
	})
}

// BracketTrim removes one pair of parentheses enclosing the whole of s.
func BracketTrim(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	if closingParen(s, 0) != len(s)-1 {
		return s
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

// termExplode splits at depth zero outside quotes. It is the splitter used
// by the clause parsers, where a delimiter may appear both inside a
// parenthesized subquery and inside a string literal.
func termExplode(s string, delims ...string) []string {
	return explode(s, delims, func(term string) bool {
		return bracketsClosed(term) && quotesClosed(term)
	})
}

func bracketsClosed(term string) bool {
	return strings.Count(term, "(") == strings.Count(term, ")")
}

func quotesClosed(term string) bool {
	return strings.Count(term, "'")%2 == 0 &&
		strings.Count(term, `"`)%2 == 0 &&
		strings.Count(term, "`")%2 == 0
}

func explode(s string, delims []string, closed func(string) bool) []string {
	if len(delims) == 0 {
		delims = []string{" "}
	}
	var (
		out     []string
		term    string
		started bool
	)
	pieces, seps := splitAny(s, delims)
	for i, p := range pieces {
		switch {
		case started:
			// Open terms keep their text, including whitespace in literals.
			term += seps[i] + p
		case strings.TrimSpace(p) == "":
			continue
		default:
			term, started = p, true
		}
		if closed(term) {
			out = append(out, strings.TrimSpace(term))
			started = false
		}
	}
	if started {
		out = append(out, strings.TrimSpace(term))
	}
	return out
}

// splitAny cuts s at every occurrence of one of the delimiters. seps[i] holds
// the delimiter text preceding pieces[i].
func splitAny(s string, delims []string) (pieces, seps []string) {
	seps = append(seps, "")
	last := 0
	for i := 0; i < len(s); {
		n := 0
		for _, d := range delims {
			if d != "" && i+len(d) <= len(s) && strings.EqualFold(s[i:i+len(d)], d) {
				n = len(d)
				break
			}
		}
		if n == 0 {
			i++
			continue
		}
		pieces = append(pieces, s[last:i])
		seps = append(seps, s[i:i+n])
		i += n
		last = i
	}
	pieces = append(pieces, s[last:])
	return pieces, seps
}

// closingParen returns the index of the parenthesis closing the one at
// open, skipping quoted literals, or -1.
func closingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// checkBalanced reports a quoted literal left open or a parenthesis without
// its pair, skipping parentheses inside literals.
func checkBalanced(s string) error {
	depth := 0
	var (
		quote byte
		open  int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote, open = c, i
		case c == '(':
			depth++
		case c == ')':
			if depth--; depth < 0 {
				return dql.NewSyntaxError(s, "unexpected ')' at offset %d", i)
			}
		}
	}
	switch {
	case quote != 0:
		return dql.NewSyntaxError(s, "unterminated %c literal at offset %d", quote, open)
	case depth > 0:
		return dql.NewSyntaxError(s, "%d unclosed '('", depth)
	}
	return nil
}

// indexOperator returns the position and text of the first comparison
// operator of s found outside parentheses and quotes.
func indexOperator(s string) (int, string) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '\'' || c == '"' || c == '`':
			quote = c
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range operators {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

// operators are ordered so that two-character operators win.
var operators = []string{"!=", "<>", ">=", "<=", "=", "<", ">"}

// replaceWords calls fn for every identifier word of s found outside quoted
// literals and substitutes the returned text. A word starts with a letter or
// an underscore and may contain dots ("u.name", "u.*"); call is set when the
// word is immediately followed by '('. Numbers and named parameters are
// copied unchanged.
func replaceWords(s string, fn func(word string, call bool) (string, error)) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(s) && s[j] != c {
				j++
			}
			if j < len(s) {
				j++
			}
			b.WriteString(s[i:j])
			i = j
		case c == ':' || isDigit(c):
			j := i + 1
			for j < len(s) && isWordChar(s[j]) {
				j++
			}
			b.WriteString(s[i:j])
			i = j
		case isWordStart(c):
			j := i + 1
			for j < len(s) && (isWordChar(s[j]) || s[j] == '*' && s[j-1] == '.') {
				j++
			}
			w, err := fn(s[i:j], j < len(s) && s[j] == '(')
			if err != nil {
				return "", err
			}
			b.WriteString(w)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isWordChar(c byte) bool {
	return isWordStart(c) || isDigit(c) || c == '.'
}
