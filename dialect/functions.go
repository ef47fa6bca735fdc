package dialect

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// renderFunc renders a function call from already resolved arguments.
type renderFunc func(distinct bool, args []string) string

// Portable function names. Dialects override the rendering of some of them.
var portable = []string{
	"AVG", "COUNT", "MAX", "MIN", "SUM",
	"CONCAT", "LOWER", "UPPER", "LENGTH", "SUBSTRING", "TRIM", "LTRIM", "RTRIM",
	"NOW", "RANDOM", "MOD", "ABS", "ROUND", "COALESCE",
}

var upper = cases.Upper(language.Und)

// FunctionName normalizes a function name for lookup.
func FunctionName(name string) string {
	return upper.String(strings.TrimSpace(name))
}

// IsFunction reports whether name is a portable function.
func IsFunction(name string) bool {
	name = FunctionName(name)
	for _, f := range portable {
		if f == name {
			return true
		}
	}
	return false
}

// call renders the standard form NAME([DISTINCT ]arg1, arg2).
func call(name string) renderFunc {
	return func(distinct bool, args []string) string {
		var b strings.Builder
		b.WriteString(name)
		b.WriteByte('(')
		if distinct {
			b.WriteString("DISTINCT ")
		}
		b.WriteString(strings.Join(args, ", "))
		b.WriteByte(')')
		return b.String()
	}
}

// infix renders the arguments joined by an operator, in parentheses.
func infix(op string) renderFunc {
	return func(_ bool, args []string) string {
		return "(" + strings.Join(args, " "+op+" ") + ")"
	}
}

// constant renders a fixed expression, ignoring arguments.
func constant(expr string) renderFunc {
	return func(bool, []string) string { return expr }
}

func (b base) Function(name string, distinct bool, args ...string) (string, error) {
	name = FunctionName(name)
	if !IsFunction(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if distinct && !isAggregate(name) {
		return "", fmt.Errorf("dialect: DISTINCT is not allowed in %s", name)
	}
	if r, ok := b.funcs[name]; ok {
		return r(distinct, args), nil
	}
	return call(name)(distinct, args), nil
}

func isAggregate(name string) bool {
	switch name {
	case "AVG", "COUNT", "MAX", "MIN", "SUM":
		return true
	}
	return false
}
