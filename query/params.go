package query

import (
	"strconv"
	"strings"
)

// paramSlot is a placeholder of the statement. Bound slots hold a value
// given to a builder method; the others take the next Compile argument.
type paramSlot struct {
	value any
	bound bool
}

// numberPlaceholders rewrites every "?" of s found outside quoted literals
// as "?n", numbering from first, and returns the number of placeholders it
// rewrote. The clause parsers copy numbered placeholders unchanged, so each
// one keeps naming its value wherever the rendering moves or repeats it.
// Placeholders already numbered, as in the text of a nested statement, are
// left alone.
func numberPlaceholders(s string, first int) (string, int) {
	if !strings.Contains(s, "?") {
		return s, 0
	}
	var (
		b     strings.Builder
		quote byte
		n     int
	)
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		b.WriteByte(c)
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?' && (i+1 == len(s) || !isDigit(s[i+1])):
			b.WriteString(strconv.Itoa(first + n))
			n++
		}
	}
	return b.String(), n
}

// addSlots records the n placeholders of a fragment. The fragment's bound
// values fill its first placeholders; values left over are kept for the
// end of the argument list.
func (s *state) addSlots(n int, bound []any) {
	for i := range n {
		if i < len(bound) {
			s.slots = append(s.slots, paramSlot{value: bound[i], bound: true})
		} else {
			s.slots = append(s.slots, paramSlot{})
		}
	}
	if len(bound) > n {
		s.extra = append(s.extra, bound[n:]...)
	}
}

// bindArgs turns the numbered placeholders of sql back into "?" and returns
// the values they bind in order of appearance. A placeholder rendered twice
// binds its value twice; one dropped with its clause binds nothing. binds
// holds, for every value, the index of the Compile argument it came from,
// or -1. With trailing set, arguments beyond the placeholders of the
// statement are appended after the values.
func (s *state) bindArgs(sql string, args []any, trailing bool) (string, []any, []int) {
	type value struct {
		v     any
		index int
		ok    bool
	}
	values := make([]value, len(s.slots))
	next := 0
	for i, slot := range s.slots {
		switch {
		case slot.bound:
			values[i] = value{v: slot.value, index: -1, ok: true}
		case next < len(args):
			values[i] = value{v: args[next], index: next, ok: true}
			next++
		}
	}
	var (
		out   []any
		binds []int
	)
	if len(s.slots) > 0 {
		var (
			b     strings.Builder
			quote byte
		)
		b.Grow(len(sql))
		for i := 0; i < len(sql); i++ {
			c := sql[i]
			b.WriteByte(c)
			switch {
			case quote != 0:
				if c == quote {
					quote = 0
				}
			case c == '\'' || c == '"' || c == '`':
				quote = c
			case c == '?':
				j := i + 1
				for j < len(sql) && isDigit(sql[j]) {
					j++
				}
				n, err := strconv.Atoi(sql[i+1 : j])
				if err != nil || n >= len(values) {
					continue
				}
				if v := values[n]; v.ok {
					out = append(out, v.v)
					binds = append(binds, v.index)
				}
				i = j - 1
			}
		}
		sql = b.String()
	}
	if trailing {
		for _, v := range s.extra {
			out = append(out, v)
			binds = append(binds, -1)
		}
		for i := next; i < len(args); i++ {
			out = append(out, args[i])
			binds = append(binds, i)
		}
	}
	return sql, out, binds
}
