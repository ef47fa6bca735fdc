package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketExplode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		delims []string
		want   []string
	}{
		{"(a AND b) OR c", []string{" OR "}, []string{"(a AND b)", "c"}},
		{"a OR (b OR c)", []string{" OR "}, []string{"a", "(b OR c)"}},
		{"a and b AND c", []string{" AND "}, []string{"a", "b", "c"}},
		{"a && b AND c", []string{" AND ", " && "}, []string{"a", "b", "c"}},
		{"  a   b ", nil, []string{"a", "b"}},
		{"", nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BracketExplode(tt.in, tt.delims...), tt.in)
	}
}

func TestQuoteExplode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"name", "=", "'a b'", "AND", "x"}, QuoteExplode("name = 'a b' AND x"))
	assert.Equal(t, []string{"'a, b'", "c"}, QuoteExplode("'a, b', c", ","))
}

func TestSQLExplode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"name", "LIKE", "'foo bar'"}, SQLExplode("name LIKE 'foo bar'"))
	assert.Equal(t, []string{"u.id", "IN", "(1, 2)"}, SQLExplode("u.id IN (1, 2)"))
	assert.Equal(t, []string{"`a b`", "=", `"c d"`}, SQLExplode("`a b` = \"c d\""))
}

func TestBracketTrim(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a", BracketTrim("(a)"))
	assert.Equal(t, "(a)", BracketTrim("((a))"))
	assert.Equal(t, "(a) AND (b)", BracketTrim("(a) AND (b)"))
	assert.Equal(t, "a = ')'", BracketTrim("(a = ')')"))
	assert.Equal(t, "a", BracketTrim("a"))
}

func TestIndexOperator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in  string
		pos int
		op  string
	}{
		{"u.id >= 5", 5, ">="},
		{"f(a=b) = c", 7, "="},
		{"'a=b' <> x", 6, "<>"},
		{"u.id != 1", 5, "!="},
		{"u.id IN (1)", -1, ""},
	}
	for _, tt := range tests {
		pos, op := indexOperator(tt.in)
		assert.Equal(t, tt.pos, pos, tt.in)
		assert.Equal(t, tt.op, op, tt.in)
	}
}

func TestReplaceWords(t *testing.T) {
	t.Parallel()
	var calls []string
	out, err := replaceWords("COUNT(u.id) + 'u.x' + :name + 1.5 + u.*", func(w string, call bool) (string, error) {
		if call {
			calls = append(calls, w)
		}
		return "<" + w + ">", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "<COUNT>(<u.id>) + 'u.x' + :name + 1.5 + <u.*>", out)
	assert.Equal(t, []string{"COUNT"}, calls)

	_, err = replaceWords("a b", func(w string, _ bool) (string, error) {
		return "", assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMarkJoin(t *testing.T) {
	t.Parallel()
	got, err := markJoin("u.Phonenumber p ON p.x = 1", JoinInner)
	require.NoError(t, err)
	assert.Equal(t, "u:Phonenumber p ON p.x = 1", got)
	got, err = markJoin("u:Group.Phonenumber(id, phonenumber)", JoinInner)
	require.NoError(t, err)
	assert.Equal(t, "u:Group:Phonenumber(id, phonenumber)", got)
	got, err = markJoin("u:Group", JoinLeft)
	require.NoError(t, err)
	assert.Equal(t, "u.Group", got)
	_, err = markJoin("User", JoinLeft)
	assert.Error(t, err)
}

func TestParseSegments(t *testing.T) {
	t.Parallel()
	segs, err := parseSegments("User.Phonenumber-l:Group(id,name)")
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "User", segs[0].name)
	assert.Equal(t, "Phonenumber", segs[1].name)
	assert.Equal(t, "l", segs[1].mode)
	assert.False(t, segs[1].inner)
	assert.Equal(t, "Group", segs[2].name)
	assert.True(t, segs[2].inner)
	assert.Equal(t, []string{"id", "name"}, segs[2].fields)

	_, err = parseSegments("User..Phonenumber")
	assert.Error(t, err)
	_, err = parseSegments("User(id")
	assert.True(t, strings.Contains(err.Error(), "unterminated"))
}
