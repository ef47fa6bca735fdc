package compiler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dql/query"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemoryCache()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "dql:sqlite3:a", []byte("a"), 0))
	require.NoError(t, m.Set(ctx, "dql:sqlite3:b", []byte("b"), time.Minute))
	require.NoError(t, m.Set(ctx, "dql:mysql:c", []byte("c"), 0))

	v, err := m.Get(ctx, "dql:sqlite3:b")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), v)

	now = now.Add(time.Minute)
	v, err = m.Get(ctx, "dql:sqlite3:b")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.DeletePrefix(ctx, "dql:sqlite3:"))
	v, _ = m.Get(ctx, "dql:sqlite3:a")
	assert.Nil(t, v)
	v, _ = m.Get(ctx, "dql:mysql:c")
	assert.Equal(t, []byte("c"), v)

	require.NoError(t, m.Delete(ctx, "dql:mysql:c"))
	assert.Zero(t, m.Len())
	require.NoError(t, m.Set(ctx, "x", []byte("x"), 0))
	require.NoError(t, m.Clear(ctx))
	assert.Zero(t, m.Len())
}

func TestEncode(t *testing.T) {
	t.Parallel()
	c := &query.Compiled{
		SQL:           "SELECT u.id AS u__id, COUNT(p.id) AS p__0 FROM user u",
		Args:          []any{"a"},
		Aggregates:    map[string]string{"num": "p__0"},
		LimitSubquery: true,
	}
	b, err := Encode(c)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = Decode([]byte{0xc1})
	assert.Error(t, err)
}
