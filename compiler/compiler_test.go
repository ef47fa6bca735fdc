package compiler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dql"
	"github.com/syssam/dql/dialect"
	"github.com/syssam/dql/query"
	"github.com/syssam/dql/schema"
	"github.com/syssam/dql/schema/edge"
	"github.com/syssam/dql/schema/field"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(
		schema.Component{
			Name:   "User",
			Fields: []schema.Field{field.ID(), field.String("name")},
			Edges:  []schema.Edge{edge.HasMany("Phonenumber", "Phonenumber")},
		},
		schema.Component{
			Name:   "Phonenumber",
			Fields: []schema.Field{field.ID(), field.String("phonenumber"), field.Int("user_id")},
		},
	))
	return reg
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNew(t *testing.T) {
	t.Parallel()
	reg := testRegistry(t)
	tests := []struct {
		name string
		opts []Option
	}{
		{"nil logger", []Option{WithLogger(nil)}},
		{"nil cache", []Option{WithCache(nil, 0)}},
		{"negative ttl", []Option{WithCache(NewMemoryCache(), -1)}},
		{"no workers", []Option{WithWorkers(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(reg, dialect.NewSQLite(), tt.opts...)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
	_, err := New(nil, dialect.NewSQLite())
	assert.True(t, IsConfigError(err))

	c, err := New(reg, dialect.NewSQLite(), WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 2, c.cfg.Workers)
	assert.Equal(t, dialect.SQLite, c.Dialect().Name())
}

func TestCompile(t *testing.T) {
	t.Parallel()
	c, err := New(testRegistry(t), dialect.NewSQLite())
	require.NoError(t, err)
	got, err := c.Compile(context.Background(), "SELECT u.name FROM User u WHERE u.id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT u.id AS u__id, u.name AS u__name FROM user u WHERE u.id = ?", got.SQL)
	assert.Equal(t, []any{1}, got.Args)

	_, err = c.Compile(context.Background(), "SELECT x.name FROM Nobody x")
	assert.True(t, dql.IsUnknownComponent(err))
}

func TestCompileCache(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cache := NewMemoryCache()
	c, err := New(testRegistry(t), dialect.NewSQLite(), WithCache(cache, 0), WithLogger(debugLogger(&buf)))
	require.NoError(t, err)
	ctx := context.Background()

	stmts := []struct {
		dql  string
		args []any
	}{
		{"SELECT u.name FROM User u WHERE u.name = ?", []any{"a"}},
		{"SELECT u.name, p.phonenumber FROM User u LEFT JOIN u.Phonenumber p WHERE p.phonenumber LIKE ? LIMIT 2", []any{"1%"}},
		{"SELECT u.name, COUNT(p.id) num FROM User u LEFT JOIN u.Phonenumber p GROUP BY u.id", nil},
	}
	for _, stmt := range stmts {
		fresh, err := c.Compile(ctx, stmt.dql, stmt.args...)
		require.NoError(t, err)
		cached, err := c.Compile(ctx, stmt.dql, stmt.args...)
		require.NoError(t, err)
		assert.Equal(t, fresh, cached)
	}
	assert.Equal(t, len(stmts), cache.Len())
	assert.Contains(t, buf.String(), "dql: cache hit")

	// The cached limit subquery statement binds new arguments in both statements.
	got, err := c.Compile(ctx, stmts[1].dql, "2%")
	require.NoError(t, err)
	assert.Equal(t, []any{"2%", "2%"}, got.Args)

	count, err := c.Count(ctx, stmts[1].dql, "3%")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(DISTINCT u.id) FROM user u LEFT JOIN phonenumber p ON u.id = p.user_id WHERE p.phonenumber LIKE ?", count.SQL)
	assert.Equal(t, []any{"3%"}, count.Args)
	count, err = c.Count(ctx, stmts[1].dql, "4%")
	require.NoError(t, err)
	assert.Equal(t, []any{"4%"}, count.Args)
}

type loaderFunc func(ctx context.Context, query string, args []any) ([]any, error)

func (f loaderFunc) LoadKeys(ctx context.Context, query string, args []any) ([]any, error) {
	return f(ctx, query, args)
}

func TestCompileEagerNotCached(t *testing.T) {
	t.Parallel()
	var calls int
	loader := loaderFunc(func(_ context.Context, _ string, args []any) ([]any, error) {
		calls++
		assert.Equal(t, []any{"1%"}, args)
		return []any{int64(calls)}, nil
	})
	cache := NewMemoryCache()
	c, err := New(testRegistry(t), dialect.NewMySQL(), WithCache(cache, 0), WithKeyLoader(loader))
	require.NoError(t, err)
	stmt := "SELECT u.name, p.phonenumber FROM User u LEFT JOIN u.Phonenumber p WHERE p.phonenumber LIKE ? LIMIT 2"
	first, err := c.Compile(context.Background(), stmt, "1%")
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), stmt, "1%")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, first.SQL, "WHERE u.id IN (1) AND")
	assert.Contains(t, second.SQL, "WHERE u.id IN (2) AND")
	assert.Zero(t, cache.Len())
}

func TestCompileAll(t *testing.T) {
	t.Parallel()
	c, err := New(testRegistry(t), dialect.NewPostgres(), WithWorkers(2))
	require.NoError(t, err)
	out, err := c.CompileAll(context.Background(),
		"SELECT u.name FROM User u",
		"SELECT n.name FROM Nobody n",
		"DELETE FROM Phonenumber p WHERE p.id = 1",
		"SELECT u.nope FROM User u",
	)
	require.Len(t, out, 4)
	assert.Equal(t, "SELECT u.id AS u__id, u.name AS u__name FROM user u", out[0].SQL)
	assert.Nil(t, out[1])
	assert.Equal(t, "DELETE FROM phonenumber WHERE id = 1", out[2].SQL)
	assert.Nil(t, out[3])
	require.Error(t, err)
	assert.True(t, dql.IsUnknownComponent(err))
	assert.True(t, dql.IsUnknownColumn(err))
	assert.Contains(t, err.Error(), "statement 1")
	assert.Contains(t, err.Error(), "statement 3")
	serrs := StatementErrors(err)
	require.Len(t, serrs, 2)
	assert.Equal(t, 1, serrs[0].Index)
	assert.Equal(t, "SELECT n.name FROM Nobody n", serrs[0].Statement)
	assert.Equal(t, 3, serrs[1].Index)
	assert.Nil(t, StatementErrors(nil))
}

func TestCompileAllCanceled(t *testing.T) {
	t.Parallel()
	c, err := New(testRegistry(t), dialect.NewSQLite())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := c.CompileAll(ctx, "SELECT u.name FROM User u")
	require.Len(t, out, 1)
	assert.Nil(t, out[0])
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBind(t *testing.T) {
	t.Parallel()
	nested := &query.Compiled{SQL: "q", Args: []any{"j", "c", "j", "c", "b"}, Binds: []int{0, 1, 0, 1, -1}, LimitSubquery: true}
	stripped := unbind(nested)
	assert.Equal(t, []any{nil, nil, nil, nil, "b"}, stripped.Args)
	assert.Equal(t, []any{"j", "c", "j", "c", "b"}, nested.Args)
	assert.Equal(t, nested.Args, bind(stripped, []any{"j", "c"}).Args)
	assert.Equal(t, []any{"x", "y", "x", "y", "b"}, bind(stripped, []any{"x", "y"}).Args)

	flat := &query.Compiled{SQL: "q", Args: []any{"w"}, Binds: []int{-1}}
	assert.Equal(t, flat.Args, unbind(flat).Args)
	assert.Equal(t, flat.Args, bind(flat, nil).Args)
}

func TestCompileCachePlaceholderOrder(t *testing.T) {
	t.Parallel()
	c, err := New(testRegistry(t), dialect.NewSQLite(), WithCache(NewMemoryCache(), 0))
	require.NoError(t, err)
	ctx := context.Background()

	const stmt = "SELECT u.name, (SELECT COUNT(p2.id) FROM Phonenumber p2 WHERE p2.phonenumber = ?) AS n, p.phonenumber " +
		"FROM User u LEFT JOIN u.Phonenumber p ON p.phonenumber = ? WHERE u.name = ? LIMIT 2"
	for _, args := range [][]any{{"SEL", "ON", "WHERE"}, {"s", "o", "w"}} {
		got, err := c.Compile(ctx, stmt, args...)
		require.NoError(t, err)
		sel, on, where := args[0], args[1], args[2]
		// select list, outer join, limit subquery join and WHERE, outer WHERE
		assert.Equal(t, []any{sel, on, on, where, where}, got.Args)
	}
}

func TestCompileCacheLiterals(t *testing.T) {
	t.Parallel()
	cache := NewMemoryCache()
	c, err := New(testRegistry(t), dialect.NewSQLite(), WithCache(cache, 0))
	require.NoError(t, err)
	ctx := context.Background()

	wide, err := c.Compile(ctx, "SELECT u.name FROM User u WHERE u.name = 'a  b'")
	require.NoError(t, err)
	narrow, err := c.Compile(ctx, "SELECT u.name FROM User u WHERE u.name = 'a b'")
	require.NoError(t, err)
	assert.Equal(t, "SELECT u.id AS u__id, u.name AS u__name FROM user u WHERE u.name = 'a  b'", wide.SQL)
	assert.Equal(t, "SELECT u.id AS u__id, u.name AS u__name FROM user u WHERE u.name = 'a b'", narrow.SQL)
	assert.Equal(t, 2, cache.Len())

	spaced, err := c.Compile(ctx, "SELECT u.name\n  FROM User u WHERE u.name = 'a b'")
	require.NoError(t, err)
	assert.Equal(t, narrow, spaced)
	assert.Equal(t, 2, cache.Len())
}
