package query_test

import (
	"context"
	stdsql "database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/dql/dialect"
	"github.com/syssam/dql/query"
)

var fixtureDDL = []string{
	"CREATE TABLE user_table (id INTEGER PRIMARY KEY, user_name TEXT, email_id INTEGER, status INTEGER)",
	"CREATE TABLE phonenumber (id INTEGER PRIMARY KEY, phonenumber TEXT, entity_id INTEGER)",
	"CREATE TABLE email (id INTEGER PRIMARY KEY, address TEXT)",
	"CREATE TABLE group_table (id INTEGER PRIMARY KEY, name TEXT)",
	"CREATE TABLE groupuser (id INTEGER PRIMARY KEY, user_id INTEGER, group_id INTEGER)",
	"CREATE TABLE user_friend (id INTEGER PRIMARY KEY, user_id INTEGER, friend_id INTEGER)",
	"CREATE TABLE employee (id INTEGER PRIMARY KEY, name TEXT, type INTEGER, manager_id INTEGER)",
	"INSERT INTO user_table VALUES (1, 'zYne', 1, 0), (2, 'Arnold', NULL, 0), (3, 'Jean', NULL, 1)",
	"INSERT INTO phonenumber VALUES (1, '123', 1), (2, '456', 1), (3, '789', 2), (4, '555', 3), (5, '556', 3)",
	"INSERT INTO email VALUES (1, 'zyne@example.com')",
	"INSERT INTO group_table VALUES (1, 'admins'), (2, 'users')",
	"INSERT INTO groupuser VALUES (1, 1, 1), (2, 1, 2), (3, 2, 2)",
	"INSERT INTO user_friend VALUES (1, 1, 2), (2, 3, 1)",
	"INSERT INTO employee VALUES (1, 'boss', 1, NULL), (2, 'clerk a', 2, 1), (3, 'clerk b', 2, 1), (4, 'other boss', 1, NULL)",
}

func openFixtureDB(t *testing.T) *stdsql.DB {
	t.Helper()
	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range fixtureDDL {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

// column reads one column of every row of a compiled statement.
func column(t *testing.T, db *stdsql.DB, c *query.Compiled, name string) []any {
	t.Helper()
	rows, err := db.Query(c.SQL, c.Args...)
	require.NoError(t, err, c.SQL)
	defer rows.Close()
	cols, err := rows.Columns()
	require.NoError(t, err)
	idx := -1
	for i, col := range cols {
		if col == name {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0, "column %s not in %v", name, cols)
	var out []any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, vals[idx])
	}
	require.NoError(t, rows.Err())
	return out
}

func TestSQLiteExecution(t *testing.T) {
	t.Parallel()
	db := openFixtureDB(t)
	d := dialect.NewSQLite()

	t.Run("limit subquery limits records", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, p.phonenumber FROM User u LEFT JOIN u.Phonenumber p ORDER BY u.id LIMIT 2")
		require.True(t, c.LimitSubquery)
		assert.Equal(t, []any{int64(1), int64(1), int64(2)}, column(t, db, c, "u__id"))
		assert.ElementsMatch(t, []any{"123", "456", "789"}, column(t, db, c, "p__phonenumber"))
	})
	t.Run("limit subquery with filter and offset", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, p.phonenumber FROM User u LEFT JOIN u.Phonenumber p WHERE p.phonenumber LIKE ? ORDER BY u.id LIMIT 1 OFFSET 1", "%5%")
		assert.Equal(t, []any{int64(3), int64(3)}, column(t, db, c, "u__id"))
	})
	t.Run("enum", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name FROM User u WHERE u.status = 'banned'")
		assert.Equal(t, []any{"Jean"}, column(t, db, c, "u__user_name"))
	})
	t.Run("many to many", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, g.name FROM User u INNER JOIN u.Group g WHERE g.name = 'users' ORDER BY u.id")
		assert.Equal(t, []any{"zYne", "Arnold"}, column(t, db, c, "u__user_name"))
	})
	t.Run("self referencing", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, f.name FROM User u INNER JOIN u.Friend f WHERE u.id = 1 ORDER BY f.id")
		// Friendships are read in both directions.
		assert.Equal(t, []any{int64(1), int64(1), int64(2), int64(3)}, column(t, db, c, "u3__id"))
	})
	t.Run("related contains", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name FROM User u WHERE u.Phonenumber.phonenumber.contains('123', '456')")
		assert.Equal(t, []any{"zYne"}, column(t, db, c, "u__user_name"))
	})
	t.Run("aggregate", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, COUNT(p.id) num FROM User u LEFT JOIN u.Phonenumber p GROUP BY u.id HAVING num > 1 ORDER BY u.id")
		assert.Equal(t, []any{int64(2), int64(2)}, column(t, db, c, c.Aggregates["num"]))
	})
	t.Run("inheritance", func(t *testing.T) {
		c := compile(t, d, "SELECT m.name, c.name FROM Manager m LEFT JOIN m.Clerk c ORDER BY m.id, c.id")
		assert.Equal(t, []any{"boss", "boss", "other boss"}, column(t, db, c, "e__name"))
	})
	t.Run("placeholder in select subquery", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, (SELECT COUNT(e.id) FROM Email e WHERE e.address = ?) AS n, p.phonenumber "+
			"FROM User u LEFT JOIN u.Phonenumber p WHERE u.name = ? ORDER BY n, u.id LIMIT 2", "zyne@example.com", "zYne")
		require.True(t, c.LimitSubquery)
		assert.Equal(t, []any{int64(1), int64(1)}, column(t, db, c, c.Aggregates["n"]))
		assert.ElementsMatch(t, []any{"123", "456"}, column(t, db, c, "p__phonenumber"))
	})
	t.Run("placeholder in join condition", func(t *testing.T) {
		c := compile(t, d, "SELECT u.name, p.phonenumber FROM User u LEFT JOIN u.Phonenumber p ON p.phonenumber = ? "+
			"WHERE u.name = ? LIMIT 2", "456", "zYne")
		require.True(t, c.LimitSubquery)
		assert.Equal(t, []any{"456"}, column(t, db, c, "p__phonenumber"))

		q := query.New(newRegistry(t), d)
		require.NoError(t, q.Parse("SELECT u.name, p.phonenumber FROM User u INNER JOIN u.Phonenumber p ON p.phonenumber LIKE ? WHERE u.name <> ?"))
		count, err := q.CompileCount("5%", "Arnold")
		require.NoError(t, err)
		var n int
		require.NoError(t, db.QueryRowContext(context.Background(), count.SQL, count.Args...).Scan(&n))
		assert.Equal(t, 1, n)
	})
	t.Run("count", func(t *testing.T) {
		q := query.New(newRegistry(t), d)
		require.NoError(t, q.Parse("SELECT u.name, p.phonenumber FROM User u LEFT JOIN u.Phonenumber p WHERE p.phonenumber LIKE ?"))
		c, err := q.CompileCount("5%")
		require.NoError(t, err)
		var n int
		require.NoError(t, db.QueryRowContext(context.Background(), c.SQL, c.Args...).Scan(&n))
		assert.Equal(t, 1, n)
	})
}
