package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/dql/dialect"
	"github.com/syssam/dql/query"
	"github.com/syssam/dql/schema"
	"github.com/syssam/dql/schema/edge"
	"github.com/syssam/dql/schema/field"
)

// components is the model shared by the query tests:
//
//	User 1-n Phonenumber, User 1-1 Email, User n-m Group (groupuser),
//	User n-m User as Friend (user_friend), Manager/Clerk sharing employee.
func components() []schema.Component {
	return []schema.Component{
		{
			Name:  "User",
			Table: "user_table",
			Fields: []schema.Field{
				field.ID(),
				field.String("name").StorageKey("user_name"),
				field.Int("email_id").Nillable(),
				field.Enum("status").Values("active", "banned"),
			},
			Edges: []schema.Edge{
				edge.HasMany("Phonenumber", "Phonenumber").Foreign("entity_id"),
				edge.HasOne("Email", "Email"),
				edge.ManyToMany("Group", "Group").Through("Groupuser", ""),
				edge.ManyToMany("Friend", "User").Through("UserFriend", "user_friend").Foreign("friend_id"),
			},
		},
		{
			Name:   "Phonenumber",
			Fields: []schema.Field{field.ID(), field.String("phonenumber"), field.Int("entity_id")},
		},
		{
			Name:   "Email",
			Fields: []schema.Field{field.ID(), field.String("address")},
		},
		{
			Name:   "Group",
			Table:  "group_table",
			Fields: []schema.Field{field.ID(), field.String("name")},
			Edges: []schema.Edge{
				edge.ManyToMany("User", "User").Through("Groupuser", "").Local("group_id").Foreign("user_id"),
			},
		},
		{
			Name:   "Groupuser",
			Fields: []schema.Field{field.ID(), field.Int("user_id"), field.Int("group_id")},
		},
		{
			Name:   "UserFriend",
			Table:  "user_friend",
			Fields: []schema.Field{field.ID(), field.Int("user_id"), field.Int("friend_id")},
		},
		{
			Name:        "Manager",
			Table:       "employee",
			Fields:      []schema.Field{field.ID(), field.String("name"), field.Int("type")},
			Edges:       []schema.Edge{edge.HasMany("Clerk", "Clerk").Foreign("manager_id")},
			Inheritance: map[string]any{"type": 1},
		},
		{
			Name:        "Clerk",
			Table:       "employee",
			Fields:      []schema.Field{field.ID(), field.String("name"), field.Int("type"), field.Int("manager_id")},
			Inheritance: map[string]any{"type": 2},
			QueryLimit:  schema.LimitRows,
		},
	}
}

func newRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(components()...))
	return reg
}

// compile parses stmt for the dialect and returns the compiled statement.
func compile(t *testing.T, d dialect.Dialect, stmt string, args ...any) *query.Compiled {
	t.Helper()
	q := query.New(newRegistry(t), d)
	require.NoError(t, q.Parse(stmt))
	c, err := q.Compile(context.Background(), args...)
	require.NoError(t, err)
	return c
}
