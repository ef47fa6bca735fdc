package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema"
	"github.com/syssam/dql/schema/edge"
	"github.com/syssam/dql/schema/field"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	err := reg.Register(
		schema.Component{
			Name:  "User",
			Table: "user_table",
			Fields: []schema.Field{
				field.ID(),
				field.String("name").StorageKey("user_name"),
				field.Int("email_id"),
				field.Enum("status").Values("active", "banned"),
			},
			Edges: []schema.Edge{
				edge.HasMany("Phonenumber", "Phonenumber").Foreign("entity_id"),
				edge.HasOne("Email", "Email"),
				edge.ManyToMany("Group", "Group").Through("Groupuser", ""),
				edge.ManyToMany("Friend", "User").Through("UserFriend", "user_friend").Foreign("friend_id"),
			},
		},
		schema.Component{
			Name:   "Phonenumber",
			Fields: []schema.Field{field.ID(), field.String("phonenumber"), field.Int("entity_id")},
		},
		schema.Component{
			Name:   "Email",
			Fields: []schema.Field{field.ID(), field.String("address")},
		},
		schema.Component{
			Name:   "Group",
			Table:  "group_table",
			Fields: []schema.Field{field.ID(), field.String("name")},
		},
		schema.Component{
			Name:   "Groupuser",
			Fields: []schema.Field{field.ID(), field.Int("user_id"), field.Int("group_id")},
		},
		schema.Component{
			Name:   "UserFriend",
			Fields: []schema.Field{field.ID(), field.Int("user_id"), field.Int("friend_id")},
		},
	)
	require.NoError(t, err)
	return reg
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()
	reg := newRegistry(t)

	u, err := reg.Resolve("User")
	require.NoError(t, err)
	assert.Equal(t, "User", u.Component())
	assert.Equal(t, "user_table", u.Name())
	assert.Equal(t, []string{"id", "user_name", "email_id", "status"}, u.ColumnNames())
	assert.Equal(t, []string{"id"}, u.PrimaryKeys())
	assert.Equal(t, "id", u.Identifier())
	assert.Equal(t, schema.LimitRecords, u.QueryLimit())
	assert.Equal(t, schema.FetchImmediate, u.FetchMode())
	assert.Equal(t, 10, u.CollectionLimit())

	_, err = reg.Resolve("Nobody")
	assert.True(t, dql.IsUnknownComponent(err))

	p, err := reg.Resolve("Phonenumber")
	require.NoError(t, err)
	assert.Equal(t, "phonenumber", p.Name())
	ufr, err := reg.Resolve("UserFriend")
	require.NoError(t, err)
	assert.Equal(t, "user_friend", ufr.Name())

	assert.Equal(t, []string{"User", "Phonenumber", "Email", "Group", "Groupuser", "UserFriend"}, reg.Components())
	assert.Equal(t, 6, reg.Len())
}

func TestTableColumns(t *testing.T) {
	t.Parallel()
	u, err := newRegistry(t).Resolve("User")
	require.NoError(t, err)

	assert.True(t, u.HasColumn("name"))
	assert.True(t, u.HasColumn("user_name"))
	assert.False(t, u.HasColumn("nickname"))

	col, err := u.ColumnName("name")
	require.NoError(t, err)
	assert.Equal(t, "user_name", col)
	_, err = u.ColumnName("nickname")
	assert.True(t, dql.IsUnknownColumn(err))

	i, ok := u.EnumIndex("status", "banned")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = u.EnumIndex("status", "gone")
	assert.False(t, ok)
	_, ok = u.EnumIndex("name", "active")
	assert.False(t, ok)
}

func TestRelationDefaults(t *testing.T) {
	t.Parallel()
	u, err := newRegistry(t).Resolve("User")
	require.NoError(t, err)

	r, err := u.Relation("Phonenumber")
	require.NoError(t, err)
	assert.Equal(t, edge.O2M, r.Kind)
	assert.Equal(t, "id", r.Local)
	assert.Equal(t, "entity_id", r.Foreign)
	assert.False(t, r.IsOneToOne())

	r, err = u.Relation("Email")
	require.NoError(t, err)
	assert.True(t, r.IsOneToOne())
	assert.Equal(t, "email_id", r.Local)
	assert.Equal(t, "id", r.Foreign)

	r, err = u.Relation("Group")
	require.NoError(t, err)
	assert.True(t, r.IsManyToMany())
	assert.False(t, r.IsSelfReferencing())
	assert.Equal(t, "user_id", r.Local)
	assert.Equal(t, "group_id", r.Foreign)
	assert.Equal(t, &schema.Association{Component: "Groupuser", Table: "groupuser"}, r.Association)

	r, err = u.Relation("Friend")
	require.NoError(t, err)
	assert.True(t, r.IsSelfReferencing())
	assert.Equal(t, "friend_id", r.Foreign)

	_, err = u.Relation("NoSuchRelation")
	assert.True(t, dql.IsUnknownRelation(err))

	names := make([]string, 0, 4)
	for _, r := range u.Relations() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Phonenumber", "Email", "Group", "Friend"}, names)
}

func TestRegisterErrors(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	err := reg.Register(schema.Component{Fields: []schema.Field{field.ID()}})
	require.Error(t, err)

	err = reg.Register(schema.Component{Name: "A", Fields: []schema.Field{field.ID(), field.Int("id")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "id" declared twice`)

	err = reg.Register(schema.Component{Name: "B", Edges: []schema.Edge{edge.ManyToMany("C", "C")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires Through")

	require.NoError(t, reg.Register(schema.Component{Name: "D", Fields: []schema.Field{field.ID()}}))
	err = reg.Register(schema.Component{Name: "D"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")

	assert.Panics(t, func() { reg.MustRegister(schema.Component{Name: "D"}) })
}

func TestRegistryOptions(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry(schema.WithQueryLimit(schema.LimitRows), schema.WithCollectionLimit(3))
	reg.MustRegister(
		schema.Component{Name: "PhoneNumber", Fields: []schema.Field{field.ID()}},
		schema.Component{Name: "Other", Fields: []schema.Field{field.ID()}, QueryLimit: schema.LimitRecords, CollectionLimit: 7},
	)
	p, err := reg.Resolve("PhoneNumber")
	require.NoError(t, err)
	assert.Equal(t, "phone_number", p.Name())
	assert.Equal(t, schema.LimitRows, p.QueryLimit())
	assert.Equal(t, 3, p.CollectionLimit())

	o, err := reg.Resolve("Other")
	require.NoError(t, err)
	assert.Equal(t, schema.LimitRecords, o.QueryLimit())
	assert.Equal(t, 7, o.CollectionLimit())
}

func TestInheritance(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry().MustRegister(schema.Component{
		Name:        "Manager",
		Table:       "employee",
		Fields:      []schema.Field{field.ID(), field.Int("type"), field.Int("level")},
		Inheritance: map[string]any{"type": 1, "level": 2},
	})
	m, err := reg.Resolve("Manager")
	require.NoError(t, err)
	assert.Equal(t, []schema.Discriminator{{Column: "level", Value: 2}, {Column: "type", Value: 1}}, m.Inheritance())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	res := newRegistry(t).Validate()
	assert.False(t, res.HasErrors(), res.String())
	assert.NoError(t, res.Err())
	assert.Equal(t, "No issues found", res.String())

	reg := schema.NewRegistry().MustRegister(
		schema.Component{
			Name:        "User",
			Fields:      []schema.Field{field.ID()},
			Inheritance: map[string]any{"type": 0},
			Edges: []schema.Edge{
				edge.HasMany("Phonenumber", "Phonenumber"),
				edge.HasMany("Ghost", "Ghost"),
				edge.ManyToMany("Friend", "User").Through("Friendship", "friendship").Local("x").Foreign("x"),
			},
		},
		schema.Component{Name: "Phonenumber", Fields: []schema.Field{field.String("number")}},
		schema.Component{Name: "Shadow", Table: "user", Fields: []schema.Field{field.ID()}},
	)
	res = reg.Validate()
	require.True(t, res.HasErrors())
	require.True(t, res.HasWarnings())
	msgs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, "User.type: inheritance column is not declared")
	assert.Contains(t, msgs, "Phonenumber.user_id: relation Phonenumber: foreign key is not declared")
	assert.Contains(t, msgs, "User: relation Ghost: unknown target component Ghost")
	assert.Contains(t, msgs, "User.x: relation Friend: self-referencing association needs distinct keys")
	assert.Contains(t, msgs, "Phonenumber: no primary key")
	assert.Contains(t, res.String(), "Warnings:")
	assert.Contains(t, res.String(), "association component Friendship is not registered")
	assert.Contains(t, res.String(), "table user is shared with component User")
	assert.Error(t, res.Err())
}
