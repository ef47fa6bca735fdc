package load

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema"
)

func TestFile(t *testing.T) {
	t.Parallel()
	reg, err := File(filepath.Join("testdata", "registry.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Phonenumber", "Email", "Group", "Groupuser", "Manager", "Clerk"}, reg.Components())

	user, err := reg.Resolve("User")
	require.NoError(t, err)
	assert.Equal(t, "user_table", user.Name())
	assert.Equal(t, schema.LimitRecords, user.QueryLimit())
	assert.Equal(t, 20, user.CollectionLimit())
	col, err := user.ColumnName("name")
	require.NoError(t, err)
	assert.Equal(t, "user_name", col)
	idx, ok := user.EnumIndex("status", "banned")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	rel, err := user.Relation("Phonenumber")
	require.NoError(t, err)
	assert.Equal(t, "id", rel.Local)
	assert.Equal(t, "entity_id", rel.Foreign)
	rel, err = user.Relation("Email")
	require.NoError(t, err)
	assert.True(t, rel.IsOneToOne())
	assert.Equal(t, "email_id", rel.Local)
	rel, err = user.Relation("Group")
	require.NoError(t, err)
	assert.True(t, rel.IsManyToMany())
	assert.Equal(t, "groupuser", rel.Association.Table)
	assert.Equal(t, "user_id", rel.Local)
	assert.Equal(t, "group_id", rel.Foreign)

	phone, err := reg.Resolve("Phonenumber")
	require.NoError(t, err)
	assert.Equal(t, "phonenumber", phone.Name())
	assert.Equal(t, schema.FetchLazy, phone.FetchMode())

	clerk, err := reg.Resolve("Clerk")
	require.NoError(t, err)
	assert.Equal(t, schema.LimitRows, clerk.QueryLimit())
	assert.Equal(t, []schema.Discriminator{{Column: "type", Value: 2}}, clerk.Inheritance())
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
		err  string
	}{
		{"empty", "", "empty registry document"},
		{"unknown key", "components:\n  - name: User\n    colour: red\n", "colour"},
		{"bad query limit", "query_limit: pages\ncomponents: []\n", `unknown query limit "pages"`},
		{"bad fetch mode", "components:\n  - name: User\n    fetch_mode: x\n    fields: [{name: id, type: int, primary: true}]\n", `unknown fetch mode "x"`},
		{"bad type", "components:\n  - name: User\n    fields: [{name: id, type: blob}]\n", `unknown type "blob"`},
		{"values on string", "components:\n  - name: User\n    fields: [{name: id, type: int, primary: true}, {name: s, type: string, values: [a]}]\n", "only allowed on enum"},
		{"bad relation kind", "components:\n  - name: User\n    fields: [{name: id, type: int, primary: true}]\n    relations: [{name: X, type: some}]\n", `unknown relation kind "some"`},
		{"association without through", "components:\n  - name: User\n    fields: [{name: id, type: int, primary: true}]\n    relations: [{name: Group, type: m2m}]\n", "requires Through"},
		{"no primary key", "components:\n  - name: User\n    fields: [{name: name, type: string}]\n", "no primary key"},
		{"unknown target", "components:\n  - name: User\n    fields: [{name: id, type: int, primary: true}]\n    relations: [{name: Phonenumber, type: many}]\n", "unknown target component Phonenumber"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Registry(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestFileMissing(t *testing.T) {
	t.Parallel()
	_, err := File(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
	assert.False(t, dql.IsCompileError(err))
}

func TestBuildWithoutValidation(t *testing.T) {
	t.Parallel()
	doc, err := Decode(strings.NewReader("components:\n  - name: User\n    fields: [{name: name, type: string}]\n"))
	require.NoError(t, err)
	reg, err := doc.Build()
	require.NoError(t, err)
	res := reg.Validate()
	assert.True(t, res.HasErrors())
	assert.Equal(t, "Errors:\n  - User: no primary key\n", res.String())
}
