package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dql/schema/field"
)

func TestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		b    *field.Builder
		want field.Descriptor
	}{
		{field.ID(), field.Descriptor{Name: "id", Column: "id", Type: field.TypeInt, Primary: true}},
		{field.String("name").StorageKey("user_name"), field.Descriptor{Name: "name", Column: "user_name", Type: field.TypeString}},
		{field.Float("price").Nillable(), field.Descriptor{Name: "price", Column: "price", Type: field.TypeFloat, Nillable: true}},
		{field.Bool("active"), field.Descriptor{Name: "active", Column: "active", Type: field.TypeBool}},
		{field.Time("created_at"), field.Descriptor{Name: "created_at", Column: "created_at", Type: field.TypeTime}},
		{field.Enum("status").Values("a", "b"), field.Descriptor{Name: "status", Column: "status", Type: field.TypeEnum, Enums: []string{"a", "b"}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, *tt.b.Descriptor())
	}
}

func TestValuesErrors(t *testing.T) {
	t.Parallel()

	d := field.String("name").Values("a").Descriptor()
	require.Error(t, d.Err)
	assert.Contains(t, d.Err.Error(), "only allowed on enum fields")

	d = field.Enum("status").Values("a", "a").Descriptor()
	require.Error(t, d.Err)
	assert.Contains(t, d.Err.Error(), `duplicate enum value "a"`)

	d = field.Int("").Descriptor()
	require.Error(t, d.Err)
}

func TestParseType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]field.Type{
		"integer": field.TypeInt,
		"int":     field.TypeInt,
		"decimal": field.TypeFloat,
		"text":    field.TypeString,
		"boolean": field.TypeBool,
		"date":    field.TypeTime,
		"enum":    field.TypeEnum,
	} {
		got, err := field.ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := field.ParseType("blob")
	require.Error(t, err)
	assert.Equal(t, "int", field.TypeInt.String())
	assert.Equal(t, "type(42)", field.Type(42).String())
}
