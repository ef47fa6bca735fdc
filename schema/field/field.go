package field

import "fmt"

// Type is the type of a field.
type Type uint8

// Field types.
const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeTime
	TypeEnum
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeEnum:    "enum",
}

// String returns the type name.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// ParseType parses a type name as used in schema documents.
func ParseType(s string) (Type, error) {
	switch s {
	case "int", "integer", "int64", "bigint":
		return TypeInt, nil
	case "float", "float64", "decimal", "double":
		return TypeFloat, nil
	case "string", "text", "varchar":
		return TypeString, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "time", "timestamp", "date", "datetime":
		return TypeTime, nil
	case "enum":
		return TypeEnum, nil
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", s)
}

// Descriptor holds the properties of a declared field.
type Descriptor struct {
	Name     string   // DQL name of the field.
	Column   string   // storage column, defaults to Name.
	Type     Type     // field type.
	Primary  bool     // part of the primary key.
	Nillable bool     // column accepts NULL.
	Enums    []string // enum values, stored as their index.
	Err      error
}

// Builder is the builder for fields.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Column: name, Type: t}}
}

// Int returns a new integer field builder.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Float returns a new float field builder.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// String returns a new string field builder.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Bool returns a new boolean field builder.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Time returns a new time field builder.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// Enum returns a new enum field builder. Enum values are stored as their
// index in the value list.
//
//	field.Enum("status").Values("active", "suspended")
func Enum(name string) *Builder { return newBuilder(name, TypeEnum) }

// ID returns the conventional integer primary key field named "id".
func ID() *Builder { return Int("id").Primary() }

// Primary marks the field as (part of) the primary key.
func (b *Builder) Primary() *Builder {
	b.desc.Primary = true
	return b
}

// StorageKey sets the storage column name of the field.
//
//	field.String("name").StorageKey("user_name")
func (b *Builder) StorageKey(column string) *Builder {
	b.desc.Column = column
	return b
}

// Nillable marks the column as accepting NULL.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Values sets the enum values of an enum field.
func (b *Builder) Values(values ...string) *Builder {
	if b.desc.Type != TypeEnum {
		b.desc.Err = fmt.Errorf("field %q: values are only allowed on enum fields", b.desc.Name)
		return b
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			b.desc.Err = fmt.Errorf("field %q: duplicate enum value %q", b.desc.Name, v)
			return b
		}
		seen[v] = struct{}{}
	}
	b.desc.Enums = append(b.desc.Enums, values...)
	return b
}

// Descriptor implements the schema.Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	if b.desc.Err == nil && b.desc.Name == "" {
		b.desc.Err = fmt.Errorf("field: missing name")
	}
	return b.desc
}
