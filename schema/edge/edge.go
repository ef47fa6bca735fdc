package edge

import "fmt"

// Kind is the cardinality of a relation.
type Kind uint8

// Relation kinds.
const (
	O2O Kind = iota + 1 // one-to-one
	O2M                 // one-to-many
	M2M                 // many-to-many through an association table
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2M:
		return "M2M"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind parses a relation kind as used in schema documents.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "one", "o2o", "O2O", "has_one", "hasOne":
		return O2O, nil
	case "many", "o2m", "O2M", "has_many", "hasMany":
		return O2M, nil
	case "association", "m2m", "M2M", "many_to_many", "manyToMany":
		return M2M, nil
	}
	return 0, fmt.Errorf("edge: unknown relation kind %q", s)
}

// Through describes the association table of a many-to-many relation.
type Through struct {
	Component string // component name of the association, used in join paths.
	Table     string // association table, resolved from Component if empty.
}

// Descriptor holds the properties of a declared relation.
//
// For O2O and O2M relations Local is a column of the owner and Foreign a
// column of the target. For M2M relations both are columns of the
// association table: Local references the owner, Foreign the target.
type Descriptor struct {
	Name    string
	Target  string
	Kind    Kind
	Local   string
	Foreign string
	Through *Through
	Err     error
}

// Builder is the builder for relations.
type Builder struct {
	desc *Descriptor
}

// HasOne returns a new one-to-one relation builder.
//
//	edge.HasOne("Email", "Email").Local("email_id").Foreign("id")
func HasOne(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Target: target, Kind: O2O}}
}

// HasMany returns a new one-to-many relation builder.
//
//	edge.HasMany("Phonenumber", "Phonenumber").Local("id").Foreign("entity_id")
func HasMany(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Target: target, Kind: O2M}}
}

// ManyToMany returns a new many-to-many relation builder. The association
// is set with Through.
//
//	edge.ManyToMany("Group", "Group").Through("Groupuser", "groupuser").Local("user_id").Foreign("group_id")
func ManyToMany(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Target: target, Kind: M2M}}
}

// Local sets the local key column.
func (b *Builder) Local(column string) *Builder {
	b.desc.Local = column
	return b
}

// Foreign sets the foreign key column.
func (b *Builder) Foreign(column string) *Builder {
	b.desc.Foreign = column
	return b
}

// Through sets the association component and table of a many-to-many relation.
func (b *Builder) Through(component, table string) *Builder {
	if b.desc.Kind != M2M {
		b.desc.Err = fmt.Errorf("edge %q: Through is only allowed on many-to-many relations", b.desc.Name)
		return b
	}
	b.desc.Through = &Through{Component: component, Table: table}
	return b
}

// Descriptor implements the schema.Edge interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	switch {
	case b.desc.Err != nil:
	case b.desc.Name == "" || b.desc.Target == "":
		b.desc.Err = fmt.Errorf("edge: missing name or target")
	case b.desc.Kind == M2M && b.desc.Through == nil:
		b.desc.Err = fmt.Errorf("edge %q: many-to-many relation requires Through", b.desc.Name)
	}
	return b.desc
}
