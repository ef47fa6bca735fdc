package schema

import (
	"fmt"
	"sort"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema/edge"
	"github.com/syssam/dql/schema/field"
)

// QueryLimit tells how LIMIT/OFFSET apply to statements rooted at a component.
type QueryLimit uint8

// Query limit strategies.
const (
	// LimitRows limits the joined rows.
	LimitRows QueryLimit = iota + 1
	// LimitRecords limits the distinct root records, rewriting the statement
	// with a key subquery when a to-many relation is joined.
	LimitRecords
)

// String returns the strategy name.
func (l QueryLimit) String() string {
	switch l {
	case LimitRows:
		return "rows"
	case LimitRecords:
		return "records"
	}
	return fmt.Sprintf("limit(%d)", l)
}

// FetchMode tells which columns of a component are selected when a
// statement does not list them.
type FetchMode uint8

// Fetch modes.
const (
	FetchImmediate FetchMode = iota
	FetchBatch
	FetchLazy
	FetchOffset
	FetchLazyOffset
)

// String returns the fetch mode name.
func (m FetchMode) String() string {
	switch m {
	case FetchImmediate:
		return "immediate"
	case FetchBatch:
		return "batch"
	case FetchLazy:
		return "lazy"
	case FetchOffset:
		return "offset"
	case FetchLazyOffset:
		return "lazyoffset"
	}
	return fmt.Sprintf("fetch(%d)", m)
}

// ParseFetchMode parses a fetch mode as written in a DQL path segment
// (User.Phonenumber-l) or a schema document.
func ParseFetchMode(s string) (FetchMode, error) {
	switch s {
	case "i", "immediate":
		return FetchImmediate, nil
	case "b", "batch":
		return FetchBatch, nil
	case "l", "lazy":
		return FetchLazy, nil
	case "o", "offset":
		return FetchOffset, nil
	case "lo", "lazyoffset":
		return FetchLazyOffset, nil
	}
	return 0, fmt.Errorf("schema: unknown fetch mode %q", s)
}

// Field is the interface implemented by field builders.
type Field interface {
	Descriptor() *field.Descriptor
}

// Edge is the interface implemented by relation builders.
type Edge interface {
	Descriptor() *edge.Descriptor
}

// Component is the declaration of a mapped component.
type Component struct {
	// Name of the component as written in DQL.
	Name string
	// Table name; defaults to the underscored component name.
	Table  string
	Fields []Field
	Edges  []Edge
	// Inheritance maps discriminator columns to the value identifying
	// this component in a table shared with other components.
	Inheritance map[string]any
	// QueryLimit defaults to the registry default (LimitRecords).
	QueryLimit QueryLimit
	FetchMode  FetchMode
	// CollectionLimit is the limit applied by the offset fetch modes.
	CollectionLimit int
}

// Column is a resolved column of a table.
type Column struct {
	Field    string // DQL field name.
	Name     string // storage column name.
	Type     field.Type
	Primary  bool
	Nillable bool
	Enums    []string
}

// Discriminator is one column/value pair of an inheritance map.
type Discriminator struct {
	Column string
	Value  any
}

// Relation is a directed, read-only edge between two components.
type Relation struct {
	Name    string
	Owner   string
	Target  string
	Kind    edge.Kind
	Local   string
	Foreign string
	// Association is set on many-to-many relations.
	Association *Association
}

// Association is the association table of a many-to-many relation.
type Association struct {
	Component string
	Table     string
}

// IsOneToOne reports whether the relation yields at most one target row.
func (r *Relation) IsOneToOne() bool {
	return r.Kind == edge.O2O
}

// IsManyToMany reports whether the relation goes through an association table.
func (r *Relation) IsManyToMany() bool {
	return r.Kind == edge.M2M
}

// IsSelfReferencing reports whether the relation points back to its owner.
func (r *Relation) IsSelfReferencing() bool {
	return r.Owner == r.Target
}

// Table is the resolved, read-only metadata of a component.
type Table struct {
	component       string
	name            string
	columns         []*Column
	relations       map[string]*Relation
	relationOrder   []string
	inheritance     []Discriminator
	queryLimit      QueryLimit
	fetchMode       FetchMode
	collectionLimit int
}

// Component returns the component name.
func (t *Table) Component() string { return t.component }

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column { return t.columns }

// ColumnNames returns the storage names of all columns in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeys returns the storage names of the primary key columns.
func (t *Table) PrimaryKeys() []string {
	var keys []string
	for _, c := range t.columns {
		if c.Primary {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Identifier returns the first primary key column.
func (t *Table) Identifier() string {
	if keys := t.PrimaryKeys(); len(keys) > 0 {
		return keys[0]
	}
	return ""
}

// Column returns the column declared with the given field or storage name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Field == name {
			return c, true
		}
	}
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasColumn reports whether name is a field or storage name of the table.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnName translates a field name to its storage column name.
// It returns an UnknownColumnError for names that are not declared.
func (t *Table) ColumnName(name string) (string, error) {
	c, ok := t.Column(name)
	if !ok {
		return "", dql.NewUnknownColumnError(t.component, name)
	}
	return c.Name, nil
}

// EnumIndex returns the index of value in the enum values of the field.
func (t *Table) EnumIndex(name, value string) (int, bool) {
	c, ok := t.Column(name)
	if !ok || c.Type != field.TypeEnum {
		return 0, false
	}
	for i, v := range c.Enums {
		if v == value {
			return i, true
		}
	}
	return 0, false
}

// Relation returns the relation with the given name.
func (t *Table) Relation(name string) (*Relation, error) {
	r, ok := t.relations[name]
	if !ok {
		return nil, dql.NewUnknownRelationError(t.component, name)
	}
	return r, nil
}

// Relations returns the relations in declaration order.
func (t *Table) Relations() []*Relation {
	rs := make([]*Relation, len(t.relationOrder))
	for i, name := range t.relationOrder {
		rs[i] = t.relations[name]
	}
	return rs
}

// Inheritance returns the discriminator columns sorted by column name.
func (t *Table) Inheritance() []Discriminator { return t.inheritance }

// QueryLimit returns the limit strategy of statements rooted at the table.
func (t *Table) QueryLimit() QueryLimit { return t.queryLimit }

// FetchMode returns the default fetch mode.
func (t *Table) FetchMode() FetchMode { return t.fetchMode }

// CollectionLimit returns the limit applied by the offset fetch modes.
func (t *Table) CollectionLimit() int { return t.collectionLimit }

func sortedDiscriminators(m map[string]any) []Discriminator {
	if len(m) == 0 {
		return nil
	}
	ds := make([]Discriminator, 0, len(m))
	for k, v := range m {
		ds = append(ds, Discriminator{Column: k, Value: v})
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].Column < ds[j].Column })
	return ds
}
