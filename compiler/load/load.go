// Package load reads component registries from YAML documents.
//
// A document lists the components a DQL statement may reference:
//
//	query_limit: records
//	components:
//	  - name: User
//	    table: user_table
//	    fields:
//	      - {name: id, type: int, primary: true}
//	      - {name: name, type: string, column: user_name}
//	      - {name: status, type: enum, values: [active, banned]}
//	    relations:
//	      - {name: Phonenumber, type: many, foreign: entity_id}
//	      - {name: Group, type: many_to_many, through: {component: Groupuser}}
//
// A relation target defaults to the relation name. Unknown keys are rejected.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/dql/schema"
	"github.com/syssam/dql/schema/edge"
	"github.com/syssam/dql/schema/field"
)

// Document is a registry document.
type Document struct {
	QueryLimit      string       `yaml:"query_limit,omitempty"`
	CollectionLimit int          `yaml:"collection_limit,omitempty"`
	Components      []*Component `yaml:"components"`
}

// Component is a component declaration of a Document.
type Component struct {
	Name            string         `yaml:"name"`
	Table           string         `yaml:"table,omitempty"`
	QueryLimit      string         `yaml:"query_limit,omitempty"`
	FetchMode       string         `yaml:"fetch_mode,omitempty"`
	CollectionLimit int            `yaml:"collection_limit,omitempty"`
	Inheritance     map[string]any `yaml:"inheritance,omitempty"`
	Fields          []*Field       `yaml:"fields"`
	Relations       []*Relation    `yaml:"relations,omitempty"`
}

// Field is a field declaration of a Component.
type Field struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Column   string   `yaml:"column,omitempty"`
	Primary  bool     `yaml:"primary,omitempty"`
	Nullable bool     `yaml:"nullable,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

// Relation is a relation declaration of a Component.
type Relation struct {
	Name    string   `yaml:"name"`
	Target  string   `yaml:"target,omitempty"`
	Type    string   `yaml:"type"`
	Local   string   `yaml:"local,omitempty"`
	Foreign string   `yaml:"foreign,omitempty"`
	Through *Through `yaml:"through,omitempty"`
}

// Through names the association of a many-to-many relation.
type Through struct {
	Component string `yaml:"component"`
	Table     string `yaml:"table,omitempty"`
}

// File reads the registry document at path.
func File(path string) (*schema.Registry, error) {
	doc, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	reg, err := doc.Registry()
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", path, err)
	}
	return reg, nil
}

// DecodeFile parses the registry document at path without building it.
func DecodeFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: read registry: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", path, err)
	}
	return doc, nil
}

// Registry reads a registry document. The registry is returned only if the
// document is valid, see schema.Registry.Validate.
func Registry(r io.Reader) (*schema.Registry, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return doc.Registry()
}

// Decode parses a registry document without building it.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("load: empty registry document")
		}
		return nil, fmt.Errorf("load: parse registry: %w", err)
	}
	return &doc, nil
}

// Registry builds the registry the document declares and validates it.
func (d *Document) Registry() (*schema.Registry, error) {
	reg, err := d.Build()
	if err != nil {
		return nil, err
	}
	if res := reg.Validate(); res.HasErrors() {
		return nil, res.Err()
	}
	return reg, nil
}

// Build builds the registry the document declares without validating
// relations and keys.
func (d *Document) Build() (*schema.Registry, error) {
	var opts []schema.RegistryOption
	if d.QueryLimit != "" {
		l, err := ParseQueryLimit(d.QueryLimit)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.WithQueryLimit(l))
	}
	if d.CollectionLimit > 0 {
		opts = append(opts, schema.WithCollectionLimit(d.CollectionLimit))
	}
	var (
		errs       []error
		components = make([]schema.Component, 0, len(d.Components))
	)
	for _, c := range d.Components {
		sc, err := c.component()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		components = append(components, sc)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	reg := schema.NewRegistry(opts...)
	if err := reg.Register(components...); err != nil {
		return nil, err
	}
	return reg, nil
}

func (c *Component) component() (schema.Component, error) {
	sc := schema.Component{
		Name:            c.Name,
		Table:           c.Table,
		Inheritance:     c.Inheritance,
		CollectionLimit: c.CollectionLimit,
	}
	if c.QueryLimit != "" {
		l, err := ParseQueryLimit(c.QueryLimit)
		if err != nil {
			return sc, fmt.Errorf("load: component %s: %w", c.Name, err)
		}
		sc.QueryLimit = l
	}
	if c.FetchMode != "" {
		m, err := schema.ParseFetchMode(c.FetchMode)
		if err != nil {
			return sc, fmt.Errorf("load: component %s: %w", c.Name, err)
		}
		sc.FetchMode = m
	}
	for _, f := range c.Fields {
		nf, err := NewField(f)
		if err != nil {
			return sc, fmt.Errorf("load: component %s: %w", c.Name, err)
		}
		sc.Fields = append(sc.Fields, nf)
	}
	for _, r := range c.Relations {
		ne, err := NewEdge(r)
		if err != nil {
			return sc, fmt.Errorf("load: component %s: %w", c.Name, err)
		}
		sc.Edges = append(sc.Edges, ne)
	}
	return sc, nil
}

// NewField creates a field builder from its declaration.
func NewField(f *Field) (schema.Field, error) {
	t, err := field.ParseType(f.Type)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	var b *field.Builder
	switch t {
	case field.TypeInt:
		b = field.Int(f.Name)
	case field.TypeFloat:
		b = field.Float(f.Name)
	case field.TypeString:
		b = field.String(f.Name)
	case field.TypeBool:
		b = field.Bool(f.Name)
	case field.TypeTime:
		b = field.Time(f.Name)
	case field.TypeEnum:
		b = field.Enum(f.Name)
	}
	if len(f.Values) > 0 {
		b.Values(f.Values...)
	}
	if f.Column != "" {
		b.StorageKey(f.Column)
	}
	if f.Primary {
		b.Primary()
	}
	if f.Nullable {
		b.Nillable()
	}
	return b, nil
}

// NewEdge creates a relation builder from its declaration.
func NewEdge(r *Relation) (schema.Edge, error) {
	k, err := edge.ParseKind(r.Type)
	if err != nil {
		return nil, fmt.Errorf("relation %q: %w", r.Name, err)
	}
	target := r.Target
	if target == "" {
		target = r.Name
	}
	var b *edge.Builder
	switch k {
	case edge.O2O:
		b = edge.HasOne(r.Name, target)
	case edge.O2M:
		b = edge.HasMany(r.Name, target)
	case edge.M2M:
		b = edge.ManyToMany(r.Name, target)
	}
	if r.Through != nil {
		b.Through(r.Through.Component, r.Through.Table)
	}
	if r.Local != "" {
		b.Local(r.Local)
	}
	if r.Foreign != "" {
		b.Foreign(r.Foreign)
	}
	return b, nil
}

// ParseQueryLimit parses a query limit strategy name.
func ParseQueryLimit(s string) (schema.QueryLimit, error) {
	switch s {
	case "rows":
		return schema.LimitRows, nil
	case "records":
		return schema.LimitRecords, nil
	}
	return 0, fmt.Errorf("unknown query limit %q", s)
}
