package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/syssam/dql"
	"github.com/syssam/dql/schema/edge"
)

// Resolver resolves component names to table metadata.
type Resolver interface {
	Resolve(component string) (*Table, error)
}

// Registry holds the metadata of all mapped components.
// It is safe for concurrent reads once loaded.
type Registry struct {
	mu              sync.RWMutex
	tables          map[string]*Table
	order           []string
	queryLimit      QueryLimit
	collectionLimit int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithQueryLimit sets the query limit used by components that do not set one.
// Default is LimitRecords.
func WithQueryLimit(l QueryLimit) RegistryOption {
	return func(r *Registry) {
		r.queryLimit = l
	}
}

// WithCollectionLimit sets the collection limit used by components that do
// not set one. Default is 10.
func WithCollectionLimit(n int) RegistryOption {
	return func(r *Registry) {
		r.collectionLimit = n
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tables:          make(map[string]*Table),
		queryLimit:      LimitRecords,
		collectionLimit: 10,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds components to the registry.
//
// Keys left empty on relations get conventional defaults derived from the
// component names:
//
//	HasOne("Email", ...)        local: email_id, foreign: id
//	HasMany(...) on User        local: <primary key>, foreign: user_id
//	ManyToMany(...) User->Group local: user_id, foreign: group_id
func (r *Registry) Register(components ...Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, c := range components {
		t, err := r.build(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.tables[c.Name] = t
		r.order = append(r.order, c.Name)
	}
	return errors.Join(errs...)
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(components ...Component) *Registry {
	if err := r.Register(components...); err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the table metadata of the component.
func (r *Registry) Resolve(name string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	if !ok {
		return nil, dql.NewUnknownComponentError(name)
	}
	return t, nil
}

// Components returns the registered component names in registration order.
func (r *Registry) Components() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) build(c Component) (*Table, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("schema: component without name")
	}
	if _, ok := r.tables[c.Name]; ok {
		return nil, fmt.Errorf("schema: component %s registered twice", c.Name)
	}
	t := &Table{
		component:       c.Name,
		name:            c.Table,
		relations:       make(map[string]*Relation, len(c.Edges)),
		inheritance:     sortedDiscriminators(c.Inheritance),
		queryLimit:      c.QueryLimit,
		fetchMode:       c.FetchMode,
		collectionLimit: c.CollectionLimit,
	}
	if t.name == "" {
		t.name = inflect.Underscore(c.Name)
	}
	if t.queryLimit == 0 {
		t.queryLimit = r.queryLimit
	}
	if t.collectionLimit == 0 {
		t.collectionLimit = r.collectionLimit
	}
	for _, f := range c.Fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("schema: component %s: %w", c.Name, d.Err)
		}
		if t.HasColumn(d.Name) {
			return nil, fmt.Errorf("schema: component %s: field %q declared twice", c.Name, d.Name)
		}
		t.columns = append(t.columns, &Column{
			Field:    d.Name,
			Name:     d.Column,
			Type:     d.Type,
			Primary:  d.Primary,
			Nillable: d.Nillable,
			Enums:    d.Enums,
		})
	}
	for _, e := range c.Edges {
		d := e.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("schema: component %s: %w", c.Name, d.Err)
		}
		if _, ok := t.relations[d.Name]; ok {
			return nil, fmt.Errorf("schema: component %s: relation %q declared twice", c.Name, d.Name)
		}
		rel := &Relation{
			Name:    d.Name,
			Owner:   c.Name,
			Target:  d.Target,
			Kind:    d.Kind,
			Local:   d.Local,
			Foreign: d.Foreign,
		}
		defaultKeys(rel, t)
		if d.Through != nil {
			rel.Association = &Association{Component: d.Through.Component, Table: d.Through.Table}
			if rel.Association.Table == "" {
				rel.Association.Table = inflect.Underscore(d.Through.Component)
			}
		}
		t.relations[d.Name] = rel
		t.relationOrder = append(t.relationOrder, d.Name)
	}
	return t, nil
}

func defaultKeys(rel *Relation, owner *Table) {
	switch rel.Kind {
	case edge.O2O:
		if rel.Local == "" {
			rel.Local = inflect.Underscore(rel.Name) + "_id"
		}
		if rel.Foreign == "" {
			rel.Foreign = "id"
		}
	case edge.O2M:
		if rel.Local == "" {
			rel.Local = owner.Identifier()
		}
		if rel.Local == "" {
			rel.Local = "id"
		}
		if rel.Foreign == "" {
			rel.Foreign = inflect.Underscore(rel.Owner) + "_id"
		}
	case edge.M2M:
		if rel.Local == "" {
			rel.Local = inflect.Underscore(rel.Owner) + "_id"
		}
		if rel.Foreign == "" {
			rel.Foreign = inflect.Underscore(rel.Target) + "_id"
		}
	}
}
