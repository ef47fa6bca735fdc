package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a registry validation error.
type ValidationError struct {
	Component string
	Column    string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Component, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// ValidationResult holds the results of registry validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the validation errors joined, or nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(component, column, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Component: component, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(component, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Component: component, Column: column, Message: fmt.Sprintf(format, args...)})
}

// Validate checks that the registry is consistent: every component has a
// primary key, relations point to registered components and their keys are
// declared columns, and inheritance maps use declared columns.
//
// Example:
//
//	if res := registry.Validate(); res.HasErrors() {
//	    log.Fatal(res)
//	}
func (r *Registry) Validate() *ValidationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := &ValidationResult{}
	tableOwners := make(map[string]string, len(r.order))
	for _, name := range r.order {
		t := r.tables[name]
		if len(t.PrimaryKeys()) == 0 {
			result.errorf(name, "", "no primary key")
		}
		if owner, ok := tableOwners[t.name]; ok && len(t.inheritance) == 0 {
			result.warnf(name, "", "table %s is shared with component %s without an inheritance map", t.name, owner)
		} else if !ok {
			tableOwners[t.name] = name
		}
		for _, d := range t.inheritance {
			if !t.HasColumn(d.Column) {
				result.errorf(name, d.Column, "inheritance column is not declared")
			}
		}
		for _, rel := range t.Relations() {
			r.validateRelation(t, rel, result)
		}
	}
	return result
}

func (r *Registry) validateRelation(owner *Table, rel *Relation, result *ValidationResult) {
	target, ok := r.tables[rel.Target]
	if !ok {
		result.errorf(owner.component, "", "relation %s: unknown target component %s", rel.Name, rel.Target)
		return
	}
	if !rel.IsManyToMany() {
		if !owner.HasColumn(rel.Local) {
			result.errorf(owner.component, rel.Local, "relation %s: local key is not declared", rel.Name)
		}
		if !target.HasColumn(rel.Foreign) {
			result.errorf(target.component, rel.Foreign, "relation %s: foreign key is not declared", rel.Name)
		}
		return
	}
	if rel.IsSelfReferencing() && rel.Local == rel.Foreign {
		result.errorf(owner.component, rel.Local, "relation %s: self-referencing association needs distinct keys", rel.Name)
	}
	assoc, ok := r.tables[rel.Association.Component]
	if !ok {
		result.warnf(owner.component, "", "relation %s: association component %s is not registered", rel.Name, rel.Association.Component)
		return
	}
	if assoc.name != rel.Association.Table {
		result.warnf(owner.component, "", "relation %s: association table %s differs from component table %s", rel.Name, rel.Association.Table, assoc.name)
	}
	for _, key := range []string{rel.Local, rel.Foreign} {
		if !assoc.HasColumn(key) {
			result.errorf(assoc.component, key, "relation %s: association key is not declared", rel.Name)
		}
	}
}
