package dql

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for compilation failures.
var (
	// ErrSyntax is returned when a clause fragment cannot be parsed.
	ErrSyntax = errors.New("dql: syntax error")

	// ErrUnknownComponent is returned when a path segment does not name a
	// registered component.
	ErrUnknownComponent = errors.New("dql: unknown component")

	// ErrUnknownRelation is returned when a relation is not defined on a component.
	ErrUnknownRelation = errors.New("dql: unknown relation")

	// ErrUnknownColumn is returned when a field is not a column of its component.
	ErrUnknownColumn = errors.New("dql: unknown column")

	// ErrEmptyQuery is returned when there is nothing to build: the statement
	// lacks a FROM clause, or a SELECT statement lacks a select list.
	ErrEmptyQuery = errors.New("dql: empty query")

	// ErrNoKeyLoader is returned when the dialect requires the record-limiting
	// subquery to be executed ahead of the main statement and no loader was configured.
	ErrNoKeyLoader = errors.New("dql: limit subquery requires a key loader")
)

// SyntaxError represents a malformed clause fragment.
type SyntaxError struct {
	fragment string
	msg      string
}

// Error returns the error string.
func (e *SyntaxError) Error() string {
	if e.fragment == "" {
		return "dql: syntax error: " + e.msg
	}
	return fmt.Sprintf("dql: syntax error: %s in %q", e.msg, e.fragment)
}

// Is reports whether the target error matches SyntaxError.
func (e *SyntaxError) Is(err error) bool {
	return err == ErrSyntax
}

// Fragment returns the offending fragment.
func (e *SyntaxError) Fragment() string {
	return e.fragment
}

// NewSyntaxError returns a new SyntaxError for the given fragment.
func NewSyntaxError(fragment, format string, args ...any) *SyntaxError {
	return &SyntaxError{fragment: strings.TrimSpace(fragment), msg: fmt.Sprintf(format, args...)}
}

// IsSyntaxError returns true if the error is a SyntaxError.
func IsSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	var e *SyntaxError
	return errors.As(err, &e) || errors.Is(err, ErrSyntax)
}

// UnknownComponentError represents a reference to a component that is
// not registered in the metadata registry.
type UnknownComponentError struct {
	name string
}

// Error returns the error string.
func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("dql: unknown component %q", e.name)
}

// Is reports whether the target error matches UnknownComponentError.
func (e *UnknownComponentError) Is(err error) bool {
	return err == ErrUnknownComponent
}

// Name returns the component name that failed to resolve.
func (e *UnknownComponentError) Name() string {
	return e.name
}

// NewUnknownComponentError returns a new UnknownComponentError.
func NewUnknownComponentError(name string) *UnknownComponentError {
	return &UnknownComponentError{name: name}
}

// IsUnknownComponent returns true if the error is an UnknownComponentError.
func IsUnknownComponent(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownComponentError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownComponent)
}

// UnknownRelationError represents a relation that is not defined on a component.
type UnknownRelationError struct {
	component string
	relation  string
}

// Error returns the error string.
func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("dql: unknown relation %q on component %s", e.relation, e.component)
}

// Is reports whether the target error matches UnknownRelationError.
func (e *UnknownRelationError) Is(err error) bool {
	return err == ErrUnknownRelation
}

// Component returns the owning component name.
func (e *UnknownRelationError) Component() string {
	return e.component
}

// Relation returns the relation name that failed to resolve.
func (e *UnknownRelationError) Relation() string {
	return e.relation
}

// NewUnknownRelationError returns a new UnknownRelationError.
func NewUnknownRelationError(component, relation string) *UnknownRelationError {
	return &UnknownRelationError{component: component, relation: relation}
}

// IsUnknownRelation returns true if the error is an UnknownRelationError.
func IsUnknownRelation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownRelationError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownRelation)
}

// UnknownColumnError represents a field that is not a column of its component.
type UnknownColumnError struct {
	component string
	column    string
}

// Error returns the error string.
func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("dql: unknown column %q on component %s", e.column, e.component)
}

// Is reports whether the target error matches UnknownColumnError.
func (e *UnknownColumnError) Is(err error) bool {
	return err == ErrUnknownColumn
}

// Component returns the owning component name.
func (e *UnknownColumnError) Component() string {
	return e.component
}

// Column returns the column name that failed to resolve.
func (e *UnknownColumnError) Column() string {
	return e.column
}

// NewUnknownColumnError returns a new UnknownColumnError.
func NewUnknownColumnError(component, column string) *UnknownColumnError {
	return &UnknownColumnError{component: component, column: column}
}

// IsUnknownColumn returns true if the error is an UnknownColumnError.
func IsUnknownColumn(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownColumnError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownColumn)
}

// IsEmptyQuery returns true if the error reports an empty query.
func IsEmptyQuery(err error) bool {
	return errors.Is(err, ErrEmptyQuery)
}

// IsCompileError returns true if the error is any of the compilation error kinds.
func IsCompileError(err error) bool {
	return IsSyntaxError(err) || IsUnknownComponent(err) || IsUnknownRelation(err) || IsUnknownColumn(err)
}
