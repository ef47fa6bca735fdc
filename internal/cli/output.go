package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/syssam/dql/query"
)

// Exit codes.
const (
	ExitSuccess      = 0 // everything compiled
	ExitFailure      = 1 // a statement failed to compile or the registry is invalid
	ExitCommandError = 2 // bad flags, missing files, unreachable database
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code of err: ExitFailure unless err is an
// ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Result is the outcome of compiling one statement.
type Result struct {
	DQL           string            `json:"dql"`
	SQL           string            `json:"sql,omitempty"`
	Args          []any             `json:"args,omitempty"`
	Aggregates    map[string]string `json:"aggregates,omitempty"`
	LimitSubquery bool              `json:"limit_subquery,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func newResult(stmt string, c *query.Compiled, err error) Result {
	r := Result{DQL: stmt}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.SQL, r.Args, r.Aggregates, r.LimitSubquery = c.SQL, c.Args, c.Aggregates, c.LimitSubquery
	return r
}

// writeResults writes the results in the given format.
func writeResults(w io.Writer, format string, results []Result) error {
	if format == "json" {
		return writeJSON(w, results)
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "-- %s\n", r.DQL)
		if r.Error != "" {
			fmt.Fprintf(&b, "-- error: %s\n", r.Error)
			continue
		}
		if len(r.Args) > 0 {
			fmt.Fprintf(&b, "-- args: %v\n", r.Args)
		}
		for _, k := range slices.Sorted(maps.Keys(r.Aggregates)) {
			fmt.Fprintf(&b, "-- aggregate %s: %s\n", k, r.Aggregates[k])
		}
		fmt.Fprintf(&b, "%s;\n", r.SQL)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// failures returns an error when a result failed.
func failures(results []Result) error {
	var n int
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d statement(s) failed", n, len(results)))
}
