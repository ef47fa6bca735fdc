// Package compiler compiles DQL statements for a fixed registry and dialect.
//
// Unlike query.Query, a Compiler is safe for concurrent use: every call
// builds its own Query. Compiled statements can be cached in any dql.Cache;
// statements whose keys were loaded from the database are never cached.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/dql"
	"github.com/syssam/dql/dialect"
	"github.com/syssam/dql/query"
	"github.com/syssam/dql/schema"
)

// Cache operations.
const (
	opCompile = "compile"
	opCount   = "count"
)

// Compiler compiles DQL statements.
type Compiler struct {
	resolver schema.Resolver
	dialect  dialect.Dialect
	cfg      Config
}

// New returns a compiler resolving components with r and rendering SQL for d.
func New(r schema.Resolver, d dialect.Dialect, opts ...Option) (*Compiler, error) {
	if r == nil || d == nil {
		return nil, NewConfigError("New", nil, "resolver and dialect are required")
	}
	c := &Compiler{
		resolver: r,
		dialect:  d,
		cfg: Config{
			Logger:  slog.Default(),
			Workers: 4,
		},
	}
	for _, opt := range opts {
		if err := opt(&c.cfg); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Dialect returns the dialect statements are compiled for.
func (c *Compiler) Dialect() dialect.Dialect { return c.dialect }

// Query returns an empty query sharing the compiler's registry, dialect
// and key loader.
func (c *Compiler) Query() *query.Query {
	var opts []query.Option
	if c.cfg.KeyLoader != nil {
		opts = append(opts, query.WithKeyLoader(c.cfg.KeyLoader))
	}
	return query.New(c.resolver, c.dialect, opts...)
}

// Compile compiles a DQL statement. args bind its placeholders in order of
// appearance in the DQL text.
func (c *Compiler) Compile(ctx context.Context, stmt string, args ...any) (*query.Compiled, error) {
	return c.compile(ctx, opCompile, stmt, args, func(q *query.Query) (*query.Compiled, error) {
		return q.Compile(ctx, args...)
	})
}

// Count compiles the statement counting the root records a DQL SELECT
// statement returns.
func (c *Compiler) Count(ctx context.Context, stmt string, args ...any) (*query.Compiled, error) {
	return c.compile(ctx, opCount, stmt, args, func(q *query.Query) (*query.Compiled, error) {
		return q.CompileCount(args...)
	})
}

// StatementError is the error of one statement compiled by CompileAll.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

// Error implements the error interface.
func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index, e.Err)
}

// Unwrap returns the compile error.
func (e *StatementError) Unwrap() error {
	return e.Err
}

// StatementErrors returns the statement errors joined in an error returned
// by CompileAll.
func StatementErrors(err error) []*StatementError {
	var out []*StatementError
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			if se, ok := e.(*StatementError); ok {
				out = append(out, se)
			}
		}
	}
	return out
}

// CompileAll compiles the statements concurrently. The result has one
// entry per statement; failed statements leave a nil entry and their
// *StatementError values are joined.
func (c *Compiler) CompileAll(ctx context.Context, stmts ...string) ([]*query.Compiled, error) {
	var (
		out  = make([]*query.Compiled, len(stmts))
		errs = make([]error, len(stmts))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, stmt := range stmts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &StatementError{Index: i, Statement: stmt, Err: err}
				return nil
			}
			compiled, err := c.Compile(ctx, stmt)
			if err != nil {
				errs[i] = &StatementError{Index: i, Statement: stmt, Err: err}
				return nil
			}
			out[i] = compiled
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, errors.Join(errs...)
}

func (c *Compiler) compile(ctx context.Context, op, stmt string, args []any, fn func(*query.Query) (*query.Compiled, error)) (*query.Compiled, error) {
	key := c.cacheKey(op, stmt, len(args))
	if cached, ok := c.lookup(ctx, key); ok {
		c.cfg.Logger.DebugContext(ctx, "dql: cache hit", "op", op, "key", key)
		return bind(cached, args), nil
	}
	start := time.Now()
	q := c.Query()
	if err := q.Parse(stmt); err != nil {
		return nil, err
	}
	compiled, err := fn(q)
	if err != nil {
		return nil, err
	}
	c.cfg.Logger.DebugContext(ctx, "dql: compiled statement",
		"op", op,
		"dialect", c.dialect.Name(),
		"sql", compiled.SQL,
		"limit_subquery", compiled.LimitSubquery,
		"duration", time.Since(start),
	)
	if c.cacheable(op, compiled) {
		c.store(ctx, key, unbind(compiled))
	}
	return compiled, nil
}

func (c *Compiler) cacheKey(op, stmt string, args int) string {
	return dql.CacheKey{
		Dialect:   c.dialect.Name(),
		Operation: op,
		Statement: stmt,
		Quoted:    c.dialect.QuoteIdentifier("t") != "t",
		Args:      args,
	}.String()
}

// cacheable reports whether the statement does not depend on database
// contents. Eagerly loaded limit subqueries inline the current keys.
func (c *Compiler) cacheable(op string, compiled *query.Compiled) bool {
	if c.cfg.Cache == nil {
		return false
	}
	return op == opCount || !compiled.LimitSubquery || !c.dialect.EagerLimitSubquery()
}

func (c *Compiler) lookup(ctx context.Context, key string) (*query.Compiled, bool) {
	if c.cfg.Cache == nil {
		return nil, false
	}
	b, err := c.cfg.Cache.Get(ctx, key)
	if err != nil {
		c.cfg.Logger.WarnContext(ctx, "dql: cache get failed", "key", key, "error", err)
		return nil, false
	}
	if b == nil {
		return nil, false
	}
	compiled, err := Decode(b)
	if err != nil {
		c.cfg.Logger.WarnContext(ctx, "dql: dropping undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return compiled, true
}

func (c *Compiler) store(ctx context.Context, key string, compiled *query.Compiled) {
	b, err := Encode(compiled)
	if err == nil {
		err = c.cfg.Cache.Set(ctx, key, b, c.cfg.CacheTTL)
	}
	if err != nil {
		c.cfg.Logger.WarnContext(ctx, "dql: cache set failed", "key", key, "error", err)
	}
}

// bind fills the caller arguments into a cached statement at the positions
// recorded in Binds.
func bind(compiled *query.Compiled, args []any) *query.Compiled {
	out := *compiled
	if len(args) == 0 {
		return &out
	}
	out.Args = slices.Clone(compiled.Args)
	for i, n := range compiled.Binds {
		if n >= 0 && n < len(args) && i < len(out.Args) {
			out.Args[i] = args[n]
		}
	}
	return &out
}

// unbind clears the caller arguments of a compiled statement before it is
// cached. It is the inverse of bind.
func unbind(compiled *query.Compiled) *query.Compiled {
	out := *compiled
	out.Args = slices.Clone(compiled.Args)
	for i, n := range compiled.Binds {
		if n >= 0 && i < len(out.Args) {
			out.Args[i] = nil
		}
	}
	return &out
}
