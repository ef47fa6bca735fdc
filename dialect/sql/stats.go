package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/dql/dialect"
)

// KeyStats counts the key subqueries a driver executed.
type KeyStats struct {
	queries  atomic.Int64
	keys     atomic.Int64
	nanos    atomic.Int64
	slow     atomic.Int64
	failures atomic.Int64
}

// Snapshot returns the current counters.
func (s *KeyStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.queries.Load(),
		Keys:     s.keys.Load(),
		Duration: time.Duration(s.nanos.Load()),
		Slow:     s.slow.Load(),
		Failures: s.failures.Load(),
	}
}

// Reset zeroes the counters.
func (s *KeyStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.keys, &s.nanos, &s.slow, &s.failures} {
		c.Store(0)
	}
}

// StatsSnapshot is a copy of the KeyStats counters.
type StatsSnapshot struct {
	Queries  int64
	Keys     int64
	Duration time.Duration
	Slow     int64
	Failures int64
}

// Avg returns the mean duration of a key subquery.
func (s StatsSnapshot) Avg() time.Duration {
	if s.Queries == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Queries)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d keys=%d duration=%s avg=%s slow=%d failures=%d",
		s.Queries, s.Keys, s.Duration, s.Avg(), s.Slow, s.Failures)
}

// SlowQueryHook is called with every key subquery slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, took time.Duration)

// StatsDriver is a Driver recording KeyStats.
type StatsDriver struct {
	*Driver
	stats *KeyStats

	mu        sync.RWMutex
	threshold time.Duration
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a key subquery counts as
// slow. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryHook sets the function called for slow key subqueries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLogger reports slow key subqueries to l at warn level.
func WithSlowQueryLogger(l *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, took time.Duration) {
		l.WarnContext(ctx, "dialect/sql: slow key subquery", "took", took, "query", query, "args", args)
	})
}

// NewStatsDriver wraps drv:
//
//	drv := sql.NewStatsDriver(base,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLogger(logger),
//	)
//	q := query.New(registry, dialect.NewMySQL(), query.WithKeyLoader(drv))
//	...
//	logger.Info("key subqueries", "stats", drv.Stats().Snapshot())
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		stats:     &KeyStats{},
		threshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenWithStats opens the database of the dialect and wraps it in a
// StatsDriver.
func OpenWithStats(name, source string, opts ...StatsOption) (*StatsDriver, error) {
	db, err := sql.Open(driverName(name), source)
	if err != nil {
		return nil, err
	}
	return NewStatsDriver(OpenDB(name, db), opts...), nil
}

// Stats returns the counters of the driver.
func (d *StatsDriver) Stats() *KeyStats { return d.stats }

// SlowThreshold returns the slow key subquery threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.threshold
}

// SetSlowThreshold changes the slow key subquery threshold.
func (d *StatsDriver) SetSlowThreshold(t time.Duration) {
	d.mu.Lock()
	d.threshold = t
	d.mu.Unlock()
}

// LoadKeys runs the key subquery and records it.
func (d *StatsDriver) LoadKeys(ctx context.Context, query string, args []any) ([]any, error) {
	start := time.Now()
	keys, err := loadKeys(ctx, d.Driver, query, args)
	took := time.Since(start)

	d.stats.queries.Add(1)
	d.stats.nanos.Add(int64(took))
	d.stats.keys.Add(int64(len(keys)))
	if err != nil {
		d.stats.failures.Add(1)
	}
	d.mu.RLock()
	threshold, hook := d.threshold, d.hook
	d.mu.RUnlock()
	if took > threshold {
		d.stats.slow.Add(1)
		if hook != nil {
			hook(ctx, query, args, took)
		}
	}
	return keys, err
}

// DebugDriver is a Driver logging every statement it runs.
type DebugDriver struct {
	*Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv, logging statements to l at debug level. A nil
// logger logs to slog.Default().
func NewDebugDriver(drv *Driver, l *slog.Logger) *DebugDriver {
	if l == nil {
		l = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: l}
}

// Query logs the statement and runs it.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "dialect/sql: query", "query", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// LoadKeys logs the key subquery and runs it.
func (d *DebugDriver) LoadKeys(ctx context.Context, query string, args []any) ([]any, error) {
	return loadKeys(ctx, d, query, args)
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
)
