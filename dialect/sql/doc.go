// Package sql provides a database/sql backed driver for the few statements
// the DQL compiler executes itself.
//
// Compilation is a pure transformation, except on dialects that cannot nest
// a LIMIT inside an IN subquery (MySQL). There the record-limiting key
// subquery is executed first and its keys are inlined into the main
// statement. Driver.LoadKeys runs that subquery:
//
//	drv, err := sql.Open(dialect.MySQL, dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//	q := query.New(registry, dialect.NewMySQL(), query.WithKeyLoader(drv))
//
// # Statistics
//
// StatsDriver counts executed key subqueries, loaded keys and slow queries:
//
//	drv, err := sql.OpenWithStats(dialect.MySQL, dsn,
//	    sql.WithSlowThreshold(100*time.Millisecond),
//	    sql.WithSlowQueryLogger(logger),
//	)
//
// DebugDriver logs every statement through log/slog at debug level.
package sql
