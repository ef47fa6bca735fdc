// Package dialect describes the SQL flavours DQL statements compile to.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL
//   - MySQL: MySQL/MariaDB
//   - SQLite: SQLite
//
// Each dialect is identified by a constant string and can be looked up by
// name:
//
//	d, err := dialect.Open(dialect.Postgres, dialect.WithQuotedIdentifiers())
//
// # Limit subqueries
//
// When a statement joins a to-many relation and limits the number of root
// records, the compiler limits a subquery selecting distinct root keys
// instead of the joined rows. How that subquery is embedded differs per
// dialect and is controlled by three hooks of the Dialect interface:
//
//	LimitSubqueryColumns  // extra select-list entries (Postgres: ORDER BY expressions)
//	WrapLimitSubquery     // text placed inside "pk IN (...)" (Postgres: derived table)
//	EagerLimitSubquery    // execute first and inline the keys (MySQL)
//
// # Functions
//
// Function calls in a select list are validated against a table of portable
// names and rendered per dialect, e.g. RANDOM() becomes RAND() on MySQL and
// CONCAT(a, b) becomes (a || b) on SQLite.
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver used to execute key subqueries
package dialect
