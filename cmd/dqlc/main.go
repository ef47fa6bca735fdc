// Command dqlc compiles DQL statements to SQL.
//
// Usage:
//
//	dqlc compile -r registry.yaml "SELECT u.name FROM User u LIMIT 10"
//	dqlc count -r registry.yaml -f statements.dql
//	dqlc validate -r registry.yaml
//	dqlc watch -r registry.yaml -f statements.dql
//
// With --dsn, MySQL limit subqueries are executed on the database and their
// keys inlined into the compiled statement.
package main

import (
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/dql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dqlc:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
