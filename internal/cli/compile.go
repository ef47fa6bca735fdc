package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/syssam/dql/compiler"
	"github.com/syssam/dql/query"
)

// CompileOptions holds the flags of the compile and count commands.
type CompileOptions struct {
	*RootOptions
	File string
	Args []string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "compile [statement...]",
		Short: "Compile DQL statements to SQL",
		Long: `Compile DQL statements to SQL.

Statements are passed as arguments or read from --file, one per line.
--arg values are bound to the placeholders of every statement.`,
		Example: `  dqlc compile -r registry.yaml "SELECT u.name FROM User u WHERE u.id = ?"
  dqlc compile -r registry.yaml -d postgres -f statements.dql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatements(cmd, opts, args, func(ctx context.Context, c *compiler.Compiler, stmt string, bind ...any) (*query.Compiled, error) {
				return c.Compile(ctx, stmt, bind...)
			})
		},
	}
	opts.flags(cmd)
	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "count [statement...]",
		Short: "Compile statements counting the records DQL SELECT statements return",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatements(cmd, opts, args, func(ctx context.Context, c *compiler.Compiler, stmt string, bind ...any) (*query.Compiled, error) {
				return c.Count(ctx, stmt, bind...)
			})
		},
	}
	opts.flags(cmd)
	return cmd
}

func (o *CompileOptions) flags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.File, "file", "f", "", `statement file, "-" for stdin`)
	cmd.Flags().StringArrayVar(&o.Args, "arg", nil, "placeholder value (repeatable)")
}

type compileFunc func(ctx context.Context, c *compiler.Compiler, stmt string, args ...any) (*query.Compiled, error)

func runStatements(cmd *cobra.Command, opts *CompileOptions, args []string, fn compileFunc) error {
	stmts, err := statements(args, opts.File, cmd.InOrStdin())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := opts.env(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	bind := make([]any, len(opts.Args))
	for i, a := range opts.Args {
		bind[i] = a
	}
	results := compileStatements(ctx, e.compiler, stmts, bind, fn)
	if e.stats != nil {
		opts.logger.Debug("dqlc: key subqueries", "stats", e.stats.Stats().Snapshot().String())
	}
	if err := writeResults(cmd.OutOrStdout(), opts.cfg.Format, results); err != nil {
		return err
	}
	return failures(results)
}

func compileStatements(ctx context.Context, c *compiler.Compiler, stmts []string, bind []any, fn compileFunc) []Result {
	results := make([]Result, len(stmts))
	for i, stmt := range stmts {
		compiled, err := fn(ctx, c, stmt, bind...)
		results[i] = newResult(stmt, compiled, err)
	}
	return results
}
