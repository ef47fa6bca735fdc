// Package cli implements the dqlc command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/syssam/dql/compiler"
	"github.com/syssam/dql/compiler/load"
	"github.com/syssam/dql/dialect"
	"github.com/syssam/dql/dialect/sql"
)

// ValidFormats are the accepted output and log formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags and the state derived from them.
type RootOptions struct {
	ConfigPath string
	Registry   string
	Dialect    string
	Quote      bool
	DSN        string
	Format     string
	LogFormat  string
	Verbose    bool
	Workers    int

	cfg        *Config
	configFile string
	logger     *slog.Logger
	runID      string
}

// NewRootCommand creates the dqlc command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:   "dqlc",
		Short: "Compile DQL statements to SQL",
		Long: `dqlc compiles DQL statements against a component registry and prints
the SQL of the selected dialect.

Settings are read from dqlc.yaml (searched from the working directory up to
the repository root), DQLC_* environment variables and flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
	}
	f := cmd.PersistentFlags()
	f.StringVar(&opts.ConfigPath, "config", "", "config file (default: dqlc.yaml lookup)")
	f.StringVarP(&opts.Registry, "registry", "r", "", "component registry document")
	f.StringVarP(&opts.Dialect, "dialect", "d", dialect.SQLite, fmt.Sprintf("SQL dialect %v", dialect.Names()))
	f.BoolVar(&opts.Quote, "quote", false, "quote table identifiers")
	f.StringVar(&opts.DSN, "dsn", "", "database to run limit subqueries on (MySQL)")
	f.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	f.StringVar(&opts.LogFormat, "log-format", "text", "log format (text|json)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "log compiled statements")
	f.IntVar(&opts.Workers, "workers", 4, "statements compiled at once")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	return cmd
}

func (o *RootOptions) init(cmd *cobra.Command) error {
	cfg, path, err := LoadConfig(o.ConfigPath, cmd.Flags())
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	if !cmd.Flags().Changed("registry") {
		cfg.Registry = resolvePath(path, cfg.Registry)
	}
	o.cfg, o.configFile = cfg, path
	o.runID = uuid.NewString()
	o.logger = newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose).With("run_id", o.runID)
	if path != "" {
		o.logger.Debug("dqlc: config loaded", "path", path)
	}
	return nil
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// env is what the commands compile with.
type env struct {
	compiler *compiler.Compiler
	stats    *sql.StatsDriver
}

func (e *env) Close() error {
	if e.stats == nil {
		return nil
	}
	return e.stats.Close()
}

func (o *RootOptions) dialect() (dialect.Dialect, error) {
	var dopts []dialect.Option
	if o.cfg.Quote {
		dopts = append(dopts, dialect.WithQuotedIdentifiers())
	}
	return dialect.Open(o.cfg.Dialect, dopts...)
}

// env loads the registry and opens the database, if any.
func (o *RootOptions) env(_ context.Context, copts ...compiler.Option) (*env, error) {
	if o.cfg.Registry == "" {
		return nil, NewExitError(ExitCommandError, "no registry: set --registry or registry in dqlc.yaml")
	}
	reg, err := load.File(o.cfg.Registry)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading registry", err)
	}
	d, err := o.dialect()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening dialect", err)
	}
	e := &env{}
	copts = append(slices.Clone(copts), compiler.WithLogger(o.logger), compiler.WithWorkers(o.cfg.Workers))
	if o.cfg.DSN != "" {
		e.stats, err = sql.OpenWithStats(d.Name(), o.cfg.DSN,
			sql.WithSlowThreshold(o.cfg.SlowThreshold),
			sql.WithSlowQueryLogger(o.logger),
		)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "opening database", err)
		}
		copts = append(copts, compiler.WithKeyLoader(e.stats))
	}
	e.compiler, err = compiler.New(reg, d, copts...)
	if err != nil {
		e.Close()
		return nil, WrapExitError(ExitCommandError, "creating compiler", err)
	}
	o.logger.Debug("dqlc: registry loaded", "path", o.cfg.Registry, "components", reg.Len(), "dialect", d.Name())
	return e, nil
}

func isValid(v string, valid []string) bool {
	return slices.Contains(valid, v)
}
