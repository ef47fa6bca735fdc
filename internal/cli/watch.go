package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/syssam/dql/compiler"
)

// WatchOptions holds the flags of the watch command.
type WatchOptions struct {
	*RootOptions
	File     string
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "watch --file statements.dql",
		Short: "Recompile a statement file whenever it or the registry changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runWatch(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "statement file")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "delay before recompiling")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *WatchOptions) error {
	if opts.File == "-" {
		return NewExitError(ExitCommandError, "watch needs a statement file, not stdin")
	}
	cache := compiler.NewMemoryCache()
	compile := func() error {
		stmts, err := statements(nil, opts.File, nil)
		if err != nil {
			return err
		}
		e, err := opts.env(ctx, compiler.WithCache(cache, 0))
		if err != nil {
			return err
		}
		defer e.Close()
		compiled, err := e.compiler.CompileAll(ctx, stmts...)
		if compiled == nil {
			return err
		}
		results := make([]Result, len(stmts))
		for i, stmt := range stmts {
			if compiled[i] != nil {
				results[i] = newResult(stmt, compiled[i], nil)
			}
		}
		for _, se := range compiler.StatementErrors(err) {
			results[se.Index] = newResult(se.Statement, nil, se.Err)
		}
		return writeResults(cmd.OutOrStdout(), opts.cfg.Format, results)
	}
	files := []string{opts.File}
	if opts.cfg.Registry != "" {
		files = append(files, opts.cfg.Registry)
	}
	return watchFiles(ctx, files, opts.Debounce, opts.logger, func(changed string) error {
		if changed == opts.cfg.Registry {
			// Statements compile differently against the new registry.
			if err := cache.Clear(ctx); err != nil {
				return err
			}
		}
		return compile()
	})
}

// watchFiles calls onChange with an empty name, then with the name of a
// changed file each time one of files is written, until ctx is done.
// Writes closer than debounce apart trigger one call.
func watchFiles(ctx context.Context, files []string, debounce time.Duration, logger *slog.Logger, onChange func(changed string) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	watched := make(map[string]string, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}
		watched[abs] = f
		// Editors replace files, so the directory is watched.
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watching %s: %w", f, err)
		}
	}
	if err := onChange(""); err != nil {
		logger.Warn("dqlc: compile failed", "error", err)
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	var (
		pending string
		fire    <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			name, ok := watched[abs]
			if !ok {
				continue
			}
			pending = name
			timer.Reset(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			logger.Debug("dqlc: file changed", "file", pending)
			if err := onChange(pending); err != nil {
				logger.Warn("dqlc: compile failed", "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("dqlc: watch error", "error", err)
		}
	}
}
