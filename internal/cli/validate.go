package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/dql/compiler/load"
	"github.com/syssam/dql/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a component registry",
		Long: `Check that every component of the registry has a primary key, that
relations point to registered components and that their keys are declared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(rootOpts, cmd.OutOrStdout())
		},
	}
}

type validateReport struct {
	Registry   string   `json:"registry"`
	Components int      `json:"components"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func runValidate(opts *RootOptions, w io.Writer) error {
	if opts.cfg.Registry == "" {
		return NewExitError(ExitCommandError, "no registry: set --registry or registry in dqlc.yaml")
	}
	doc, err := load.DecodeFile(opts.cfg.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading registry", err)
	}
	report := validateReport{Registry: opts.cfg.Registry}
	reg, err := doc.Build()
	if err != nil {
		report.Errors = []string{err.Error()}
		if werr := writeReport(w, opts.cfg.Format, report, nil); werr != nil {
			return werr
		}
		return WrapExitError(ExitFailure, "invalid registry", err)
	}
	res := reg.Validate()
	report.Components = reg.Len()
	for _, e := range res.Errors {
		report.Errors = append(report.Errors, e.Error())
	}
	for _, e := range res.Warnings {
		report.Warnings = append(report.Warnings, e.Error())
	}
	opts.logger.Debug("dqlc: registry validated", "components", report.Components, "errors", len(res.Errors), "warnings", len(res.Warnings))
	if err := writeReport(w, opts.cfg.Format, report, res); err != nil {
		return err
	}
	if res.HasErrors() {
		return NewExitError(ExitFailure, fmt.Sprintf("registry has %d error(s)", len(res.Errors)))
	}
	return nil
}

func writeReport(w io.Writer, format string, report validateReport, res *schema.ValidationResult) error {
	if format == "json" {
		return writeJSON(w, report)
	}
	var err error
	if res == nil {
		_, err = fmt.Fprintf(w, "%s: %s\n", report.Registry, report.Errors[0])
	} else {
		_, err = fmt.Fprintf(w, "%s: %d component(s)\n%s\n", report.Registry, report.Components, strings.TrimRight(res.String(), "\n"))
	}
	return err
}
