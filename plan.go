package main

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asaidimu/go-rowcase/core"
	"github.com/asaidimu/go-rowcase/core/config"
	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
	"github.com/asaidimu/go-rowcase/core/source"
)

type plannedCase struct {
	Index int        `json:"index"`
	Name  string     `json:"name"`
	Row   record.Row `json:"row"`
}

type plannedSuite struct {
	Suite  string        `json:"suite"`
	Origin source.Origin `json:"origin"`
	Cases  []plannedCase `json:"cases"`
}

func newPlanCmd(opts *options) *cobra.Command {
	var (
		suiteName string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "plan [-- --key=value ...]",
		Short: "Print the cases each suite expands to",
		Example: `  rowcase plan -c suites.yaml
  rowcase plan -c suites.yaml --suite "User Registration Validation" --format json
  rowcase plan -c suites.yaml -- --story="Checkout" --min=5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q: expected text or json", format)
			}
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			plans, err := plan(cmd, opts, suiteName, args, logger)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plans)
			}
			writeText(cmd.OutOrStdout(), plans)
			return nil
		},
	}
	cmd.Flags().StringVarP(&suiteName, "suite", "s", "", "only plan the suite with this name")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

func plan(cmd *cobra.Command, opts *options, suiteName string, args []string, logger *zap.Logger) ([]plannedSuite, error) {
	file, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	suites := file.Suites
	if suiteName != "" {
		s, err := file.Suite(suiteName)
		if err != nil {
			return nil, err
		}
		suites = []config.Suite{*s}
	}

	processor := query.NewDataProcessor(logger)
	runner, err := core.NewRunner(logger, &core.RunnerOptions{
		Lookup:    opts.lookup,
		Args:      args,
		Processor: processor,
	})
	if err != nil {
		return nil, err
	}

	plans := make([]plannedSuite, 0, len(suites))
	for i := range suites {
		cfg, err := suites[i].Build(processor, logger)
		if err != nil {
			return nil, err
		}
		rows, origin, err := runner.Load(cmd.Context(), cfg.DataSource)
		if err != nil {
			return nil, fmt.Errorf("suite %q: %w", cfg.TestName, err)
		}
		cases := runner.Expand(rows, func(record.Row) func(t *testing.T) { return nil }, cfg.TestName)

		p := plannedSuite{Suite: cfg.TestName, Origin: origin, Cases: make([]plannedCase, len(cases))}
		for j, c := range cases {
			p.Cases[j] = plannedCase{Index: c.Index, Name: c.Name, Row: c.Row}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func writeText(w io.Writer, plans []plannedSuite) {
	for i, p := range plans {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s, %d cases)\n", p.Suite, p.Origin, len(p.Cases))
		for _, c := range p.Cases {
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}
}

func newSuitesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suites",
		Short: "List the suites of a suite file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			for _, s := range file.Suites {
				fmt.Fprintln(cmd.OutOrStdout(), s.Name)
			}
			return nil
		},
	}
}
