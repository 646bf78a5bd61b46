// rowcase previews data-driven suites: it resolves each suite's rows the same
// way a test run would and prints the cases that would be registered.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/asaidimu/go-rowcase/core/source"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
	verbose    bool
	lookup     source.Lookup
}

func newRootCmd(lookup source.Lookup) *cobra.Command {
	opts := &options{lookup: lookup}

	root := &cobra.Command{
		Use:   "rowcase",
		Short: "Preview data-driven test suites",
		Long: `rowcase reads a suite file and shows the test cases each suite expands to.

Rows are resolved exactly as under go test: TEST_STORY, TEST_RULE, TEST_MIN and
TEST_MAX override everything, then --key=value flags given after "--", then the
data source declared by the suite.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "rowcase.yaml", "suite file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPlanCmd(opts), newSuitesCmd(opts))
	return root
}

// newLogger builds a production logger writing to stderr, or a development
// logger when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	return config.Build()
}
