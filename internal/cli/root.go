package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/throughput/perf/sink"
)

var version = "0.1.0"

// NewRootCmd creates the base command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "throughput",
		Short:   "Measure the throughput and latency of an HTTP endpoint",
		Version: version,
		Long: `Throughput drives an HTTP endpoint from concurrent workers and reports
request rate, error rate, latency percentiles and a per-message error table.

Run a bounded measurement and print the summary:
  throughput run --url https://api.example.com/health --workers 8 --duration 30s

Measure continuously and serve live views over HTTP:
  throughput watch --config run.yaml --listen 127.0.0.1:9090`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(newRunCmd())
	root.AddCommand(newWatchCmd())
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// consoleSink prints report blocks to the command's output.
func consoleSink(cmd *cobra.Command) sink.Sink {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return sink.NewConsole(sink.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: noColor,
	})
}

// newLogger returns the logger used for process events of long-running
// commands.
func newLogger() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("throughput")
}
