package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/throughput/perf"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a measurement and print the summary",
		Long: `Drive the target from concurrent workers for the configured duration,
printing a sample every interval and the summary, error table and
percentiles at the end.

Config file mode:
  throughput run --config run.yaml

Quick CLI mode:
  throughput run --url https://api.example.com/health \
    --workers 16 --duration 1m --discipline blocking --rate 500

Interrupting the run prints the summary of what was measured so far.`,
		Args: cobra.NoArgs,
		RunE: runMeasurement,
	}

	addRunFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Write the result as JSON to this file")
	return cmd
}

func runMeasurement(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Requests outlive an interrupt so in-flight tasks settle as completions
	// rather than cancellations; they are cancelled once the run returns.
	probeCtx, cancelProbe := context.WithCancel(context.Background())
	defer cancelProbe()

	out := consoleSink(cmd)
	builder := perf.New(nil).Sink(out)
	if err := cfg.Apply(probeCtx, builder); err != nil {
		return err
	}

	if cfg.Name != "" {
		out.Report(fmt.Sprintf("Measuring %s (%s)", cfg.Name, cfg.Target.URL), nil)
	}

	result, runErr := builder.Run(ctx)
	if outputPath != "" && result != nil {
		if err := writeResult(result, outputPath); err != nil {
			return err
		}
	}
	return runErr
}

func writeResult(result *perf.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
