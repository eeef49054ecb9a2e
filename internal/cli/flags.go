package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/throughput/internal/config"
	"github.com/wesleyorama2/throughput/perf"
)

// addRunFlags registers the flags shared by run and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Run file (YAML or JSON)")
	cmd.Flags().String("url", "", "URL to measure (alternative to --config)")

	cmd.Flags().IntP("workers", "w", perf.DefaultWorkers, "Number of concurrent workers")
	cmd.Flags().DurationP("duration", "d", perf.DefaultDuration, "Run duration, 0 runs until interrupted")
	cmd.Flags().Duration("interval", perf.DefaultReportInterval, "Interval between live samples")
	cmd.Flags().String("discipline", "stress", "Worker discipline: stress or blocking")
	cmd.Flags().Float64("rate", 0, "Maximum dispatches per second across all workers (0 = unlimited)")
	cmd.Flags().Bool("no-histogram", false, "Do not print the final percentiles")
	cmd.Flags().String("chart", "", "Render the final distribution as a PNG at this path")
	cmd.Flags().Duration("drain-timeout", perf.DefaultDrainTimeout, "How long to wait for in-flight requests at the end")

	cmd.Flags().StringP("method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayP("header", "H", nil, "Request header as 'Key: Value' (repeatable)")
	cmd.Flags().String("body", "", "Request body")
	cmd.Flags().DurationP("timeout", "t", 0, "Request timeout (default 30s)")
	cmd.Flags().IntSlice("expect-status", nil, "Accepted status codes (default any 2xx)")
	cmd.Flags().StringArray("expect-json", nil, "Response assertion as 'path=value' or 'path' (repeatable)")
}

// loadRunConfig builds the run configuration from --config, then applies
// every flag set explicitly on the command line on top of it.
func loadRunConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	flags := cmd.Flags()

	configFile, _ := flags.GetString("config")
	url, _ := flags.GetString("url")

	cfg := &config.RunConfig{}
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case url == "":
		return nil, fmt.Errorf("either --config or --url is required")
	}

	if flags.Changed("url") {
		cfg.Target.URL = url
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("duration") {
		d, _ := flags.GetDuration("duration")
		cfg.Duration = durationPtr(d)
	}
	if flags.Changed("interval") {
		d, _ := flags.GetDuration("interval")
		cfg.Interval = durationPtr(d)
	}
	if flags.Changed("discipline") {
		cfg.Discipline, _ = flags.GetString("discipline")
	}
	if flags.Changed("rate") {
		cfg.Rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("no-histogram") {
		noHistogram, _ := flags.GetBool("no-histogram")
		show := !noHistogram
		cfg.Histogram = &show
	}
	if flags.Changed("chart") {
		cfg.Chart, _ = flags.GetString("chart")
	}
	if flags.Changed("drain-timeout") {
		d, _ := flags.GetDuration("drain-timeout")
		cfg.DrainTimeout = durationPtr(d)
	}

	if flags.Changed("method") {
		cfg.Target.Method, _ = flags.GetString("method")
	}
	if flags.Changed("header") {
		headers, _ := flags.GetStringArray("header")
		if cfg.Target.Headers == nil {
			cfg.Target.Headers = make(map[string]string)
		}
		for _, h := range headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok {
				return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
			}
			cfg.Target.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	if flags.Changed("body") {
		cfg.Target.Body, _ = flags.GetString("body")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Target.Timeout = config.Duration(d)
	}
	if flags.Changed("expect-status") {
		cfg.Target.ExpectStatus, _ = flags.GetIntSlice("expect-status")
	}
	if flags.Changed("expect-json") {
		expectations, _ := flags.GetStringArray("expect-json")
		for _, e := range expectations {
			path, value, _ := strings.Cut(e, "=")
			cfg.Target.ExpectJSON = append(cfg.Target.ExpectJSON, config.JSONExpectation{
				Path:   strings.TrimSpace(path),
				Equals: strings.TrimSpace(value),
			})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	return cfg, nil
}

func durationPtr(d time.Duration) *config.Duration {
	v := config.Duration(d)
	return &v
}
