package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/throughput/perf"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Measure continuously and serve live views over HTTP",
		Long: `Start a continuous measurement in the background and serve its live state:

  /log        last block printed by the run
  /stats      summary of the run so far
  /errors     error table
  /histogram  percentiles of the current window
  /history    retained samples (JSON)
  /status     counters and error table (JSON)
  /metrics    Prometheus metrics

The histogram window is rotated every 16 samples. The run stops on
SIGINT or SIGTERM and prints its final summary.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	addRunFlags(cmd)
	cmd.Flags().String("listen", "127.0.0.1:9090", "Address to serve live views on")
	cmd.Flags().Duration("wait-timeout", 10*time.Second, "How long to wait for the final summary after stopping")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	listen, _ := cmd.Flags().GetString("listen")
	waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

	logger := newLogger()
	defer logger.Sync()

	probeCtx, cancelProbe := context.WithCancel(context.Background())
	defer cancelProbe()

	builder := perf.New(nil).Sink(consoleSink(cmd))
	if err := cfg.Apply(probeCtx, builder); err != nil {
		return err
	}
	daemon, err := builder.Continuous().Daemon()
	if err != nil {
		return err
	}

	var labels prometheus.Labels
	if cfg.Name != "" {
		labels = prometheus.Labels{"run": cfg.Name}
	}
	registry := prometheus.NewRegistry()
	if err := registry.Register(daemon.Collector(labels)); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	server := &http.Server{
		Handler:           newWatchHandler(daemon, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon.Start()
	logger.Info("measurement started",
		zap.String("target", cfg.Target.URL),
		zap.String("listen", ln.Addr().String()))

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("live view server failed", zap.Error(err))
			stop()
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("stopping measurement")
	case <-daemon.Done():
	}
	daemon.Stop()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), waitTimeout)
	defer cancelWait()
	_, runErr := daemon.Wait(waitCtx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("live view server shutdown", zap.Error(err))
	}

	return runErr
}
