package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/throughput/perf"
	"github.com/wesleyorama2/throughput/perf/metrics"
	"github.com/wesleyorama2/throughput/perf/probe"
	"github.com/wesleyorama2/throughput/perf/sink"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "watch")
	assert.NotNil(t, root.PersistentFlags().Lookup("no-color"))
}

func TestLoadRunConfig_FromFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--url", "http://localhost:8080/health",
		"--workers", "4",
		"--duration", "0",
		"--interval", "250ms",
		"--discipline", "blocking",
		"--rate", "100",
		"--no-histogram",
		"-X", "post",
		"-H", "Content-Type: application/json",
		"-H", "X-Trace:abc",
		"--body", `{"a":1}`,
		"--timeout", "2s",
		"--expect-status", "200,201",
		"--expect-json", "$.status=ok",
		"--expect-json", "$.id",
	}))

	cfg, err := loadRunConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/health", cfg.Target.URL)
	assert.Equal(t, 4, cfg.Workers)
	require.NotNil(t, cfg.Duration)
	assert.Equal(t, time.Duration(0), cfg.Duration.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Interval.Std())
	assert.Equal(t, "blocking", cfg.Discipline)
	assert.Equal(t, 100.0, cfg.Rate)
	require.NotNil(t, cfg.Histogram)
	assert.False(t, *cfg.Histogram)
	assert.Equal(t, "post", cfg.Target.Method)
	assert.Equal(t, map[string]string{
		"Content-Type": "application/json",
		"X-Trace":      "abc",
	}, cfg.Target.Headers)
	assert.Equal(t, `{"a":1}`, cfg.Target.Body)
	assert.Equal(t, 2*time.Second, cfg.Target.Timeout.Std())
	assert.Equal(t, []int{200, 201}, cfg.Target.ExpectStatus)
	require.Len(t, cfg.Target.ExpectJSON, 2)
	assert.Equal(t, "ok", cfg.Target.ExpectJSON[0].Equals)
	assert.Equal(t, "$.id", cfg.Target.ExpectJSON[1].Path)
	assert.Empty(t, cfg.Target.ExpectJSON[1].Equals)
}

func TestLoadRunConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: file
workers: 2
duration: 1m
target:
  url: http://localhost:8080/
`), 0o644))

	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--workers", "6"}))

	cfg, err := loadRunConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Name)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.Duration.Std())
}

func TestLoadRunConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no target", args: nil, wantErr: "either --config or --url is required"},
		{name: "bad header", args: []string{"--url", "http://localhost/", "-H", "nocolon"}, wantErr: "invalid header"},
		{name: "bad discipline", args: []string{"--url", "http://localhost/", "--discipline", "eager"}, wantErr: "discipline"},
		{name: "missing file", args: []string{"--config", "does-not-exist.yaml"}, wantErr: "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			_, err := loadRunConfig(cmd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	output := filepath.Join(t.TempDir(), "result.json")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{
		"run",
		"--url", server.URL,
		"--workers", "2",
		"--duration", "300ms",
		"--interval", "100ms",
		"--discipline", "blocking",
		"--expect-json", "status=ok",
		"--no-color",
		"--output", output,
	})

	require.NoError(t, root.Execute())

	text := out.String()
	assert.Contains(t, text, "Sample results :")
	assert.Contains(t, text, "REQUESTS:")
	assert.Contains(t, text, "Main percentiles (action execution time):")

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var result struct {
		Seconds float64 `json:"seconds"`
		Stats   struct {
			RequestCount int64 `json:"requestCount"`
			ErrorCount   int64 `json:"errorCount"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Greater(t, result.Stats.RequestCount, int64(0))
	assert.Equal(t, int64(0), result.Stats.ErrorCount)
	assert.InDelta(t, 0.3, result.Seconds, 0.001)
	assert.NotContains(t, string(data), `"pacing"`)
}

func TestRunCommand_RecordsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{
		"run",
		"--url", server.URL,
		"--duration", "200ms",
		"--interval", "100ms",
		"--discipline", "blocking",
		"--no-histogram",
		"--no-color",
	})

	require.NoError(t, root.Execute())

	text := out.String()
	assert.Contains(t, text, "ERRORS ")
	assert.Contains(t, text, "times : unexpected status 502")
	assert.NotContains(t, text, "Main percentiles")
}

func TestRunCommand_MissingTarget(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"run"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --config or --url is required")
}

func TestWatchHandler(t *testing.T) {
	var n atomic.Int64
	daemon, err := perf.New(probe.Sync(func() error {
		if n.Add(1)%3 == 0 {
			return errors.New("every third fails")
		}
		return nil
	})).
		Continuous().
		Rate(500).
		ReportInterval(10 * time.Millisecond).
		Sink(sink.Discard).
		Daemon()
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(daemon.Collector(nil)))

	server := httptest.NewServer(newWatchHandler(daemon, registry))
	defer server.Close()

	require.True(t, daemon.Start())
	defer daemon.Stop()

	require.Eventually(t, func() bool {
		return daemon.Snapshot().ErrorCount > 0 && len(daemon.History()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	get := func(path string) (string, string) {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body), resp.Header.Get("Content-Type")
	}

	body, _ := get("/stats")
	assert.Contains(t, body, "REQUESTS:")

	body, _ = get("/errors")
	assert.Contains(t, body, "every third fails")

	body, _ = get("/histogram")
	assert.Contains(t, body, "Main percentiles (action execution time):")

	body, _ = get("/log")
	assert.NotEmpty(t, body)

	body, contentType := get("/history")
	assert.Equal(t, "application/json", contentType)
	var samples []metrics.Sample
	require.NoError(t, json.Unmarshal([]byte(body), &samples))
	assert.NotEmpty(t, samples)

	body, _ = get("/status")
	var status watchStatus
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.True(t, status.Running)
	assert.False(t, status.StartTime.IsZero())
	assert.Greater(t, status.Stats.LoopCount, int64(0))
	require.NotEmpty(t, status.Errors)
	assert.Equal(t, "every third fails", status.Errors[0].Message)
	require.NotNil(t, status.Pacing)
	assert.Equal(t, 500.0, status.Pacing.Rate)
	assert.Greater(t, status.Pacing.Dispatched, int64(0))

	body, _ = get("/metrics")
	assert.Contains(t, body, "throughput_requests_total")
	assert.Contains(t, body, `throughput_errors_by_message_total{message="every third fails"}`)

	resp, err := http.Post(server.URL+"/stats", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	daemon.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = daemon.Wait(ctx)
	require.NoError(t, err)
}
