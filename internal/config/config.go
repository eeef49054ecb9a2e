// Package config reads run files for the throughput CLI.
//
// Example YAML:
//
//	name: "health check"
//	workers: 8
//	duration: 30s
//	interval: 1s
//	discipline: blocking
//	rate: 200
//	chart: latency.png
//	target:
//	  url: "https://api.example.com/health"
//	  method: GET
//	  timeout: 5s
//	  expectStatus: [200]
//	  expectJSON:
//	    - path: "$.status"
//	      equals: "ok"
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/throughput/internal/httpprobe"
	"github.com/wesleyorama2/throughput/perf"
	"github.com/wesleyorama2/throughput/perf/executor"
	"github.com/wesleyorama2/throughput/perf/report"
)

// RunConfig is the root of a run file.
type RunConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Workers is the number of concurrent worker loops
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Duration of the run; "0" runs until stopped
	Duration *Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Interval between live samples
	Interval *Duration `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Discipline is "stress" or "blocking"
	Discipline string `json:"discipline,omitempty" yaml:"discipline,omitempty"`

	// Rate caps dispatches per second across all workers (0 = unlimited)
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// Histogram toggles the final percentile block (default: true)
	Histogram *bool `json:"histogram,omitempty" yaml:"histogram,omitempty"`

	// Chart is the PNG path of the final distribution chart
	Chart string `json:"chart,omitempty" yaml:"chart,omitempty"`

	// DrainTimeout bounds the wait for in-flight tasks at the end
	DrainTimeout *Duration `json:"drainTimeout,omitempty" yaml:"drainTimeout,omitempty"`

	// Target is the HTTP endpoint under measurement
	Target TargetConfig `json:"target" yaml:"target"`
}

// TargetConfig describes the request each task issues.
type TargetConfig struct {
	URL          string            `json:"url" yaml:"url"`
	Method       string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         string            `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout      Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ExpectStatus []int             `json:"expectStatus,omitempty" yaml:"expectStatus,omitempty"`
	ExpectJSON   []JSONExpectation `json:"expectJSON,omitempty" yaml:"expectJSON,omitempty"`

	// Schema is an inline JSON schema the response body must satisfy
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// JSONExpectation asserts a value in the response body.
type JSONExpectation struct {
	Path   string `json:"path" yaml:"path"`
	Equals string `json:"equals,omitempty" yaml:"equals,omitempty"`
}

var methods = []interface{}{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// Load reads and validates a run file. The format follows the extension:
// .json is JSON, anything else is YAML.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, path)
}

// Parse decodes and validates run file data.
func Parse(data []byte, path string) (*RunConfig, error) {
	var config RunConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Validate checks the run file.
func (c RunConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.Duration, validation.Min(Duration(0))),
		validation.Field(&c.Interval, validation.Min(Duration(time.Millisecond))),
		validation.Field(&c.Discipline, validation.In(string(executor.Stress), string(executor.Blocking))),
		validation.Field(&c.Rate, validation.Min(0.0)),
		validation.Field(&c.DrainTimeout, validation.Min(Duration(0))),
		validation.Field(&c.Target),
	)
}

// Validate checks the target.
func (t TargetConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.URL, validation.Required, is.RequestURL),
		validation.Field(&t.Method, validation.By(func(value interface{}) error {
			return validation.In(methods...).Validate(strings.ToUpper(value.(string)))
		})),
		validation.Field(&t.Timeout, validation.Min(Duration(0))),
		validation.Field(&t.ExpectStatus, validation.Each(validation.Min(100), validation.Max(599))),
		validation.Field(&t.ExpectJSON),
	)
}

// Validate checks the expectation.
func (e JSONExpectation) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Path, validation.Required),
	)
}

// Probe builds the HTTP probe described by the target.
func (c *RunConfig) Probe() (*httpprobe.Probe, error) {
	t := c.Target

	options := []httpprobe.Option{}
	if t.Method != "" {
		options = append(options, httpprobe.WithMethod(t.Method))
	}
	for key, value := range t.Headers {
		options = append(options, httpprobe.WithHeader(key, value))
	}
	if t.Body != "" {
		options = append(options, httpprobe.WithBody(t.Body))
	}
	if t.Timeout > 0 {
		options = append(options, httpprobe.WithTimeout(t.Timeout.Std()))
	}
	if len(t.ExpectStatus) > 0 {
		options = append(options, httpprobe.WithExpectStatus(t.ExpectStatus...))
	}
	for _, e := range t.ExpectJSON {
		options = append(options, httpprobe.WithExpectation(httpprobe.Expectation{
			Path:   e.Path,
			Equals: e.Equals,
		}))
	}
	if t.Schema != "" {
		schema, err := httpprobe.CompileSchema(t.Schema)
		if err != nil {
			return nil, err
		}
		options = append(options, httpprobe.WithSchema(schema))
	}

	return httpprobe.New(t.URL, options...)
}

// Apply maps the run file onto b and installs the HTTP probe as its factory.
// Requests are bound to ctx.
func (c *RunConfig) Apply(ctx context.Context, b *perf.Builder) error {
	p, err := c.Probe()
	if err != nil {
		return err
	}
	b.Factory(p.Factory(ctx))

	if c.Workers > 0 {
		b.Workers(c.Workers)
	}
	if c.Duration != nil {
		b.Duration(c.Duration.Std())
	}
	if c.Interval != nil {
		b.ReportInterval(c.Interval.Std())
	}
	if c.Discipline != "" {
		d, err := executor.ParseDiscipline(c.Discipline)
		if err != nil {
			return err
		}
		b.Discipline(d)
	}
	if c.Rate > 0 {
		b.Rate(c.Rate)
	}
	if c.Histogram != nil {
		b.Histogram(*c.Histogram)
	}
	if c.Chart != "" {
		b.ChartRenderer(report.NewPNGChart(c.Chart))
	}
	if c.DrainTimeout != nil {
		b.DrainTimeout(c.DrainTimeout.Std())
	}
	return nil
}
