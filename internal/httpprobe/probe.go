// Package httpprobe turns an HTTP endpoint into a measurement probe.
package httpprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wesleyorama2/throughput/perf/probe"
)

// maxBody bounds how much of a response is read for checks.
const maxBody = 4 << 20

// Probe issues one HTTP request per task and checks the response.
type Probe struct {
	client  *http.Client
	method  string
	url     string
	headers map[string]string
	body    string

	expectStatus []int
	expectations []Expectation
	schema       *Schema
}

// Option is a function that configures a Probe.
type Option func(*Probe)

// New creates a probe for target. By default it issues GET requests with a
// 30 second timeout and accepts any 2xx status.
func New(target string, options ...Option) (*Probe, error) {
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("invalid target url: %w", err)
	}

	p := &Probe{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		method:  http.MethodGet,
		url:     target,
		headers: make(map[string]string),
	}

	for _, option := range options {
		option(p)
	}

	return p, nil
}

// WithClient replaces the HTTP client. The client is shared by all tasks.
func WithClient(client *http.Client) Option {
	return func(p *Probe) {
		p.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Probe) {
		p.client.Timeout = timeout
	}
}

// WithMethod sets the request method.
func WithMethod(method string) Option {
	return func(p *Probe) {
		p.method = strings.ToUpper(method)
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(p *Probe) {
		p.headers[key] = value
	}
}

// WithBody sets the request body sent with every request.
func WithBody(body string) Option {
	return func(p *Probe) {
		p.body = body
	}
}

// WithExpectStatus sets the accepted status codes, replacing the 2xx default.
func WithExpectStatus(codes ...int) Option {
	return func(p *Probe) {
		p.expectStatus = codes
	}
}

// WithExpectation adds a JSON path assertion on the response body.
func WithExpectation(e Expectation) Option {
	return func(p *Probe) {
		p.expectations = append(p.expectations, e)
	}
}

// WithSchema requires the response body to satisfy s.
func WithSchema(s *Schema) Option {
	return func(p *Probe) {
		p.schema = s
	}
}

// Factory returns a probe factory whose tasks issue one request each on
// their own goroutine. Cancelling ctx aborts in-flight requests.
func (p *Probe) Factory(ctx context.Context) probe.Factory {
	return probe.Async(func() error {
		return p.Do(ctx)
	})
}

// Do issues one request and checks the response.
//
// Error messages depend only on the probe configuration and the kind of
// failure, never on per-request values, so failures deduplicate well.
func (p *Probe) Do(ctx context.Context) error {
	var body io.Reader
	if p.body != "" {
		body = strings.NewReader(p.body)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, value := range p.headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.transportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return p.transportError(err)
	}

	if !p.statusOK(resp.StatusCode) {
		return &CheckError{
			Check:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Detail: string(payload),
		}
	}

	for _, e := range p.expectations {
		if err := e.check(payload); err != nil {
			return err
		}
	}

	if p.schema != nil {
		return p.schema.check(payload)
	}
	return nil
}

func (p *Probe) statusOK(code int) bool {
	if len(p.expectStatus) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range p.expectStatus {
		if c == code {
			return true
		}
	}
	return false
}

// transportError strips the per-request URL wrapper so equal failures share
// one message.
func (p *Probe) transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("%s %s: %w", p.method, p.url, err)
}
