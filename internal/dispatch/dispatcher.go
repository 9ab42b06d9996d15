// Package dispatch sends requests to the dashboard API on behalf of the
// session, attaching the stored bearer token and reporting failures.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/failure"
)

const outcomeOK = "ok"

// TokenSource yields the current raw token, if any.
type TokenSource interface {
	Get(ctx context.Context) (string, bool)
}

// Reporter receives every failure before it is returned to the caller.
type Reporter interface {
	Report(ctx context.Context, f *failure.RequestFailure)
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Reporter   Reporter
}

type Response struct {
	Status     int
	StatusText string
	Body       []byte
}

type Dispatcher struct {
	baseURL  string
	client   *http.Client
	tokens   TokenSource
	reporter Reporter

	requests metric.Int64Counter
}

func New(cfg Config) (*Dispatcher, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	meter := otel.Meter("session-client/dispatch", metric.WithInstrumentationVersion(otel.Version()))
	requests, err := meter.Int64Counter(
		"session_client.requests",
		metric.WithDescription("Outbound API request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	return &Dispatcher{
		baseURL:  strings.TrimSuffix(u.String(), "/"),
		client:   client,
		tokens:   cfg.Tokens,
		reporter: cfg.Reporter,
		requests: requests,
	}, nil
}

func (d *Dispatcher) Get(ctx context.Context, path string, out any) (*Response, error) {
	return d.Do(ctx, http.MethodGet, path, nil, out)
}

func (d *Dispatcher) Post(ctx context.Context, path string, body, out any) (*Response, error) {
	return d.Do(ctx, http.MethodPost, path, body, out)
}

func (d *Dispatcher) Put(ctx context.Context, path string, body, out any) (*Response, error) {
	return d.Do(ctx, http.MethodPut, path, body, out)
}

func (d *Dispatcher) Delete(ctx context.Context, path string, out any) (*Response, error) {
	return d.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends one request. body is encoded as JSON when not nil; a 2xx body is
// decoded into out when out is not nil. Any failure is a
// *failure.RequestFailure, already forwarded to the reporter.
func (d *Dispatcher) Do(ctx context.Context, method, path string, body, out any) (*Response, error) {
	ctx = slogctx.With(ctx, "method", method, "path", path)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if d.tokens != nil {
		if token, ok := d.tokens.Get(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.fail(ctx, failure.FromTransport(method, path, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, d.fail(ctx, failure.FromTransport(method, path, fmt.Errorf("reading response body: %w", err)))
	}

	statusText := http.StatusText(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, d.fail(ctx, failure.FromResponse(method, path, resp.StatusCode, statusText, payload))
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, d.fail(ctx, &failure.RequestFailure{
				Kind:   failure.KindUnexpected,
				Status: resp.StatusCode,
				Method: method,
				Path:   path,
				Err:    fmt.Errorf("decoding response body: %w", err),
			})
		}
	}

	d.count(ctx, method, outcomeOK)
	slogctx.Debug(ctx, "Request succeeded", "status", resp.StatusCode)

	return &Response{
		Status:     resp.StatusCode,
		StatusText: statusText,
		Body:       payload,
	}, nil
}

func (d *Dispatcher) fail(ctx context.Context, f *failure.RequestFailure) error {
	d.count(ctx, f.Method, string(f.Kind))

	if errors.Is(f.Err, context.Canceled) {
		slogctx.Debug(ctx, "Request cancelled")
	} else {
		slogctx.Warn(ctx, "Request failed", "kind", f.Kind, "status", f.Status, "error", f.Err)
	}

	if d.reporter != nil {
		d.reporter.Report(ctx, f)
	}

	return f
}

func (d *Dispatcher) count(ctx context.Context, method, outcome string) {
	d.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

func (d *Dispatcher) url(path string) string {
	return d.baseURL + "/" + strings.TrimPrefix(path, "/")
}
