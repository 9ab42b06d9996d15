package sessionmock

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/openkcm/session-client/internal/dispatch"
	"github.com/openkcm/session-client/internal/session"
)

type RequesterOption func(*Requester)

// Requester answers login requests with a fixed token or error.
type Requester struct {
	mu    sync.Mutex
	token string
	err   error
	gate  chan struct{}

	started chan struct{}
	calls   []any
}

func WithToken(token string) RequesterOption {
	return func(r *Requester) { r.token = token }
}
func WithError(err error) RequesterOption {
	return func(r *Requester) { r.err = err }
}

// WithGate holds every request until gate is closed or the request context
// ends.
func WithGate(gate chan struct{}) RequesterOption {
	return func(r *Requester) { r.gate = gate }
}

var _ = session.Requester(&Requester{})

func NewRequester(opts ...RequesterOption) *Requester {
	r := &Requester{started: make(chan struct{}, 16)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Started receives a value whenever a request begins.
func (r *Requester) Started() <-chan struct{} {
	return r.started
}

func (r *Requester) Calls() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Requester) Post(ctx context.Context, _ string, body, out any) (*dispatch.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, body)
	token, err, gate := r.token, r.err, r.gate
	r.mu.Unlock()

	select {
	case r.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{"data": map[string]string{"token": token}})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, err
		}
	}

	return &dispatch.Response{Status: http.StatusOK, StatusText: "OK", Body: payload}, nil
}
