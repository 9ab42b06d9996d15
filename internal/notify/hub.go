// Package notify delivers user facing notices to whichever surface is
// currently able to display them.
package notify

import (
	"context"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/failure"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityError   Severity = "error"
)

type Message struct {
	Severity Severity
	Summary  string
	Detail   string
	Life     time.Duration
}

// Receiver displays a message. It is called without any hub lock held.
type Receiver func(ctx context.Context, msg Message)

// Hub has at most one active receiver. Subscribing displaces the current
// one; messages published while there is none are logged and dropped.
type Hub struct {
	catalog *Catalog

	mu       sync.Mutex
	active   Receiver
	activeID uint64
	nextID   uint64
}

func NewHub(catalog *Catalog) *Hub {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Hub{catalog: catalog}
}

// Subscribe makes r the active receiver. The returned func unsubscribes it;
// calling it after r was displaced does nothing.
func (h *Hub) Subscribe(r Receiver) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.active = r
	h.activeID = id

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if h.activeID == id {
				h.active = nil
				h.activeID = 0
			}
		})
	}
}

func (h *Hub) Publish(ctx context.Context, msg Message) {
	h.mu.Lock()
	receiver := h.active
	h.mu.Unlock()

	if receiver == nil {
		slogctx.Error(ctx, "No notification receiver registered, dropping message",
			"severity", msg.Severity,
			"summary", msg.Summary,
			"detail", msg.Detail,
		)
		return
	}

	receiver(ctx, msg)
}

// Report renders a request failure through the catalog and publishes it.
func (h *Hub) Report(ctx context.Context, f *failure.RequestFailure) {
	h.Publish(ctx, h.catalog.Message(f))
}

func (h *Hub) Success(ctx context.Context, summary, detail string) {
	h.notice(ctx, SeveritySuccess, summary, detail)
}

func (h *Hub) Info(ctx context.Context, summary, detail string) {
	h.notice(ctx, SeverityInfo, summary, detail)
}

func (h *Hub) Warn(ctx context.Context, summary, detail string) {
	h.notice(ctx, SeverityWarn, summary, detail)
}

func (h *Hub) Error(ctx context.Context, summary, detail string) {
	h.notice(ctx, SeverityError, summary, detail)
}

func (h *Hub) notice(ctx context.Context, severity Severity, summary, detail string) {
	h.Publish(ctx, Message{
		Severity: severity,
		Summary:  summary,
		Detail:   detail,
		Life:     h.catalog.Life,
	})
}
