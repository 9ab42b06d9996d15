// Package responsewriter injects the response writer and request of an
// incoming call into its context, so code that only sees a context can
// still answer the call, e.g. with a redirect.
package responsewriter

import (
	"context"
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"
)

// Using an unexported type prevents key collisions from other packages.
type contextKey string

const (
	ResponseWriterKey contextKey = "response-writer"
	RequestKey        contextKey = "request"
)

// Writer records whether the response header was already sent.
type Writer struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *Writer) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *Writer) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Written reports whether a status or body was sent.
func (w *Writer) Written() bool {
	return w.wroteHeader
}

func (w *Writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// ResponseWriterMiddleware is an http.Handler middleware that injects
// the response writer and the original *http.Request into the context.
func ResponseWriterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &Writer{ResponseWriter: w}
		ctx := context.WithValue(r.Context(), ResponseWriterKey, rw)
		r = r.WithContext(ctx)
		ctx = context.WithValue(ctx, RequestKey, r)
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// ResponseWriterFromContext retrieves the response writer from the context.
func ResponseWriterFromContext(ctx context.Context) (*Writer, error) {
	w, ok := ctx.Value(ResponseWriterKey).(*Writer)
	if !ok {
		return nil, errors.New("response writer not found in context")
	}
	return w, nil
}

// RequestFromContext retrieves the original request from the context.
func RequestFromContext(ctx context.Context) (*http.Request, error) {
	r, ok := ctx.Value(RequestKey).(*http.Request)
	if !ok {
		return nil, errors.New("request not found in context")
	}
	return r, nil
}

// PathLocator reports the path of the request in the context.
type PathLocator struct{}

func (PathLocator) Location(ctx context.Context) string {
	r, err := RequestFromContext(ctx)
	if err != nil {
		return ""
	}
	return r.URL.Path
}

// Redirector navigates by answering the current call with a redirect. A
// call that was already answered is left alone.
type Redirector struct {
	Status int
}

func (rd Redirector) Navigate(ctx context.Context, location string) {
	w, err := ResponseWriterFromContext(ctx)
	if err != nil {
		slogctx.Debug(ctx, "Not navigating outside an HTTP call", "location", location, "error", err)
		return
	}
	r, err := RequestFromContext(ctx)
	if err != nil {
		slogctx.Debug(ctx, "Not navigating outside an HTTP call", "location", location, "error", err)
		return
	}

	if w.Written() {
		slogctx.Debug(ctx, "Response already sent, not redirecting", "location", location)
		return
	}

	status := rd.Status
	if status == 0 {
		status = http.StatusFound
	}

	http.Redirect(w, r, location, status)
}
