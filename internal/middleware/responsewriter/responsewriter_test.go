package responsewriter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/session-client/internal/middleware/responsewriter"
)

func TestResponseWriterMiddleware(t *testing.T) {
	var calledNextHandler bool

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calledNextHandler = true

		injectedWriter, err := responsewriter.ResponseWriterFromContext(r.Context())
		require.NoError(t, err)
		assert.Same(t, rec, injectedWriter.Unwrap())
		assert.Same(t, injectedWriter, w)
		assert.False(t, injectedWriter.Written())

		injectedRequest, err := responsewriter.RequestFromContext(r.Context())
		require.NoError(t, err)
		assert.Equal(t, "/test", injectedRequest.URL.Path)
		assert.Equal(t, "/test", responsewriter.PathLocator{}.Location(r.Context()))

		_, _ = w.Write([]byte("ok"))
		assert.True(t, injectedWriter.Written())
	})

	responsewriter.ResponseWriterMiddleware(next).ServeHTTP(rec, req)

	assert.True(t, calledNextHandler, "The next handler was not executed")
	assert.Equal(t, "ok", rec.Body.String())
}

func TestFromContext_Missing(t *testing.T) {
	t.Run("no values", func(t *testing.T) {
		_, err := responsewriter.ResponseWriterFromContext(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in context")

		_, err = responsewriter.RequestFromContext(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in context")

		assert.Empty(t, responsewriter.PathLocator{}.Location(t.Context()))
	})

	t.Run("values of the wrong type", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), responsewriter.ResponseWriterKey, "not a writer")
		ctx = context.WithValue(ctx, responsewriter.RequestKey, 42)

		_, err := responsewriter.ResponseWriterFromContext(ctx)
		require.Error(t, err)

		_, err = responsewriter.RequestFromContext(ctx)
		require.Error(t, err)
	})
}

func TestRedirector_Navigate(t *testing.T) {
	tests := []struct {
		name       string
		redirector responsewriter.Redirector
		wantStatus int
	}{
		{name: "default status", wantStatus: http.StatusFound},
		{name: "see other", redirector: responsewriter.Redirector{Status: http.StatusSeeOther}, wantStatus: http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

			handler := responsewriter.ResponseWriterMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				tt.redirector.Navigate(r.Context(), "/login")
			}))
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
		})
	}

	t.Run("only the first navigation answers the call", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

		handler := responsewriter.ResponseWriterMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			responsewriter.Redirector{}.Navigate(r.Context(), "/login")
			responsewriter.Redirector{}.Navigate(r.Context(), "/pages/empty")
		}))
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("outside a request", func(t *testing.T) {
		assert.NotPanics(t, func() {
			responsewriter.Redirector{}.Navigate(t.Context(), "/login")
		})
	})
}
