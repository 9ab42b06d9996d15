package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHTTPRequest(t *testing.T) {
	newReq := func(ua, lang string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", ua)
		r.Header.Set("Accept-Language", lang)
		return r
	}

	tests := []struct {
		name      string
		req1      *http.Request
		req2      *http.Request
		wantEqual bool
	}{
		{
			name:      "same headers",
			req1:      newReq("Mozilla/5.0", "tr-TR"),
			req2:      newReq("Mozilla/5.0", "tr-TR"),
			wantEqual: true,
		},
		{
			name: "different user agent",
			req1: newReq("Mozilla/5.0", "tr-TR"),
			req2: newReq("curl/8.0", "tr-TR"),
		},
		{
			name: "header boundaries matter",
			req1: newReq("ab", "c"),
			req2: newReq("a", "bc"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h1, err := FromHTTPRequest(tc.req1)
			require.NoError(t, err)
			h2, err := FromHTTPRequest(tc.req2)
			require.NoError(t, err)

			assert.Equal(t, tc.wantEqual, h1 == h2)
		})
	}

	t.Run("nil request", func(t *testing.T) {
		_, err := FromHTTPRequest(nil)
		assert.Error(t, err)
	})
}

func TestFingerprintCtxMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	want, err := FromHTTPRequest(req)
	require.NoError(t, err)

	var got string
	handler := FingerprintCtxMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, err = ExtractFingerprint(r.Context())
		require.NoError(t, err)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, want, got)

	_, err = ExtractFingerprint(t.Context())
	assert.Error(t, err)
}
