// Package fingerprint derives a weak browser fingerprint from request headers
// and carries it in the request context.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"
)

var headerKeys = []string{"user-agent", "accept-language"}

type ctxKey string

const fingerprintKey ctxKey = "fingerprint"

func FromHTTPRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", errors.New("http request is nil")
	}

	h := sha256.New()
	for _, key := range headerKeys {
		val := r.Header.Get(key)
		slogctx.Debug(r.Context(), "Building fingerprint", "header", key)
		h.Write([]byte(val))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func FingerprintCtxMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp, _ := FromHTTPRequest(r)
		ctx := context.WithValue(r.Context(), fingerprintKey, fp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ExtractFingerprint(ctx context.Context) (string, error) {
	fp, ok := ctx.Value(fingerprintKey).(string)
	if !ok {
		return "", errors.New("no fingerprint in ctx")
	}
	return fp, nil
}
