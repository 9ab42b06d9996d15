// Package token decodes the bearer token issued by the dashboard API.
//
// Decoding is structural only. The signature is not verified: the claims
// drive navigation on the client and never grant access to anything.
package token

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/go-viper/mapstructure/v2"

	"github.com/openkcm/session-client/internal/serviceerr"
)

const (
	claimID     = "Id"
	claimExpiry = "exp"
)

// DefaultSignatureAlgorithms is accepted when no list is configured.
var DefaultSignatureAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.EdDSA,
}

// Claims are the user attributes carried by the token.
type Claims struct {
	ID       string `mapstructure:"Id"`
	Name     string `mapstructure:"Name"`
	Email    string `mapstructure:"Email"`
	UserName string `mapstructure:"UserName"`
	// Expiry is in seconds since the epoch.
	Expiry int64 `mapstructure:"exp"`
}

// ExpiresAt returns the expiry as a time.
func (c Claims) ExpiresAt() time.Time {
	return time.Unix(c.Expiry, 0)
}

type Codec struct {
	algs []jose.SignatureAlgorithm
}

// NewCodec returns a codec accepting the given JWS algorithms. An empty list
// falls back to DefaultSignatureAlgorithms.
func NewCodec(algs ...string) *Codec {
	c := &Codec{}
	if len(algs) == 0 {
		c.algs = DefaultSignatureAlgorithms
		return c
	}

	c.algs = make([]jose.SignatureAlgorithm, 0, len(algs))
	for _, alg := range algs {
		c.algs = append(c.algs, jose.SignatureAlgorithm(alg))
	}

	return c
}

// Decode extracts the claims from a compact JWS without verifying it. Only
// Id and exp are required; the profile claims decode to "" when absent.
// Every failure wraps serviceerr.ErrDecode.
func (c *Codec) Decode(raw string) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, c.algs)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: parsing token: %w", serviceerr.ErrDecode, err)
	}

	var rawClaims map[string]any
	if err := tok.UnsafeClaimsWithoutVerification(&rawClaims); err != nil {
		return Claims{}, fmt.Errorf("%w: reading claims: %w", serviceerr.ErrDecode, err)
	}

	for _, name := range []string{claimID, claimExpiry} {
		if v, ok := rawClaims[name]; !ok || v == nil {
			return Claims{}, fmt.Errorf("%w: missing claim %q", serviceerr.ErrDecode, name)
		}
	}

	var claims Claims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &claims,
	})
	if err != nil {
		return Claims{}, fmt.Errorf("creating claims decoder: %w", err)
	}
	if err := decoder.Decode(rawClaims); err != nil {
		return Claims{}, fmt.Errorf("%w: mapping claims: %w", serviceerr.ErrDecode, err)
	}

	return claims, nil
}

// IsExpired reports whether now is strictly past the expiry instant.
func IsExpired(claims Claims, now time.Time) bool {
	return now.After(claims.ExpiresAt())
}
