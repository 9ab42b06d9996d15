package session_test

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/session-client/internal/credential"
	credentialmock "github.com/openkcm/session-client/internal/credential/mock"
	"github.com/openkcm/session-client/internal/session"
	sessionmock "github.com/openkcm/session-client/internal/session/mock"
	"github.com/openkcm/session-client/internal/token"
)

var (
	testKey = []byte("0123456789abcdef0123456789abcdef")
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func mintToken(t *testing.T, expiry time.Time) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: testKey}, nil)
	require.NoError(t, err)

	raw, err := jwt.Signed(signer).Claims(map[string]any{
		"Id":       7,
		"Name":     "Mehmet Yılmaz",
		"Email":    "mehmet@example.com",
		"UserName": "mehmet",
		"exp":      expiry.Unix(),
	}).Serialize()
	require.NoError(t, err)

	return raw
}

var testUser = &session.User{
	ID:       "7",
	Name:     "Mehmet Yılmaz",
	Email:    "mehmet@example.com",
	UserName: "mehmet",
}

type fixture struct {
	machine   *session.Machine
	backend   *credentialmock.Backend
	requester *sessionmock.Requester
	clock     *clock
}

func newFixture(requester *sessionmock.Requester, backendOpts ...credentialmock.BackendOption) *fixture {
	f := &fixture{
		backend:   credentialmock.NewInMemBackend(backendOpts...),
		requester: requester,
		clock:     &clock{now: testNow},
	}
	f.machine = session.NewMachine(
		requester,
		credential.NewStore(f.backend),
		token.NewCodec(),
		session.WithClock(f.clock.Now),
	)
	return f
}
