// Package guard decides what a location may show given the session state.
package guard

import (
	"context"
	"net/http"
	"path"
	"slices"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/session"
)

const (
	defaultLoginPath = "/login"
	defaultHomePath  = "/pages/empty"
)

type Action int

const (
	// ActionRenderChildren shows the public page as is.
	ActionRenderChildren Action = iota
	// ActionRedirect shows nothing and navigates to Decision.Location.
	ActionRedirect
	// ActionRenderShell shows the page inside the protected layout.
	ActionRenderShell
)

func (a Action) String() string {
	switch a {
	case ActionRenderChildren:
		return "render-children"
	case ActionRedirect:
		return "redirect"
	case ActionRenderShell:
		return "render-shell"
	default:
		return "unknown"
	}
}

type Decision struct {
	Action   Action
	Location string
}

type Config struct {
	LoginPath   string
	HomePath    string
	PublicPaths []string
}

// Navigator moves the user to another location.
type Navigator interface {
	Navigate(ctx context.Context, location string)
}

type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Locator reports the location shown in the context of a transition.
type Locator interface {
	Location(ctx context.Context) string
}

// Source emits the session state after each transition.
type Source interface {
	Subscribe(l session.Listener) func()
}

type Guard struct {
	loginPath string
	homePath  string
	public    []string
}

// New builds a guard. The login path is always public.
func New(cfg Config) *Guard {
	g := &Guard{
		loginPath: cfg.LoginPath,
		homePath:  cfg.HomePath,
	}
	if g.loginPath == "" {
		g.loginPath = defaultLoginPath
	}
	if g.homePath == "" {
		g.homePath = defaultHomePath
	}

	g.public = append(g.public, clean(g.loginPath))
	for _, p := range cfg.PublicPaths {
		p = clean(p)
		if !slices.Contains(g.public, p) {
			g.public = append(g.public, p)
		}
	}

	return g
}

func (g *Guard) LoginPath() string { return g.loginPath }
func (g *Guard) HomePath() string  { return g.homePath }

func (g *Guard) IsPublic(location string) bool {
	return slices.Contains(g.public, clean(location))
}

func (g *Guard) Decide(isAuthenticated bool, location string) Decision {
	switch {
	case g.IsPublic(location):
		return Decision{Action: ActionRenderChildren}
	case !isAuthenticated:
		return Decision{Action: ActionRedirect, Location: g.loginPath}
	default:
		return Decision{Action: ActionRenderShell}
	}
}

// Middleware applies Decide to every request using the live session check.
// Public pages are served by next directly; protected pages are served by
// shell(next).
func (g *Guard) Middleware(auth Authenticator, nav Navigator, shell func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := shell(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			isAuthenticated := false
			if !g.IsPublic(r.URL.Path) {
				isAuthenticated = auth.IsAuthenticated(ctx)
			}

			decision := g.Decide(isAuthenticated, r.URL.Path)
			slogctx.Debug(ctx, "Guard decision", "path", r.URL.Path, "action", decision.Action)

			switch decision.Action {
			case ActionRedirect:
				nav.Navigate(ctx, decision.Location)
			case ActionRenderShell:
				protected.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Watch re-evaluates the current location after every session transition.
// A session that becomes authenticated on the login page is sent to the
// home path.
func (g *Guard) Watch(source Source, locator Locator, nav Navigator) func() {
	return source.Subscribe(func(ctx context.Context, snap session.Snapshot) {
		location := locator.Location(ctx)
		authenticated := snap.IsAuthenticated()

		if authenticated && clean(location) == clean(g.loginPath) {
			nav.Navigate(ctx, g.homePath)
			return
		}

		if decision := g.Decide(authenticated, location); decision.Action == ActionRedirect {
			slogctx.Info(ctx, "Session is not authenticated, leaving protected location", "location", location)
			nav.Navigate(ctx, decision.Location)
		}
	})
}

func clean(location string) string {
	if location == "" {
		return "/"
	}
	return path.Clean("/" + location)
}
