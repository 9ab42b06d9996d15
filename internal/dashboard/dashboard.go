// Package dashboard serves the local dashboard shell: the public login page
// and the protected pages behind the route guard.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/csrf"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
	"github.com/openkcm/session-client/internal/guard"
	"github.com/openkcm/session-client/internal/middleware/fingerprint"
	"github.com/openkcm/session-client/internal/middleware/responsewriter"
	"github.com/openkcm/session-client/internal/notify"
	"github.com/openkcm/session-client/internal/serviceerr"
	"github.com/openkcm/session-client/internal/session"
)

const (
	logoutPath    = "/logout"
	csrfFormField = "csrf_token"
)

//go:embed templates/*.html
var templateFS embed.FS

// Session is the part of the session machine the dashboard drives.
type Session interface {
	Login(ctx context.Context, creds session.Credentials) error
	Logout(ctx context.Context)
	IsAuthenticated(ctx context.Context) bool
	Snapshot() session.Snapshot
	ClearError(ctx context.Context)
	Subscribe(l session.Listener) func()
}

type page struct {
	Title string
	Body  string
}

var pages = map[string]page{
	"/pages/empty": {
		Title: "Empty Page",
		Body:  "Use this page to start from scratch and place your custom content.",
	},
}

type Server struct {
	cfg       *config.Config
	session   Session
	guard     *guard.Guard
	hub       *notify.Hub
	toasts    *toasts
	templates *template.Template
	meters    *meters

	csrfSecret []byte
	closers    []func()
}

func NewServer(ctx context.Context, cfg *config.Config, sess Session, g *guard.Guard, hub *notify.Hub) (*Server, error) {
	csrfSecret, err := commoncfg.LoadValueFromSourceRef(cfg.Dashboard.CSRFSecret)
	if err != nil {
		return nil, fmt.Errorf("loading csrf secret from source ref: %w", err)
	}
	if len(csrfSecret) < 32 {
		return nil, errors.New("CSRF secret must be at least 32 bytes")
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	m, err := initMeters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		session:    sess,
		guard:      g,
		hub:        hub,
		toasts:     newToasts(),
		templates:  templates,
		meters:     m,
		csrfSecret: csrfSecret,
	}

	s.closers = append(s.closers,
		hub.Subscribe(s.toasts.receive),
		g.Watch(sess, responsewriter.PathLocator{}, responsewriter.Redirector{Status: http.StatusSeeOther}),
	)

	return s, nil
}

// Close detaches the server from the hub and the session.
func (s *Server) Close() {
	for _, fn := range s.closers {
		fn()
	}
	s.closers = nil
}

func (s *Server) Handler() http.Handler {
	traced := newTraceMiddleware(s.cfg, s.meters)
	loginPath := s.guard.LoginPath()

	mux := http.NewServeMux()
	mux.Handle("GET "+loginPath, traced(http.HandlerFunc(s.loginPage), "login-page"))
	mux.Handle("POST "+loginPath, traced(http.HandlerFunc(s.login), "login"))
	mux.Handle("POST "+logoutPath, traced(http.HandlerFunc(s.logout), "logout"))
	mux.Handle("GET /", traced(http.HandlerFunc(s.page), "page"))

	handler := s.guard.Middleware(s.session, responsewriter.Redirector{}, s.shell)(mux)
	handler = responsewriter.ResponseWriterMiddleware(handler)
	handler = fingerprint.FingerprintCtxMiddleware(handler)

	return handler
}

type userKey struct{}

// shell attaches the signed in user to protected requests.
func (s *Server) shell(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := s.session.Snapshot()
		ctx := r.Context()
		if snap.User != nil {
			ctx = context.WithValue(ctx, userKey{}, *snap.User)
			ctx = slogctx.With(ctx, "userID", snap.User.ID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginView struct {
	Action          string
	CSRFToken       string
	EmailOrUserName string
	Err             *session.Error
	Toasts          []notify.Message
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view := loginView{
		Action:    s.guard.LoginPath(),
		CSRFToken: s.formToken(w, r),
		Err:       s.session.Snapshot().Err,
		Toasts:    s.toasts.drain(),
	}
	s.session.ClearError(ctx)

	s.render(ctx, w, http.StatusOK, "login", view)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.validForm(r) {
		s.hub.Error(ctx, "Hata", "Form süresi doldu, lütfen tekrar deneyin.")
		http.Redirect(w, r, s.guard.LoginPath(), http.StatusSeeOther)
		return
	}

	creds := session.Credentials{
		EmailOrUserName: r.PostFormValue("emailOrUserName"),
		Password:        r.PostFormValue("password"),
	}

	err := s.session.Login(ctx, creds)
	switch {
	case err == nil:
		s.hub.Success(ctx, "Başarılı", "Giriş yapıldı")
		// the guard watch normally answered already
		s.redirectOnce(w, r, s.guard.HomePath())
		return
	case errors.Is(err, serviceerr.ErrLoginInProgress), errors.Is(err, serviceerr.ErrSuperseded):
		s.hub.Warn(ctx, "Uyarı", err.Error())
	}

	view := loginView{
		Action:          s.guard.LoginPath(),
		CSRFToken:       s.formToken(w, r),
		EmailOrUserName: creds.EmailOrUserName,
		Err:             s.session.Snapshot().Err,
		Toasts:          s.toasts.drain(),
	}
	s.session.ClearError(ctx)

	s.render(ctx, w, http.StatusOK, "login", view)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.validForm(r) {
		s.hub.Error(ctx, "Hata", "Form süresi doldu, lütfen tekrar deneyin.")
		http.Redirect(w, r, s.guard.HomePath(), http.StatusSeeOther)
		return
	}

	s.session.Logout(ctx)
	s.redirectOnce(w, r, s.guard.LoginPath())
}

type layoutView struct {
	Title     string
	Body      string
	User      *session.User
	CSRFToken string
	Toasts    []notify.Message
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Path == "/" {
		http.Redirect(w, r, s.guard.HomePath(), http.StatusFound)
		return
	}

	status := http.StatusOK
	p, ok := pages[r.URL.Path]
	if !ok {
		status = http.StatusNotFound
		p = page{Title: "Not Found", Body: "İstenilen sayfa bulunamadı"}
	}

	view := layoutView{
		Title:     p.Title,
		Body:      p.Body,
		CSRFToken: s.formToken(w, r),
		Toasts:    s.toasts.drain(),
	}
	if user, ok := ctx.Value(userKey{}).(session.User); ok {
		view.User = &user
	}

	s.render(ctx, w, status, "layout", view)
}

func (s *Server) render(ctx context.Context, w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slogctx.Error(ctx, "Failed to render a template", "template", name, "error", err)
	}
}

func (s *Server) redirectOnce(w http.ResponseWriter, r *http.Request, location string) {
	if rw, ok := w.(*responsewriter.Writer); ok && rw.Written() {
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// formToken issues a CSRF token bound to the form cookie and the browser
// fingerprint, setting the cookie when the browser has none.
func (s *Server) formToken(w http.ResponseWriter, r *http.Request) string {
	formID := ""
	if c, err := r.Cookie(s.cfg.Dashboard.FormCookie.Name); err == nil {
		formID = c.Value
	}
	if formID == "" {
		formID = uuid.NewString()
	}
	http.SetCookie(w, s.cfg.Dashboard.FormCookie.ToCookie(formID))

	return csrf.NewToken(s.formBinding(r, formID), s.csrfSecret)
}

func (s *Server) validForm(r *http.Request) bool {
	c, err := r.Cookie(s.cfg.Dashboard.FormCookie.Name)
	if err != nil || c.Value == "" {
		slogctx.Warn(r.Context(), "Form submitted without a form cookie")
		return false
	}

	if !csrf.Validate(r.PostFormValue(csrfFormField), s.formBinding(r, c.Value), s.csrfSecret) {
		slogctx.Warn(r.Context(), "Form submitted with an invalid CSRF token")
		return false
	}

	return true
}

func (s *Server) formBinding(r *http.Request, formID string) string {
	fp, err := fingerprint.ExtractFingerprint(r.Context())
	if err != nil {
		return formID
	}
	return formID + "|" + fp
}
