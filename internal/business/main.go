package business

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
	"github.com/openkcm/session-client/internal/dashboard"
	"github.com/openkcm/session-client/internal/notify"
	"github.com/openkcm/session-client/internal/session"
)

var (
	ErrNoPassword  = errors.New("no password given on input")
	ErrInvalidBody = errors.New("request body is not valid JSON")
)

// LoginMain signs in with the password read from the first line of in.
func LoginMain(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, user string) error {
	rt, closeFn, err := initRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	defer rt.Hub.Subscribe(printer(out))()
	defer rt.Guard.Watch(rt.Machine, staticLocator(rt.Guard.LoginPath()), hintNavigator{out: out})()

	password, err := readLine(in)
	if err != nil {
		return err
	}

	err = rt.Machine.Login(ctx, session.Credentials{
		EmailOrUserName: user,
		Password:        password,
	})
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	snap := rt.Machine.Snapshot()
	_, _ = fmt.Fprintf(out, "Logged in as %s\n", displayName(snap.User))

	return nil
}

func LogoutMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	rt, closeFn, err := initRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rt.Machine.Logout(ctx)
	_, _ = fmt.Fprintln(out, "Logged out")

	return nil
}

// StatusMain prints the current session as seen by a live check.
func StatusMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	rt, closeFn, err := initRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if !rt.Machine.IsAuthenticated(ctx) {
		_, _ = fmt.Fprintf(out, "status: %s\n", session.StatusAnonymous)
		return nil
	}

	snap := rt.Machine.Snapshot()
	_, _ = fmt.Fprintf(out, "status: %s\nuser: %s\n", snap.Status, displayName(snap.User))

	claims, err := rt.Codec.Decode(snap.Token)
	if err == nil {
		_, _ = fmt.Fprintf(out, "expires: %s\n", claims.ExpiresAt().UTC().Format(time.RFC3339))
	}

	return nil
}

// CallMain sends one authenticated request and prints the response body.
func CallMain(ctx context.Context, cfg *config.Config, out io.Writer, method, path, body string) error {
	rt, closeFn, err := initRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	defer rt.Hub.Subscribe(printer(out))()

	var payload any
	if body != "" {
		if !json.Valid([]byte(body)) {
			return ErrInvalidBody
		}
		payload = json.RawMessage(body)
	}

	resp, err := rt.Dispatcher.Do(ctx, strings.ToUpper(method), path, payload, nil)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}

	_, _ = fmt.Fprintf(out, "%d %s\n", resp.Status, resp.StatusText)
	if len(resp.Body) > 0 {
		_, _ = fmt.Fprintln(out, string(resp.Body))
	}

	return nil
}

// ServeMain hosts the dashboard until ctx is done.
func ServeMain(ctx context.Context, cfg *config.Config) error {
	rt, closeFn, err := initRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	srv, err := dashboard.NewServer(ctx, cfg, rt.Machine, rt.Guard, rt.Hub)
	if err != nil {
		return fmt.Errorf("creating the dashboard: %w", err)
	}
	defer srv.Close()

	slogctx.Info(ctx, "Starting the dashboard", "address", cfg.HTTP.Address)

	return srv.Start(ctx)
}

func readLine(in io.Reader) (string, error) {
	if in == nil {
		return "", ErrNoPassword
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return "", ErrNoPassword
	}

	line := strings.TrimRight(scanner.Text(), "\r")
	if line == "" {
		return "", ErrNoPassword
	}

	return line, nil
}

func displayName(u *session.User) string {
	switch {
	case u == nil:
		return "-"
	case u.Name != "":
		return u.Name
	case u.UserName != "":
		return u.UserName
	default:
		return u.Email
	}
}

func printer(out io.Writer) notify.Receiver {
	return func(_ context.Context, msg notify.Message) {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", msg.Severity, msg.Summary, msg.Detail)
	}
}

type staticLocator string

func (l staticLocator) Location(context.Context) string { return string(l) }

type hintNavigator struct {
	out io.Writer
}

func (n hintNavigator) Navigate(_ context.Context, location string) {
	_, _ = fmt.Fprintf(n.out, "Continue at %s\n", location)
}
