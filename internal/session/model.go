package session

import (
	"errors"

	"github.com/openkcm/session-client/internal/failure"
	"github.com/openkcm/session-client/internal/token"
)

type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusPending       Status = "pending"
	StatusAuthenticated Status = "authenticated"
)

// User is derived from the token claims and never stored on its own.
type User struct {
	ID       string
	Name     string
	Email    string
	UserName string
}

func userFromClaims(claims token.Claims) *User {
	return &User{
		ID:       claims.ID,
		Name:     claims.Name,
		Email:    claims.Email,
		UserName: claims.UserName,
	}
}

// Error describes the last failed transition.
type Error struct {
	Message       string
	Status        int
	ErrorMessages []string
}

func (e *Error) Error() string {
	return e.Message
}

func errorFrom(err error) *Error {
	var f *failure.RequestFailure
	if errors.As(err, &f) {
		message := f.Message
		if message == "" && f.Err != nil {
			message = f.Err.Error()
		}

		details := f.ErrorMessages
		if len(details) == 0 {
			details = []string{message}
		}

		return &Error{
			Message:       message,
			Status:        f.Status,
			ErrorMessages: details,
		}
	}

	return &Error{
		Message:       err.Error(),
		ErrorMessages: []string{err.Error()},
	}
}

type Snapshot struct {
	Status Status
	Token  string
	User   *User
	Err    *Error
}

// IsAuthenticated reports the cached view. Expiry is only checked by
// Machine.IsAuthenticated.
func (s Snapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != "" && s.User != nil
}

type Credentials struct {
	EmailOrUserName string `json:"emailOrUserName"`
	Password        string `json:"password"`
}

type loginEnvelope struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}
