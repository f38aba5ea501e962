package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// NotFoundError is returned when no candidate endpoint answered for an institution.
type NotFoundError struct {
	Institution string
	Attempted   []string
	// Suggestion is the closest override table key, if any is close enough.
	Suggestion string
	Errs       []error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf(
		"no portal endpoint found for %s (attempted: %s)",
		e.Institution,
		strings.Join(e.Attempted, ", "),
	)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean %q?", e.Suggestion)
	}
	return msg
}

func (e *NotFoundError) Unwrap() []error {
	return e.Errs
}

const (
	ReasonInvalidCredentials = "invalid credentials"
	ReasonUnexpectedStatus   = "unexpected status"
	ReasonRedirectLoop       = "redirect loop"
)

// AuthError is returned when the portal did not complete the login handshake.
type AuthError struct {
	Reason string
	URL    string
	Status int
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("portal login failed: %s", e.Reason)
	}
	return fmt.Sprintf("portal login failed: %s (%d from %s)", e.Reason, e.Status, e.URL)
}

// FetchError is returned when neither the json endpoint nor any html page gave grades.
type FetchError struct {
	Attempted []string
	Errs      []error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch grades (attempted: %s)", strings.Join(e.Attempted, ", "))
}

func (e *FetchError) Unwrap() []error {
	return e.Errs
}

// IsTimeout reports whether err (or any error it wraps) is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
