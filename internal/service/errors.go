package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"portalproxy-backend/internal/scrapers/portal"

	"connectrpc.com/connect"
)

type Kind string

const (
	KindBadRequest          Kind = "BadRequest"
	KindUnauthorized        Kind = "Unauthorized"
	KindUpstreamAuthFailed  Kind = "UpstreamAuthFailed"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
)

var ErrUnknownAction = errors.New("unknown action")

// Error is what a failed call looks like to the host application.
type Error struct {
	Kind      Kind
	Message   string
	Attempted []string
	// Timeout marks an UpstreamUnavailable error that was caused by a deadline.
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstreamUnavailable:
		if e.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}

func (e *Error) ConnectCode() connect.Code {
	switch e.Kind {
	case KindBadRequest:
		return connect.CodeInvalidArgument
	case KindUnauthorized:
		return connect.CodeUnauthenticated
	case KindUpstreamAuthFailed:
		return connect.CodePermissionDenied
	}
	if e.Timeout {
		return connect.CodeDeadlineExceeded
	}
	return connect.CodeUnavailable
}

func badRequest(err error) *Error {
	return &Error{Kind: KindBadRequest, Message: err.Error(), Err: err}
}

func unauthorized(err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: "host application authentication failed", Err: err}
}

// classify maps an error of the portal pipeline onto its Kind.
func classify(err error) *Error {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	if errors.Is(err, portal.ErrInvalidDescriptor) ||
		errors.Is(err, portal.ErrMissingCredentials) ||
		errors.Is(err, ErrUnknownAction) {
		return badRequest(err)
	}

	var authErr *portal.AuthError
	if errors.As(err, &authErr) {
		return &Error{Kind: KindUpstreamAuthFailed, Message: authErr.Reason, Err: err}
	}

	var notFound *portal.NotFoundError
	if errors.As(err, &notFound) {
		message := "no portal endpoint found for institution"
		if notFound.Suggestion != "" {
			message += fmt.Sprintf(", did you mean %q?", notFound.Suggestion)
		}
		return &Error{
			Kind:      KindUpstreamUnavailable,
			Message:   message,
			Attempted: notFound.Attempted,
			Timeout:   portal.IsTimeout(err),
			Err:       err,
		}
	}

	var fetchErr *portal.FetchError
	if errors.As(err, &fetchErr) {
		return &Error{
			Kind:      KindUpstreamUnavailable,
			Message:   "no grade page could be fetched",
			Attempted: fetchErr.Attempted,
			Timeout:   portal.IsTimeout(err),
			Err:       err,
		}
	}

	message := "portal request failed"
	if errors.Is(err, context.Canceled) {
		message = "request cancelled"
	}
	return &Error{
		Kind:    KindUpstreamUnavailable,
		Message: message,
		Timeout: portal.IsTimeout(err),
		Err:     err,
	}
}
