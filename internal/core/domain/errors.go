package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrDocumentUnavailable = errors.New("document unavailable")
	ErrTemporary           = errors.New("temporary failure")
	ErrRejected            = errors.New("request rejected")
	ErrRequestInFlight     = errors.New("request already in flight")
	ErrContactSales        = errors.New("contact sales")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// MessageCarrier is implemented by errors that carry a message meant for the
// end user, usually the "message" field of a backend error body.
type MessageCarrier interface {
	UserMessage() string
}

// UserMessage returns the first non-empty user-facing message found in the
// error chain, or fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var carrier MessageCarrier
	if errors.As(err, &carrier) {
		if msg := strings.TrimSpace(carrier.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}
