package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	// Message is the "message" or "error" field of a JSON error body.
	Message string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "api status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("api %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("api %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (e *HTTPStatusError) UserMessage() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newHTTPStatusError(operation string, statusCode int, status string, body []byte) *HTTPStatusError {
	out := &HTTPStatusError{
		Operation:  operation,
		StatusCode: statusCode,
		Status:     status,
		Body:       strings.TrimSpace(string(body)),
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		out.Message = strings.TrimSpace(payload.Message)
		if out.Message == "" {
			out.Message = strings.TrimSpace(payload.Error)
		}
	}
	return out
}

func classifyAPIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{RecordFailure: isTemporaryHTTPStatus(statusErr.StatusCode)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{RecordFailure: true}
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return resilience.ErrorClassification{RecordFailure: false}
	}

	return resilience.ErrorClassification{RecordFailure: true}
}

// toDomainError maps a failed call onto the domain error kinds. unavailable
// is the kind used for 403/404 on document-scoped public endpoints.
func toDomainError(operation string, err error, unavailable error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case unavailable != nil && (code == http.StatusForbidden || code == http.StatusNotFound):
			return domain.WrapError(unavailable, operation, err)
		case code == http.StatusUnauthorized:
			return domain.WrapError(domain.ErrUnauthorized, operation, err)
		case code == http.StatusForbidden:
			return domain.WrapError(domain.ErrForbidden, operation, err)
		case code == http.StatusNotFound:
			return domain.WrapError(domain.ErrNotFound, operation, err)
		case isTemporaryHTTPStatus(code):
			return domain.WrapError(domain.ErrTemporary, operation, err)
		default:
			return domain.WrapError(domain.ErrRejected, operation, err)
		}
	}

	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return domain.WrapError(domain.ErrRejected, operation, err)
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}

func isTemporaryHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

type decodeError struct {
	operation string
	err       error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.operation, e.err)
}

func (e *decodeError) Unwrap() error { return e.err }
