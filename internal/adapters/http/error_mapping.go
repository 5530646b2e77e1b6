package httpadapter

import (
	"net/http"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

// mapErrorToHTTPStatus picks the readiness status for a failed check. A
// dependency that refuses our credentials or config will not recover by
// itself, everything else is reported as temporarily unavailable.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsKind(err, domain.ErrUnauthorized), domain.IsKind(err, domain.ErrForbidden):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}
