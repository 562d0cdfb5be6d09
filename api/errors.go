package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
)

// statusForKind maps domain error kinds onto HTTP status codes. Position
// errors get their own status so clients can distinguish a stale drag from a
// malformed payload.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindInvalidPosition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		return c.String(status, "internal error")
	}
	return c.String(status, err.Error())
}
