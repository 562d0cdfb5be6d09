package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
)

func putProfile(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req domain.ProfileRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		user, err := svc.SyncProfile(c.Request().Context(), userID, req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

// searchContributor resolves a username or email to a contributor candidate
// for the board sharing form.
func searchContributor(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := callerID(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		term := strings.TrimSpace(c.QueryParam("q"))
		if term == "" {
			return c.String(http.StatusBadRequest, "missing query")
		}
		candidate, err := svc.SearchContributorCandidate(c.Request().Context(), term)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, candidate)
	}
}
