package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
)

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

func getNotifications(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		notifications, err := svc.Notifications(c.Request().Context(), userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, notificationsResponse{Notifications: notifications})
	}
}

func postNotificationAck(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req ackRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := svc.AcknowledgeNotifications(c.Request().Context(), userID, req.IDs); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
