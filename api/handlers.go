package api

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Request bodies are bounded; the largest legitimate payload is a full board
// update with fifty tasks of maximal text.
const maxBodySize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Service, auth Authenticator, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.PUT("/api/users/me", putProfile(svc, auth))
	e.GET("/api/users/search", searchContributor(svc, auth))

	e.GET("/api/boards", getBoards(svc, auth, logger))
	e.POST("/api/boards", postBoard(svc, auth))
	e.GET("/api/boards/:boardId", getBoard(svc, auth))
	e.PUT("/api/boards/:boardId", putBoard(svc, auth))
	e.DELETE("/api/boards/:boardId", deleteBoard(svc, auth))
	e.PUT("/api/boards/:boardId/favorite", putFavorite(svc, auth))

	e.POST("/api/boards/:boardId/columns/:columnId/tasks", postTask(svc, auth))
	e.PATCH("/api/boards/:boardId/columns/:columnId/tasks/:taskId", patchTaskState(svc, auth))
	e.PUT("/api/boards/:boardId/columns/:columnId/tasks/:taskId", putTask(svc, auth))
	e.DELETE("/api/boards/:boardId/columns/:columnId/tasks/:taskId", deleteTask(svc, auth))

	e.GET("/api/notifications", getNotifications(svc, auth))
	e.POST("/api/notifications/ack", postNotificationAck(svc, auth))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// callerID authenticates the request and returns the subject identifier.
func callerID(c echo.Context, auth Authenticator) (string, error) {
	return auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields and
// oversized payloads.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
