package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
)

func postTask(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req domain.TaskInput
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		board, err := svc.CreateTask(c.Request().Context(), userID, c.Param("boardId"), c.Param("columnId"), req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, board)
	}
}

// patchTaskState serves the shared task-state endpoint: subtask status flips,
// completion toggles and moves, alone or combined in one request.
func patchTaskState(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req domain.TaskStateChange
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		board, err := svc.UpdateTaskState(c.Request().Context(), userID, c.Param("boardId"), c.Param("columnId"), c.Param("taskId"), req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func putTask(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req domain.EditTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		board, err := svc.EditTask(c.Request().Context(), userID, c.Param("boardId"), c.Param("columnId"), c.Param("taskId"), req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func deleteTask(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		board, err := svc.DeleteTask(c.Request().Context(), userID, c.Param("boardId"), c.Param("columnId"), c.Param("taskId"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}
