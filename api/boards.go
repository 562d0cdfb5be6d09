package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

type boardsResponse struct {
	Boards []domain.Board `json:"boards"`
}

type favoriteResponse struct {
	BoardID    string `json:"boardId"`
	IsFavorite bool   `json:"isFavorite"`
}

func getBoards(svc Service, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := callerID(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		boards, fetchErr := svc.ListBoards(ctx, userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("service")
			err = writeDomainError(c, fetchErr)
			return err
		}
		metrics.SetBoardsReturned(len(boards))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boardsResponse{Boards: boards})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getBoard(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		board, err := svc.GetBoard(c.Request().Context(), userID, c.Param("boardId"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func postBoard(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req domain.CreateBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		board, err := svc.CreateBoard(c.Request().Context(), userID, req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, board)
	}
}

func putBoard(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req domain.UpdateBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		board, err := svc.UpdateBoard(c.Request().Context(), userID, c.Param("boardId"), req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func deleteBoard(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := svc.DeleteBoard(c.Request().Context(), userID, c.Param("boardId")); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func putFavorite(svc Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := callerID(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		boardID := c.Param("boardId")
		fav, err := svc.ToggleFavorite(c.Request().Context(), userID, boardID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, favoriteResponse{BoardID: boardID, IsFavorite: fav})
	}
}
