package api

import (
	"context"

	"kanban-api/domain"
)

// Service abstracts the board domain for handlers.
type Service interface {
	SyncProfile(ctx context.Context, callerID string, req domain.ProfileRequest) (*domain.User, error)
	SearchContributorCandidate(ctx context.Context, term string) (domain.Contributor, error)

	ListBoards(ctx context.Context, callerID string) ([]domain.Board, error)
	GetBoard(ctx context.Context, callerID, boardID string) (*domain.Board, error)
	CreateBoard(ctx context.Context, callerID string, req domain.CreateBoardRequest) (*domain.Board, error)
	UpdateBoard(ctx context.Context, callerID, boardID string, req domain.UpdateBoardRequest) (*domain.Board, error)
	ToggleFavorite(ctx context.Context, callerID, boardID string) (bool, error)
	DeleteBoard(ctx context.Context, callerID, boardID string) error

	CreateTask(ctx context.Context, callerID, boardID, columnID string, req domain.TaskInput) (*domain.Board, error)
	UpdateTaskState(ctx context.Context, callerID, boardID, columnID, taskID string, req domain.TaskStateChange) (*domain.Board, error)
	EditTask(ctx context.Context, callerID, boardID, columnID, taskID string, req domain.EditTaskRequest) (*domain.Board, error)
	DeleteTask(ctx context.Context, callerID, boardID, columnID, taskID string) (*domain.Board, error)

	Notifications(ctx context.Context, callerID string) ([]domain.Notification, error)
	AcknowledgeNotifications(ctx context.Context, callerID string, ids []string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
