package domain

import "time"

// ProfileRequest carries the caller's profile fields for user sync.
type ProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

// ContributorInput is one contributor row submitted with a board payload.
type ContributorInput struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
}

type CreateBoardRequest struct {
	Name         string             `json:"name"`
	Columns      []ListEntry        `json:"columns"`
	Contributors []ContributorInput `json:"contributors,omitempty"`
}

type UpdateBoardRequest struct {
	Name         string             `json:"name"`
	Columns      []ListEntry        `json:"columns"`
	Contributors []ContributorInput `json:"contributors"`
}

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Assignees   []Assignee  `json:"assignees,omitempty"`
	Subtasks    []ListEntry `json:"subtasks,omitempty"`
}

// SubtaskStatusChange is a keyed status edit, not a reconciliation entry.
type SubtaskStatusChange struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// CompletionChange toggles a task between Open and Completed. Its presence in
// a TaskStateChange is what makes the intent explicit: a reorder-only request
// simply omits it.
type CompletionChange struct {
	Done bool `json:"done"`
}

// TaskStateChange is the payload of the shared task-state endpoint. Each
// sub-command is optional and independently applied; nil means "not requested"
// as opposed to a zero value.
type TaskStateChange struct {
	Subtasks   []SubtaskStatusChange `json:"subtasks,omitempty"`
	Completion *CompletionChange     `json:"completion,omitempty"`
	Move       *MoveTarget           `json:"move,omitempty"`
}

// EditTaskRequest is the edit-form payload: scalar fields, wholesale assignee
// replacement, subtask reconciliation and an optional column change.
type EditTaskRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Deadline     *time.Time  `json:"deadline,omitempty"`
	Assignees    []Assignee  `json:"assignees,omitempty"`
	Subtasks     []ListEntry `json:"subtasks,omitempty"`
	DestColumnID string      `json:"destColumnId,omitempty"`
}
