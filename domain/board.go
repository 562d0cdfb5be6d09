package domain

import (
	"strings"
	"time"
)

const (
	maxBoardNameLen   = 20
	maxColumnNameLen  = 20
	maxTaskTitleLen   = 50
	maxTaskDescLen    = 200
	maxSubtaskTextLen = 50
)

// Board is the top-level collaborative workspace. It exclusively owns its
// columns, which own tasks, which own subtasks; users are referenced, never
// owned. ETag is the storage version used for optimistic saves and is never
// serialized to clients.
type Board struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CreatorID    string        `json:"creatorId"`
	CreatorName  string        `json:"creatorName,omitempty"`
	Contributors []Contributor `json:"contributors"`
	Columns      []Column      `json:"columns"`
	IsFavorite   bool          `json:"isFavorite,omitempty"`

	ETag string `json:"-"`
}

// Contributor is a non-creator user holding a role on a board. Name is a
// display snapshot taken when the contributor was added.
type Contributor struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
}

type Column struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Created     time.Time    `json:"created"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	Done        bool         `json:"done"`
	Completed   *time.Time   `json:"completed,omitempty"`
	CompletedBy *CompletedBy `json:"completedBy,omitempty"`
	Assignees   []Assignee   `json:"assignees,omitempty"`
	Subtasks    []Subtask    `json:"subtasks,omitempty"`
}

// Assignee references a user assigned to a task, with a display snapshot.
type Assignee struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

type Subtask struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Done        bool         `json:"done"`
	CompletedBy *CompletedBy `json:"completedBy,omitempty"`
}

// CompletedBy records who ticked a subtask or acknowledged a task completion.
type CompletedBy struct {
	UserID   string `json:"userId"`
	Initials string `json:"initials,omitempty"`
}

// Column returns a pointer into b.Columns for the column with the given id.
func (b *Board) Column(id string) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return &b.Columns[i]
		}
	}
	return nil
}

// Task returns the task with the given id and its index within the column.
func (c *Column) Task(id string) (*Task, int) {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return &c.Tasks[i], i
		}
	}
	return nil, -1
}

func (c Column) ListID() string { return c.ID }

func (c Column) Renamed(text string) Column {
	c.Name = text
	return c
}

func (s Subtask) ListID() string { return s.ID }

func (s Subtask) Renamed(text string) Subtask {
	s.Title = text
	return s
}

func validBoardName(name string) error {
	if name == "" {
		return InvalidInput("board", "name")
	}
	if len(name) > maxBoardNameLen {
		return InvalidInput("board", "name")
	}
	return nil
}

func validColumnName(name string) error {
	if name == "" || len(name) > maxColumnNameLen {
		return InvalidInput("column", "name")
	}
	return nil
}

func validTaskTitle(title string) error {
	if title == "" || len(title) > maxTaskTitleLen {
		return InvalidInput("task", "title")
	}
	return nil
}

func validTaskDescription(desc string) error {
	if len(desc) > maxTaskDescLen {
		return InvalidInput("task", "description")
	}
	return nil
}

func validSubtaskTitle(title string) error {
	if title == "" || len(title) > maxSubtaskTextLen {
		return InvalidInput("subtask", "title")
	}
	return nil
}

// sameName compares board names the way the uniqueness invariant requires.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
