package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store abstracts the document store consumed by the board service. Get
// methods return (nil, nil) when the document does not exist; SaveBoard is
// conditional on the board's ETag and fails with a Conflict error on a
// version mismatch.
type Store interface {
	GetBoard(ctx context.Context, id string) (*Board, error)
	GetBoards(ctx context.Context, ids []string) ([]Board, error)
	InsertBoard(ctx context.Context, b *Board) error
	SaveBoard(ctx context.Context, b *Board) error
	DeleteBoard(ctx context.Context, id string) error

	GetUser(ctx context.Context, id string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	ListNotifications(ctx context.Context, recipientID string) ([]Notification, error)
	DeleteNotifications(ctx context.Context, recipientID string, ids []string) error
}

// Notifier accepts notification records for asynchronous, best-effort
// delivery. Implementations must never block the mutation path.
type Notifier interface {
	Notify(n Notification)
}

// Service orchestrates board mutations: it gates every operation through the
// role lattice, transforms the in-memory document, persists it with an
// optimistic version check and emits notifications after the write.
type Service struct {
	store    Store
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(store Store, notifier Notifier, logger *log.Logger) *Service {
	if store == nil {
		panic("store is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if logger == nil {
		logger = log.New()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SyncProfile upserts the caller's user record from verified identity plus
// profile payload. Board and favorite references survive re-syncs.
func (s *Service) SyncProfile(ctx context.Context, callerID string, req ProfileRequest) (*User, error) {
	if callerID == "" {
		return nil, Unauthenticated()
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !validUsername(username) {
		return nil, InvalidInput("user", "username")
	}
	if !strings.Contains(req.Email, "@") {
		return nil, InvalidInput("user", "email")
	}
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u = &User{ID: callerID}
	}
	u.FirstName = strings.TrimSpace(req.FirstName)
	u.LastName = strings.TrimSpace(req.LastName)
	u.Username = username
	u.Email = strings.TrimSpace(req.Email)
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SearchContributorCandidate resolves an invite term to a user: exact email
// match for email-shaped terms, exact username match otherwise. The returned
// role is a default; the inviting caller picks the real one.
func (s *Service) SearchContributorCandidate(ctx context.Context, term string) (Contributor, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Contributor{}, InvalidInput("user", "term")
	}
	var (
		u   *User
		err error
	)
	if strings.Contains(term, "@") {
		u, err = s.store.FindUserByEmail(ctx, term)
	} else {
		u, err = s.store.FindUserByUsername(ctx, strings.ToLower(term))
	}
	if err != nil {
		return Contributor{}, err
	}
	if u == nil {
		return Contributor{}, NotFound("user", term)
	}
	return Contributor{UserID: u.ID, Name: u.DisplayName(), Role: RoleMember}, nil
}

// ListBoards returns every board registered on the caller, with the favorite
// flag resolved per caller. A caller without a user record has no boards.
func (s *Service) ListBoards(ctx context.Context, callerID string) ([]Board, error) {
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return []Board{}, nil
	}
	boards, err := s.store.GetBoards(ctx, u.Boards)
	if err != nil {
		return nil, err
	}
	for i := range boards {
		boards[i].IsFavorite = u.IsFavorite(boards[i].ID)
	}
	return boards, nil
}

// GetBoard returns a single board. The reference is tried as an identifier
// first; when nothing resolves it falls back to a case-insensitive name match
// across the caller's registered boards. Any member may read; outsiders are
// rejected the same way as insufficient writers.
func (s *Service) GetBoard(ctx context.Context, callerID, boardRef string) (*Board, error) {
	b, err := s.store.GetBoard(ctx, boardRef)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if b == nil && u != nil {
		boards, err := s.store.GetBoards(ctx, u.Boards)
		if err != nil {
			return nil, err
		}
		for i := range boards {
			if sameName(boards[i].Name, boardRef) {
				b = &boards[i]
				break
			}
		}
	}
	if b == nil {
		return nil, NotFound("board", boardRef)
	}
	if err := requireRole(b, callerID, ActionView); err != nil {
		return nil, err
	}
	if u != nil {
		b.IsFavorite = u.IsFavorite(b.ID)
	}
	return b, nil
}

// CreateBoard creates a board with the caller as Creator. The board name must
// be unique, case-insensitively, across every board the caller owns or joined.
func (s *Service) CreateBoard(ctx context.Context, callerID string, req CreateBoardRequest) (*Board, error) {
	caller, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, NotFound("user", callerID)
	}

	name := strings.TrimSpace(req.Name)
	if err := validBoardName(name); err != nil {
		return nil, err
	}
	existing, err := s.store.GetBoards(ctx, caller.Boards)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if sameName(b.Name, name) {
			return nil, Conflict("board", "name")
		}
	}

	columns, err := s.reconcileColumns(nil, req.Columns)
	if err != nil {
		return nil, err
	}
	board := &Board{
		ID:          s.newID(),
		Name:        name,
		CreatorID:   callerID,
		CreatorName: caller.DisplayName(),
		Columns:     columns,
	}
	contributors, batch, err := s.registerContributors(ctx, board, caller, req.Contributors, nil)
	if err != nil {
		return nil, err
	}
	board.Contributors = contributors

	if err := s.store.InsertBoard(ctx, board); err != nil {
		return nil, err
	}
	caller.AddBoard(board.ID)
	if err := s.store.SaveUser(ctx, caller); err != nil {
		return nil, err
	}
	for _, c := range contributors {
		if err := s.registerBoardRef(ctx, c.UserID, board.ID); err != nil {
			return nil, err
		}
	}
	s.send(batch)
	return board, nil
}

// UpdateBoard renames the board, reconciles its columns and replaces the
// contributor collection wholesale, registering and unregistering board
// references as the contributor set changes.
func (s *Service) UpdateBoard(ctx context.Context, callerID, boardID string, req UpdateBoardRequest) (*Board, error) {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(b, callerID, ActionManage); err != nil {
		return nil, err
	}
	caller, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := validBoardName(name); err != nil {
		return nil, err
	}
	b.Name = name

	b.Columns, err = s.reconcileColumns(b.Columns, req.Columns)
	if err != nil {
		return nil, err
	}

	previous := make(map[string]bool, len(b.Contributors))
	for _, c := range b.Contributors {
		previous[c.UserID] = true
	}
	contributors, batch, err := s.registerContributors(ctx, b, caller, req.Contributors, previous)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, c := range b.Contributors {
		if !containsContributor(contributors, c.UserID) {
			removed = append(removed, c.UserID)
		}
	}
	b.Contributors = contributors

	// The conditional save is the commit point: user-record reference changes
	// happen only once the board document accepted the new contributor set, so
	// a version conflict leaves every user record untouched.
	if err := s.store.SaveBoard(ctx, b); err != nil {
		return nil, err
	}
	for _, userID := range removed {
		if err := s.unregisterBoardRef(ctx, userID, b.ID); err != nil {
			return nil, err
		}
	}
	for _, c := range contributors {
		if !previous[c.UserID] {
			if err := s.registerBoardRef(ctx, c.UserID, b.ID); err != nil {
				return nil, err
			}
		}
	}
	s.send(batch)
	return b, nil
}

// ToggleFavorite flips the board's membership in the caller's favorites.
func (s *Service) ToggleFavorite(ctx context.Context, callerID, boardID string) (bool, error) {
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, NotFound("user", callerID)
	}
	favored := u.ToggleFavorite(boardID)
	if err := s.store.SaveUser(ctx, u); err != nil {
		return false, err
	}
	return favored, nil
}

// DeleteBoard removes the board, unregisters it from the creator and every
// contributor, and notifies the contributors who did not do the deleting.
func (s *Service) DeleteBoard(ctx context.Context, callerID, boardID string) error {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if err := requireRole(b, callerID, ActionManage); err != nil {
		return err
	}
	senderID, senderName, err := s.sender(ctx, callerID)
	if err != nil {
		return err
	}

	if err := s.unregisterBoardRef(ctx, b.CreatorID, b.ID); err != nil {
		return err
	}
	var batch []Notification
	for _, c := range b.Contributors {
		if err := s.unregisterBoardRef(ctx, c.UserID, b.ID); err != nil {
			return err
		}
		if c.UserID != callerID {
			batch = append(batch, s.boardDeleted(c.UserID, senderID, senderName, b.Name))
		}
	}
	if err := s.store.DeleteBoard(ctx, b.ID); err != nil {
		return err
	}
	s.send(batch)
	return nil
}

// CreateTask appends a new task to the named column and notifies assignees.
func (s *Service) CreateTask(ctx context.Context, callerID, boardID, columnID string, req TaskInput) (*Board, error) {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(b, callerID, ActionManage); err != nil {
		return nil, err
	}
	col := b.Column(columnID)
	if col == nil {
		return nil, NotFound("column", columnID)
	}

	title := strings.TrimSpace(req.Title)
	if err := validTaskTitle(title); err != nil {
		return nil, err
	}
	if err := validTaskDescription(req.Description); err != nil {
		return nil, err
	}
	subtasks, err := s.reconcileSubtasks(nil, req.Subtasks)
	if err != nil {
		return nil, err
	}
	task := Task{
		ID:          s.newID(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Created:     s.now().UTC(),
		Deadline:    req.Deadline,
		Assignees:   normalizeAssignees(req.Assignees),
		Subtasks:    subtasks,
	}
	col.Tasks = append(col.Tasks, task)

	if err := s.store.SaveBoard(ctx, b); err != nil {
		return nil, err
	}
	senderID, senderName, err := s.sender(ctx, callerID)
	if err != nil {
		return nil, err
	}
	var batch []Notification
	for _, a := range task.Assignees {
		batch = append(batch, s.taskAssigned(a.UserID, senderID, senderName, task.Title))
	}
	s.send(batch)
	return b, nil
}

// UpdateTaskState serves the shared task-state endpoint: keyed subtask status
// edits, explicit completion toggling and drag moves. Any member except a
// Viewer may call it. Completion notifications fire only when the completion
// sub-command is present and transitions the task to done.
func (s *Service) UpdateTaskState(ctx context.Context, callerID, boardID, columnID, taskID string, req TaskStateChange) (*Board, error) {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(b, callerID, ActionEditTasks); err != nil {
		return nil, err
	}
	col := b.Column(columnID)
	if col == nil {
		return nil, NotFound("column", columnID)
	}
	task, idx := col.Task(taskID)
	if task == nil {
		return nil, NotFound("task", taskID)
	}
	caller, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	for _, ch := range req.Subtasks {
		st := findSubtask(task, ch.ID)
		if st == nil {
			return nil, NotFound("subtask", ch.ID)
		}
		switch {
		case ch.Done && !st.Done:
			st.Done = true
			st.CompletedBy = completedBy(callerID, caller)
		case !ch.Done && st.Done:
			st.Done = false
			st.CompletedBy = nil
		}
	}

	var batch []Notification
	if req.Completion != nil {
		switch {
		case req.Completion.Done && !task.Done:
			task.Done = true
			completed := s.now().UTC()
			task.Completed = &completed
			task.CompletedBy = completedBy(callerID, caller)
			senderID, senderName := callerID, ""
			if caller != nil {
				senderName = caller.DisplayName()
			}
			for _, a := range task.Assignees {
				batch = append(batch, s.taskCompleted(a.UserID, senderID, senderName, task.Title))
			}
			batch = append(batch, s.taskCompleted(b.CreatorID, senderID, senderName, task.Title))
		case !req.Completion.Done && task.Done:
			task.Done = false
			task.Completed = nil
			task.CompletedBy = nil
		}
	}

	if req.Move != nil {
		if err := b.MoveTask(columnID, taskID, idx, *req.Move); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveBoard(ctx, b); err != nil {
		return nil, err
	}
	s.send(batch)
	return b, nil
}

// EditTask applies the edit form: scalar fields, wholesale assignee
// replacement with notifications for the newly added ones, subtask
// reconciliation and an optional order-insensitive column change.
func (s *Service) EditTask(ctx context.Context, callerID, boardID, columnID, taskID string, req EditTaskRequest) (*Board, error) {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(b, callerID, ActionManage); err != nil {
		return nil, err
	}
	col := b.Column(columnID)
	if col == nil {
		return nil, NotFound("column", columnID)
	}
	task, idx := col.Task(taskID)
	if task == nil {
		return nil, NotFound("task", taskID)
	}

	title := strings.TrimSpace(req.Title)
	if err := validTaskTitle(title); err != nil {
		return nil, err
	}
	if err := validTaskDescription(req.Description); err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(task.Assignees))
	for _, a := range task.Assignees {
		existing[a.UserID] = true
	}
	assignees := normalizeAssignees(req.Assignees)
	var added []Assignee
	for _, a := range assignees {
		if !existing[a.UserID] {
			added = append(added, a)
		}
	}

	task.Title = title
	task.Description = strings.TrimSpace(req.Description)
	task.Deadline = req.Deadline
	task.Assignees = assignees
	task.Subtasks, err = s.reconcileSubtasks(task.Subtasks, req.Subtasks)
	if err != nil {
		return nil, err
	}

	if req.DestColumnID != "" && req.DestColumnID != columnID {
		if err := b.MoveTask(columnID, taskID, idx, MoveTarget{ColumnID: req.DestColumnID}); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveBoard(ctx, b); err != nil {
		return nil, err
	}
	senderID, senderName, err := s.sender(ctx, callerID)
	if err != nil {
		return nil, err
	}
	var batch []Notification
	for _, a := range added {
		batch = append(batch, s.taskAssigned(a.UserID, senderID, senderName, title))
	}
	s.send(batch)
	return b, nil
}

// DeleteTask removes the task by identifier and notifies its assignees.
func (s *Service) DeleteTask(ctx context.Context, callerID, boardID, columnID, taskID string) (*Board, error) {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(b, callerID, ActionManage); err != nil {
		return nil, err
	}
	col := b.Column(columnID)
	if col == nil {
		return nil, NotFound("column", columnID)
	}
	task, _ := col.Task(taskID)
	if task == nil {
		return nil, NotFound("task", taskID)
	}
	senderID, senderName, err := s.sender(ctx, callerID)
	if err != nil {
		return nil, err
	}
	var batch []Notification
	for _, a := range task.Assignees {
		batch = append(batch, s.taskDeleted(a.UserID, senderID, senderName, task.Title))
	}
	col.removeTask(taskID)

	if err := s.store.SaveBoard(ctx, b); err != nil {
		return nil, err
	}
	s.send(batch)
	return b, nil
}

// Notifications lists the caller's pending notifications.
func (s *Service) Notifications(ctx context.Context, callerID string) ([]Notification, error) {
	return s.store.ListNotifications(ctx, callerID)
}

// AcknowledgeNotifications removes the named notifications from the caller's
// inbox. Acknowledging is the only deletion path for notifications.
func (s *Service) AcknowledgeNotifications(ctx context.Context, callerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.store.DeleteNotifications(ctx, callerID, ids)
}

func (s *Service) loadBoard(ctx context.Context, boardID string) (*Board, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, NotFound("board", boardID)
	}
	return b, nil
}

func (s *Service) reconcileColumns(stored []Column, entries []ListEntry) ([]Column, error) {
	for _, e := range entries {
		if e.Text != "" {
			if err := validColumnName(strings.TrimSpace(e.Text)); err != nil {
				return nil, err
			}
		}
	}
	return ReconcileList(stored, entries, func(text string) Column {
		return Column{ID: s.newID(), Name: strings.TrimSpace(text), Tasks: []Task{}}
	}), nil
}

func (s *Service) reconcileSubtasks(stored []Subtask, entries []ListEntry) ([]Subtask, error) {
	for _, e := range entries {
		if e.Text != "" {
			if err := validSubtaskTitle(strings.TrimSpace(e.Text)); err != nil {
				return nil, err
			}
		}
	}
	return ReconcileList(stored, entries, func(text string) Subtask {
		return Subtask{ID: s.newID(), Title: strings.TrimSpace(text)}
	}), nil
}

// registerContributors normalizes contributor input (creator filtered out,
// roles normalized, duplicates dropped) and builds add-notifications for the
// entries not present in the previous set.
func (s *Service) registerContributors(ctx context.Context, b *Board, caller *User, inputs []ContributorInput, previous map[string]bool) ([]Contributor, []Notification, error) {
	senderID, senderName := "", ""
	if caller != nil {
		senderID, senderName = caller.ID, caller.DisplayName()
	}
	seen := make(map[string]bool, len(inputs))
	contributors := make([]Contributor, 0, len(inputs))
	var batch []Notification
	for _, in := range inputs {
		if in.UserID == "" || in.UserID == b.CreatorID || seen[in.UserID] {
			continue
		}
		seen[in.UserID] = true
		c := Contributor{UserID: in.UserID, Name: strings.TrimSpace(in.Name), Role: NormalizeRole(in.Role)}
		if c.Name == "" {
			u, err := s.store.GetUser(ctx, in.UserID)
			if err != nil {
				return nil, nil, err
			}
			if u != nil {
				c.Name = u.DisplayName()
			}
		}
		contributors = append(contributors, c)
		if !previous[c.UserID] {
			batch = append(batch, s.contributorAdded(c.UserID, senderID, senderName, b.Name, c.Role))
		}
	}
	return contributors, batch, nil
}

func (s *Service) registerBoardRef(ctx context.Context, userID, boardID string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil || u == nil {
		return err
	}
	u.AddBoard(boardID)
	return s.store.SaveUser(ctx, u)
}

func (s *Service) unregisterBoardRef(ctx context.Context, userID, boardID string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil || u == nil {
		return err
	}
	u.RemoveBoard(boardID)
	return s.store.SaveUser(ctx, u)
}

func (s *Service) sender(ctx context.Context, callerID string) (string, string, error) {
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return "", "", err
	}
	if u == nil {
		return callerID, "", nil
	}
	return u.ID, u.DisplayName(), nil
}

func findSubtask(t *Task, id string) *Subtask {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return &t.Subtasks[i]
		}
	}
	return nil
}

func completedBy(callerID string, caller *User) *CompletedBy {
	cb := &CompletedBy{UserID: callerID}
	if caller != nil {
		cb.Initials = caller.Initials()
	}
	return cb
}

func normalizeAssignees(in []Assignee) []Assignee {
	seen := make(map[string]bool, len(in))
	out := make([]Assignee, 0, len(in))
	for _, a := range in {
		if a.UserID == "" || seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		out = append(out, a)
	}
	return out
}

func containsContributor(list []Contributor, userID string) bool {
	for _, c := range list {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func validUsername(username string) bool {
	if len(username) < 7 || len(username) > 15 {
		return false
	}
	for _, r := range username {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
