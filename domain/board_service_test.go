package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	boards        map[string]*Board
	users         map[string]*User
	notifications map[string][]Notification

	saveBoardErr error
	saveCount    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		boards:        make(map[string]*Board),
		users:         make(map[string]*User),
		notifications: make(map[string][]Notification),
	}
}

func cloneBoard(b *Board) *Board {
	data, _ := json.Marshal(b)
	var out Board
	_ = json.Unmarshal(data, &out)
	out.ETag = b.ETag
	return &out
}

func cloneUser(u *User) *User {
	data, _ := json.Marshal(u)
	var out User
	_ = json.Unmarshal(data, &out)
	return &out
}

func (f *fakeStore) GetBoard(ctx context.Context, id string) (*Board, error) {
	b, ok := f.boards[id]
	if !ok {
		return nil, nil
	}
	return cloneBoard(b), nil
}

func (f *fakeStore) GetBoards(ctx context.Context, ids []string) ([]Board, error) {
	out := make([]Board, 0, len(ids))
	for _, id := range ids {
		if b, ok := f.boards[id]; ok {
			out = append(out, *cloneBoard(b))
		}
	}
	return out, nil
}

func (f *fakeStore) InsertBoard(ctx context.Context, b *Board) error {
	if _, ok := f.boards[b.ID]; ok {
		return Conflict("board", "id")
	}
	f.boards[b.ID] = cloneBoard(b)
	return nil
}

func (f *fakeStore) SaveBoard(ctx context.Context, b *Board) error {
	f.saveCount++
	if f.saveBoardErr != nil {
		return f.saveBoardErr
	}
	if _, ok := f.boards[b.ID]; !ok {
		return NotFound("board", b.ID)
	}
	f.boards[b.ID] = cloneBoard(b)
	return nil
}

func (f *fakeStore) DeleteBoard(ctx context.Context, id string) error {
	delete(f.boards, id)
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (f *fakeStore) SaveUser(ctx context.Context, u *User) error {
	f.users[u.ID] = cloneUser(u)
	return nil
}

func (f *fakeStore) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, recipientID string) ([]Notification, error) {
	return append([]Notification(nil), f.notifications[recipientID]...), nil
}

func (f *fakeStore) DeleteNotifications(ctx context.Context, recipientID string, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.notifications[recipientID][:0]
	for _, n := range f.notifications[recipientID] {
		if !drop[n.ID] {
			kept = append(kept, n)
		}
	}
	f.notifications[recipientID] = kept
	return nil
}

type recordingNotifier struct {
	sent []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) recipients() []string {
	ids := make([]string, len(r.sent))
	for i, n := range r.sent {
		ids[i] = n.RecipientID
	}
	return ids
}

func newTestService(store *fakeStore, notifier *recordingNotifier) *Service {
	svc := NewService(store, notifier, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return svc
}

func seedUser(store *fakeStore, id, first, last, username string) {
	store.users[id] = &User{ID: id, FirstName: first, LastName: last, Username: username, Email: username + "@example.com"}
}

func seedBoard(store *fakeStore, b *Board) {
	store.boards[b.ID] = cloneBoard(b)
	if u, ok := store.users[b.CreatorID]; ok {
		u.AddBoard(b.ID)
	}
	for _, c := range b.Contributors {
		if u, ok := store.users[c.UserID]; ok {
			u.AddBoard(b.ID)
		}
	}
}

func sprintBoard() *Board {
	return &Board{
		ID:        "board-1",
		Name:      "Sprint",
		CreatorID: "alice",
		Contributors: []Contributor{
			{UserID: "bob", Name: "Bob Builder", Role: RoleMember},
			{UserID: "carol", Name: "Carol Jones", Role: RoleViewer},
		},
		Columns: []Column{
			{ID: "todo", Name: "Todo", Tasks: []Task{
				{ID: "t1", Title: "Ship it", Assignees: []Assignee{{UserID: "bob", Name: "Bob Builder"}}, Subtasks: []Subtask{
					{ID: "s1", Title: "write code"},
					{ID: "s2", Title: "review"},
				}},
			}},
			{ID: "done", Name: "Done", Tasks: []Task{}},
		},
	}
}

func TestSyncProfileCreatesAndUpdates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	u, err := svc.SyncProfile(ctx, "alice", ProfileRequest{
		FirstName: "Alice", LastName: "Smith", Username: "AliceSmith1", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if u.Username != "alicesmith1" {
		t.Fatalf("username must be lowercased, got %q", u.Username)
	}

	// Board references survive a re-sync.
	stored := store.users["alice"]
	stored.Boards = []string{"board-1"}
	stored.Favorites = []string{"board-1"}

	u, err = svc.SyncProfile(ctx, "alice", ProfileRequest{
		FirstName: "Alicia", LastName: "Smith", Username: "alicesmith1", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("re-sync: %v", err)
	}
	if u.FirstName != "Alicia" {
		t.Fatalf("profile fields not updated: %+v", u)
	}
	if len(u.Boards) != 1 || len(u.Favorites) != 1 {
		t.Fatalf("board references lost on re-sync: %+v", u)
	}
}

func TestSyncProfileValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.SyncProfile(ctx, "", ProfileRequest{Username: "validname1", Email: "a@b"}); KindOf(err) != KindUnauthenticated {
		t.Fatalf("missing caller must be unauthenticated, got %v", err)
	}
	if _, err := svc.SyncProfile(ctx, "u1", ProfileRequest{Username: "short", Email: "a@b"}); KindOf(err) != KindInvalidInput {
		t.Fatalf("short username must fail, got %v", err)
	}
	if _, err := svc.SyncProfile(ctx, "u1", ProfileRequest{Username: "has space 12", Email: "a@b"}); KindOf(err) != KindInvalidInput {
		t.Fatalf("non-alphanumeric username must fail, got %v", err)
	}
	if _, err := svc.SyncProfile(ctx, "u1", ProfileRequest{Username: "validname1", Email: "nope"}); KindOf(err) != KindInvalidInput {
		t.Fatalf("mail without @ must fail, got %v", err)
	}
}

func TestSearchContributorCandidate(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	byName, err := svc.SearchContributorCandidate(ctx, "BobBuilder")
	if err != nil {
		t.Fatalf("search by username: %v", err)
	}
	if byName.UserID != "bob" || byName.Role != RoleMember {
		t.Fatalf("unexpected candidate: %+v", byName)
	}

	byMail, err := svc.SearchContributorCandidate(ctx, "bobbuilder@example.com")
	if err != nil {
		t.Fatalf("search by email: %v", err)
	}
	if byMail.UserID != "bob" {
		t.Fatalf("unexpected candidate: %+v", byMail)
	}

	if _, err := svc.SearchContributorCandidate(ctx, "ghostuser"); KindOf(err) != KindNotFound {
		t.Fatalf("unknown user must be not found, got %v", err)
	}
	if _, err := svc.SearchContributorCandidate(ctx, "  "); KindOf(err) != KindInvalidInput {
		t.Fatalf("blank term must be invalid, got %v", err)
	}
}

func TestCreateBoard(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	b, err := svc.CreateBoard(ctx, "alice", CreateBoardRequest{
		Name:    "  Launch  ",
		Columns: []ListEntry{{Text: "Todo"}, {Text: "Done"}},
		Contributors: []ContributorInput{
			{UserID: "bob", Role: "Member"},
			{UserID: "bob", Role: "Member"},  // duplicate dropped
			{UserID: "alice", Role: "Admin"}, // creator filtered out
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Name != "Launch" {
		t.Fatalf("name not trimmed: %q", b.Name)
	}
	if b.CreatorID != "alice" || b.CreatorName != "Alice Smith" {
		t.Fatalf("creator not stamped: %+v", b)
	}
	if len(b.Columns) != 2 || b.Columns[0].Name != "Todo" || b.Columns[1].Name != "Done" {
		t.Fatalf("columns not created in order: %+v", b.Columns)
	}
	if len(b.Contributors) != 1 || b.Contributors[0].UserID != "bob" {
		t.Fatalf("contributor normalization failed: %+v", b.Contributors)
	}
	if b.Contributors[0].Name != "Bob Builder" {
		t.Fatalf("contributor name not resolved: %+v", b.Contributors[0])
	}

	if !store.users["alice"].HasBoard(b.ID) {
		t.Fatal("creator missing board reference")
	}
	if !store.users["bob"].HasBoard(b.ID) {
		t.Fatal("contributor missing board reference")
	}

	if len(notifier.sent) != 1 || notifier.sent[0].RecipientID != "bob" {
		t.Fatalf("expected one contributor notification, got %v", notifier.recipients())
	}
	if !strings.Contains(notifier.sent[0].Message, "Launch") {
		t.Fatalf("notification must name the board: %q", notifier.sent[0].Message)
	}
}

func TestCreateBoardDuplicateNameCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedBoard(store, &Board{ID: "b1", Name: "Launch", CreatorID: "alice", Columns: []Column{}})
	svc := newTestService(store, &recordingNotifier{})

	_, err := svc.CreateBoard(context.Background(), "alice", CreateBoardRequest{Name: " LAUNCH "})
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict for duplicate name, got %v", err)
	}
}

func TestCreateBoardValidation(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.CreateBoard(ctx, "alice", CreateBoardRequest{Name: ""}); KindOf(err) != KindInvalidInput {
		t.Fatalf("empty name must fail, got %v", err)
	}
	if _, err := svc.CreateBoard(ctx, "alice", CreateBoardRequest{Name: strings.Repeat("x", 21)}); KindOf(err) != KindInvalidInput {
		t.Fatalf("long name must fail, got %v", err)
	}
	if _, err := svc.CreateBoard(ctx, "ghost", CreateBoardRequest{Name: "ok"}); KindOf(err) != KindNotFound {
		t.Fatalf("unknown caller must fail, got %v", err)
	}
}

func TestGetBoardPermissions(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.GetBoard(ctx, "stranger", "board-1"); KindOf(err) != KindForbidden {
		t.Fatalf("outsider read must be forbidden, got %v", err)
	}

	b, err := svc.GetBoard(ctx, "carol", "board-1")
	if err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	if b.Name != "Sprint" {
		t.Fatalf("unexpected board: %+v", b)
	}

	if _, err := svc.GetBoard(ctx, "alice", "missing"); KindOf(err) != KindNotFound {
		t.Fatalf("missing board must be not found, got %v", err)
	}
}

func TestGetBoardByName(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	store.users["alice"].Favorites = []string{"board-1"}
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	// A reference that is not an id falls back to a case-insensitive name
	// match across the caller's boards.
	b, err := svc.GetBoard(ctx, "alice", "sPrInT")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if b.ID != "board-1" {
		t.Fatalf("unexpected board: %+v", b)
	}
	if !b.IsFavorite {
		t.Fatal("favorite flag must resolve on a name hit")
	}

	b, err = svc.GetBoard(ctx, "carol", "Sprint")
	if err != nil {
		t.Fatalf("contributor get by name: %v", err)
	}
	if b.ID != "board-1" {
		t.Fatalf("unexpected board: %+v", b)
	}

	// The name of someone else's board resolves nothing for an outsider.
	if _, err := svc.GetBoard(ctx, "stranger", "Sprint"); KindOf(err) != KindNotFound {
		t.Fatalf("outsider name lookup must be not found, got %v", err)
	}
}

func TestListBoardsResolvesFavorites(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedBoard(store, sprintBoard())
	store.users["alice"].Favorites = []string{"board-1"}
	svc := newTestService(store, &recordingNotifier{})

	boards, err := svc.ListBoards(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(boards) != 1 || !boards[0].IsFavorite {
		t.Fatalf("favorite flag not resolved: %+v", boards)
	}

	empty, err := svc.ListBoards(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list unknown user: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown user must see no boards, got %d", len(empty))
	}
}

func TestUpdateBoardContributorDiff(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedUser(store, "dave", "Dave", "Lee", "davelee12")
	seedBoard(store, sprintBoard())
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	// Keep bob, drop carol, add dave.
	b, err := svc.UpdateBoard(context.Background(), "alice", "board-1", UpdateBoardRequest{
		Name: "Sprint",
		Contributors: []ContributorInput{
			{UserID: "bob", Name: "Bob Builder", Role: "Member"},
			{UserID: "dave", Role: "Co-creator"},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(b.Contributors) != 2 {
		t.Fatalf("unexpected contributors: %+v", b.Contributors)
	}

	if store.users["carol"].HasBoard("board-1") {
		t.Fatal("removed contributor must lose the board reference")
	}
	if !store.users["dave"].HasBoard("board-1") {
		t.Fatal("added contributor must gain the board reference")
	}

	// Only the newly added contributor is notified.
	if len(notifier.sent) != 1 || notifier.sent[0].RecipientID != "dave" {
		t.Fatalf("expected only dave notified, got %v", notifier.recipients())
	}
	if !strings.Contains(notifier.sent[0].Message, string(RoleCoCreator)) {
		t.Fatalf("notification must name the role: %q", notifier.sent[0].Message)
	}
}

func TestUpdateBoardConflictKeepsContributorRefs(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	store.users["carol"].Favorites = []string{"board-1"}
	store.saveBoardErr = Conflict("board", "version")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	// Dropping carol fails at the conditional save; her user record must keep
	// the board reference and favorite, matching the board that still lists her.
	_, err := svc.UpdateBoard(context.Background(), "alice", "board-1", UpdateBoardRequest{
		Name: "Sprint",
		Contributors: []ContributorInput{
			{UserID: "bob", Name: "Bob Builder", Role: "Member"},
		},
	})
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !store.users["carol"].HasBoard("board-1") {
		t.Fatal("failed save must not unregister the removed contributor")
	}
	if !store.users["carol"].IsFavorite("board-1") {
		t.Fatal("failed save must not touch the removed contributor's favorites")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("failed save must not notify, got %v", notifier.recipients())
	}
}

func TestUpdateBoardForbiddenForMember(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})

	_, err := svc.UpdateBoard(context.Background(), "bob", "board-1", UpdateBoardRequest{Name: "Sprint"})
	if KindOf(err) != KindForbidden {
		t.Fatalf("member manage must be forbidden, got %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	on, err := svc.ToggleFavorite(ctx, "alice", "board-1")
	if err != nil || !on {
		t.Fatalf("first toggle: %v %v", on, err)
	}
	off, err := svc.ToggleFavorite(ctx, "alice", "board-1")
	if err != nil || off {
		t.Fatalf("second toggle: %v %v", off, err)
	}
	if _, err := svc.ToggleFavorite(ctx, "nobody", "board-1"); KindOf(err) != KindNotFound {
		t.Fatalf("unknown user must be not found, got %v", err)
	}
}

func TestDeleteBoard(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	if err := svc.DeleteBoard(context.Background(), "alice", "board-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.boards["board-1"]; ok {
		t.Fatal("board not deleted")
	}
	for _, id := range []string{"alice", "bob", "carol"} {
		if store.users[id].HasBoard("board-1") {
			t.Fatalf("%s still references the deleted board", id)
		}
	}
	// Both contributors notified; the deleting creator is not.
	got := notifier.recipients()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %v", got)
	}
	for _, id := range got {
		if id == "alice" {
			t.Fatal("deleting caller must not be notified")
		}
	}
}

func TestDeleteBoardForbiddenForViewer(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})

	if err := svc.DeleteBoard(context.Background(), "carol", "board-1"); KindOf(err) != KindForbidden {
		t.Fatalf("viewer delete must be forbidden, got %v", err)
	}
	if _, ok := store.boards["board-1"]; !ok {
		t.Fatal("board must survive a forbidden delete")
	}
}

func TestCreateTask(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedBoard(store, sprintBoard())
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	b, err := svc.CreateTask(context.Background(), "alice", "board-1", "todo", TaskInput{
		Title:     "  Fix login  ",
		Assignees: []Assignee{{UserID: "bob", Name: "Bob Builder"}, {UserID: "bob"}},
		Subtasks:  []ListEntry{{Text: "repro"}, {Text: "patch"}},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	col := b.Column("todo")
	task := col.Tasks[len(col.Tasks)-1]
	if task.Title != "Fix login" {
		t.Fatalf("title not trimmed: %q", task.Title)
	}
	if task.Created.IsZero() {
		t.Fatal("created timestamp not stamped")
	}
	if len(task.Assignees) != 1 {
		t.Fatalf("assignees not deduped: %+v", task.Assignees)
	}
	if len(task.Subtasks) != 2 || task.Subtasks[0].Title != "repro" {
		t.Fatalf("subtasks not created: %+v", task.Subtasks)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].RecipientID != "bob" {
		t.Fatalf("expected assignment notification for bob, got %v", notifier.recipients())
	}

	if _, err := svc.CreateTask(context.Background(), "bob", "board-1", "todo", TaskInput{Title: "nope"}); KindOf(err) != KindForbidden {
		t.Fatalf("member create must be forbidden, got %v", err)
	}
	if _, err := svc.CreateTask(context.Background(), "alice", "board-1", "ghost", TaskInput{Title: "nope"}); KindOf(err) != KindNotFound {
		t.Fatalf("unknown column must be not found, got %v", err)
	}
}

func TestUpdateTaskStateSubtasks(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	b, err := svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Subtasks: []SubtaskStatusChange{{ID: "s1", Done: true}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	task, _ := b.Column("todo").Task("t1")
	if !task.Subtasks[0].Done {
		t.Fatal("subtask not marked done")
	}
	if task.Subtasks[0].CompletedBy == nil || task.Subtasks[0].CompletedBy.Initials != "BB" {
		t.Fatalf("completion stamp missing: %+v", task.Subtasks[0].CompletedBy)
	}
	if task.Subtasks[1].Done {
		t.Fatal("untouched subtask flipped")
	}

	// Unticking clears the stamp.
	b, err = svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Subtasks: []SubtaskStatusChange{{ID: "s1", Done: false}},
	})
	if err != nil {
		t.Fatalf("untick: %v", err)
	}
	task, _ = b.Column("todo").Task("t1")
	if task.Subtasks[0].Done || task.Subtasks[0].CompletedBy != nil {
		t.Fatalf("untick must clear stamp: %+v", task.Subtasks[0])
	}

	if _, err := svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Subtasks: []SubtaskStatusChange{{ID: "ghost", Done: true}},
	}); KindOf(err) != KindNotFound {
		t.Fatalf("unknown subtask must be not found, got %v", err)
	}
}

func TestUpdateTaskStateCompletionNotifications(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	board := sprintBoard()
	board.Columns[0].Tasks[0].Assignees = []Assignee{
		{UserID: "bob", Name: "Bob Builder"},
		{UserID: "carol", Name: "Carol Jones"},
	}
	seedBoard(store, board)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	b, err := svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Completion: &CompletionChange{Done: true},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	task, _ := b.Column("todo").Task("t1")
	if !task.Done || task.Completed == nil || task.CompletedBy == nil {
		t.Fatalf("completion state not set: %+v", task)
	}

	// Two assignees plus the board creator.
	if len(notifier.sent) != 3 {
		t.Fatalf("expected 3 completion notifications, got %v", notifier.recipients())
	}
	want := map[string]bool{"bob": true, "carol": true, "alice": true}
	for _, id := range notifier.recipients() {
		if !want[id] {
			t.Fatalf("unexpected recipient %s", id)
		}
	}

	// Reopening clears state and emits nothing.
	notifier.sent = nil
	b, err = svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Completion: &CompletionChange{Done: false},
	})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	task, _ = b.Column("todo").Task("t1")
	if task.Done || task.Completed != nil || task.CompletedBy != nil {
		t.Fatalf("reopen must clear completion state: %+v", task)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("reopen must not notify, got %v", notifier.recipients())
	}

	// Completing an already done task is idempotent and silent.
	if _, err := svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Completion: &CompletionChange{Done: true},
	}); err != nil {
		t.Fatalf("complete again: %v", err)
	}
	notifier.sent = nil
	if _, err := svc.UpdateTaskState(ctx, "bob", "board-1", "todo", "t1", TaskStateChange{
		Completion: &CompletionChange{Done: true},
	}); err != nil {
		t.Fatalf("redundant complete: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("redundant completion must not notify, got %v", notifier.recipients())
	}
}

func TestUpdateTaskStateMove(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})

	b, err := svc.UpdateTaskState(context.Background(), "bob", "board-1", "todo", "t1", TaskStateChange{
		Move: &MoveTarget{ColumnID: "done", Index: intPtr(0)},
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if task, _ := b.Column("done").Task("t1"); task == nil {
		t.Fatal("task not moved to destination")
	}
	if task, _ := b.Column("todo").Task("t1"); task != nil {
		t.Fatal("task still present in source")
	}
}

func TestUpdateTaskStateForbiddenForViewer(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})

	_, err := svc.UpdateTaskState(context.Background(), "carol", "board-1", "todo", "t1", TaskStateChange{
		Completion: &CompletionChange{Done: true},
	})
	if KindOf(err) != KindForbidden {
		t.Fatalf("viewer task edit must be forbidden, got %v", err)
	}
}

func TestEditTask(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedUser(store, "dave", "Dave", "Lee", "davelee12")
	seedBoard(store, sprintBoard())
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	b, err := svc.EditTask(context.Background(), "alice", "board-1", "todo", "t1", EditTaskRequest{
		Title:       "Ship it v2",
		Description: "now with docs",
		Assignees: []Assignee{
			{UserID: "bob", Name: "Bob Builder"},
			{UserID: "dave", Name: "Dave Lee"},
		},
		Subtasks:     []ListEntry{{ID: "s2"}, {Text: "ship"}},
		DestColumnID: "done",
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	task, _ := b.Column("done").Task("t1")
	if task == nil {
		t.Fatal("task not moved to destination column")
	}
	if task.Title != "Ship it v2" || task.Description != "now with docs" {
		t.Fatalf("fields not applied: %+v", task)
	}
	if len(task.Assignees) != 2 {
		t.Fatalf("assignees not replaced: %+v", task.Assignees)
	}
	// s1 kept, s2 removed, "ship" appended.
	if len(task.Subtasks) != 2 || task.Subtasks[0].ID != "s1" || task.Subtasks[1].Title != "ship" {
		t.Fatalf("subtask reconciliation failed: %+v", task.Subtasks)
	}

	// Only the newly added assignee is notified.
	if len(notifier.sent) != 1 || notifier.sent[0].RecipientID != "dave" {
		t.Fatalf("expected only dave notified, got %v", notifier.recipients())
	}
}

func TestEditTaskValidation(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.EditTask(ctx, "alice", "board-1", "todo", "t1", EditTaskRequest{Title: ""}); KindOf(err) != KindInvalidInput {
		t.Fatalf("empty title must fail, got %v", err)
	}
	long := strings.Repeat("d", 201)
	if _, err := svc.EditTask(ctx, "alice", "board-1", "todo", "t1", EditTaskRequest{Title: "ok", Description: long}); KindOf(err) != KindInvalidInput {
		t.Fatalf("long description must fail, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	seedBoard(store, sprintBoard())
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	b, err := svc.DeleteTask(context.Background(), "alice", "board-1", "todo", "t1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if task, _ := b.Column("todo").Task("t1"); task != nil {
		t.Fatal("task not removed")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].RecipientID != "bob" {
		t.Fatalf("expected assignee notified of deletion, got %v", notifier.recipients())
	}
}

func TestDeleteTaskForbiddenForViewerLeavesTask(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "carol", "Carol", "Jones", "caroljones1")
	seedBoard(store, sprintBoard())
	svc := newTestService(store, &recordingNotifier{})

	if _, err := svc.DeleteTask(context.Background(), "carol", "board-1", "todo", "t1"); KindOf(err) != KindForbidden {
		t.Fatalf("viewer delete must be forbidden, got %v", err)
	}
	if task, _ := store.boards["board-1"].Columns[0].Task("t1"); task == nil {
		t.Fatal("task must survive a forbidden delete")
	}
}

func TestSaveConflictPropagates(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedBoard(store, sprintBoard())
	store.saveBoardErr = Conflict("board", "version")
	svc := newTestService(store, &recordingNotifier{})

	_, err := svc.CreateTask(context.Background(), "alice", "board-1", "todo", TaskInput{Title: "x"})
	if KindOf(err) != KindConflict {
		t.Fatalf("version conflict must surface, got %v", err)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	store := newFakeStore()
	store.notifications["alice"] = []Notification{
		{ID: "n1", RecipientID: "alice", Message: "one"},
		{ID: "n2", RecipientID: "alice", Message: "two"},
	}
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	list, err := svc.Notifications(ctx, "alice")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %v", list, err)
	}

	if err := svc.AcknowledgeNotifications(ctx, "alice", nil); err != nil {
		t.Fatalf("empty ack must be a no-op: %v", err)
	}
	if err := svc.AcknowledgeNotifications(ctx, "alice", []string{"n1"}); err != nil {
		t.Fatalf("ack: %v", err)
	}
	list, err = svc.Notifications(ctx, "alice")
	if err != nil || len(list) != 1 || list[0].ID != "n2" {
		t.Fatalf("ack did not remove the record: %v %v", list, err)
	}
}

func TestBoardLifecycleEndToEnd(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "alice", "Alice", "Smith", "alicesmith1")
	seedUser(store, "bob", "Bob", "Builder", "bobbuilder")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	b, err := svc.CreateBoard(ctx, "alice", CreateBoardRequest{
		Name:         "Release",
		Columns:      []ListEntry{{Text: "Todo"}, {Text: "Done"}},
		Contributors: []ContributorInput{{UserID: "bob", Role: "Member"}},
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	todoID, doneID := b.Columns[0].ID, b.Columns[1].ID

	b, err = svc.CreateTask(ctx, "alice", b.ID, todoID, TaskInput{
		Title:     "Cut release",
		Assignees: []Assignee{{UserID: "bob", Name: "Bob Builder"}},
		Subtasks:  []ListEntry{{Text: "tag"}, {Text: "publish"}},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	taskID := b.Column(todoID).Tasks[0].ID
	subID := b.Column(todoID).Tasks[0].Subtasks[0].ID

	if _, err = svc.UpdateTaskState(ctx, "bob", b.ID, todoID, taskID, TaskStateChange{
		Subtasks: []SubtaskStatusChange{{ID: subID, Done: true}},
	}); err != nil {
		t.Fatalf("tick subtask: %v", err)
	}

	b, err = svc.UpdateTaskState(ctx, "bob", b.ID, todoID, taskID, TaskStateChange{
		Completion: &CompletionChange{Done: true},
		Move:       &MoveTarget{ColumnID: doneID},
	})
	if err != nil {
		t.Fatalf("complete and move: %v", err)
	}

	task, _ := b.Column(doneID).Task(taskID)
	if task == nil || !task.Done {
		t.Fatalf("task must land done in the done column: %+v", b.Columns)
	}
	if !task.Subtasks[0].Done {
		t.Fatal("subtask state lost across the move")
	}

	if err := svc.DeleteBoard(ctx, "alice", b.ID); err != nil {
		t.Fatalf("delete board: %v", err)
	}
	if store.users["bob"].HasBoard(b.ID) {
		t.Fatal("contributor reference must be gone after board delete")
	}
}
