package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"kanban-api/domain"
)

// queueClient is the slice of the azqueue client used for notification
// fan-out, extracted so tests can substitute fakes.
type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage provides the document store: boards, users and notifications live
// in Azure tables, and every stored notification is additionally enqueued for
// downstream delivery channels.
type Storage struct {
	boardTable        *aztables.Client
	userTable         *aztables.Client
	notificationTable *aztables.Client
	notificationQueue queueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, boardsTable, usersTable, notificationsTable, notificationsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	nq, err := azqueue.NewQueueClientFromConnectionString(connStr, notificationsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		boardTable:        svc.NewClient(boardsTable),
		userTable:         svc.NewClient(usersTable),
		notificationTable: svc.NewClient(notificationsTable),
		notificationQueue: nq,
	}, nil
}

// boardEntity wraps a board document in a single-property table entity. The
// table's odata.etag is the document version used for optimistic saves.
type boardEntity struct {
	aztables.Entity
	Doc string `json:"Doc"`
}

// userEntity stores the user document plus the two properties the contributor
// search filters on.
type userEntity struct {
	aztables.Entity
	Username string `json:"Username"`
	Email    string `json:"Email"`
	Doc      string `json:"Doc"`
}

type notificationEntity struct {
	aztables.Entity
	Doc string `json:"Doc"`
}

// GetBoard retrieves a board document by id, or (nil, nil) when absent.
func (s *Storage) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	resp, err := s.boardTable.GetEntity(ctx, id, id, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeBoardEntity(resp.Value)
}

// GetBoards retrieves the named boards, silently skipping ids that no longer
// resolve (a board deleted concurrently with the listing).
func (s *Storage) GetBoards(ctx context.Context, ids []string) ([]domain.Board, error) {
	boards := make([]domain.Board, 0, len(ids))
	for _, id := range ids {
		b, err := s.GetBoard(ctx, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			boards = append(boards, *b)
		}
	}
	return boards, nil
}

// InsertBoard creates a new board document. An existing id maps to Conflict.
func (s *Storage) InsertBoard(ctx context.Context, b *domain.Board) error {
	payload, err := encodeBoardEntity(b)
	if err != nil {
		return err
	}
	resp, err := s.boardTable.AddEntity(ctx, payload, nil)
	if err != nil {
		if isStatus(err, http.StatusConflict) {
			return domain.Conflict("board", "id")
		}
		return err
	}
	b.ETag = string(resp.ETag)
	return nil
}

// SaveBoard replaces the board document conditionally on the version it was
// read at. A version mismatch maps to Conflict; the caller re-reads and
// reapplies.
func (s *Storage) SaveBoard(ctx context.Context, b *domain.Board) error {
	payload, err := encodeBoardEntity(b)
	if err != nil {
		return err
	}
	match := azcore.ETag(b.ETag)
	if b.ETag == "" {
		match = azcore.ETagAny
	}
	resp, err := s.boardTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &match,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		if isStatus(err, http.StatusPreconditionFailed) {
			return domain.Conflict("board", "version")
		}
		if isStatus(err, http.StatusNotFound) {
			return domain.NotFound("board", b.ID)
		}
		return err
	}
	b.ETag = string(resp.ETag)
	return nil
}

// DeleteBoard removes the board document unconditionally. Deleting a board
// that is already gone is not an error.
func (s *Storage) DeleteBoard(ctx context.Context, id string) error {
	match := azcore.ETagAny
	_, err := s.boardTable.DeleteEntity(ctx, id, id, &aztables.DeleteEntityOptions{IfMatch: &match})
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	return nil
}

// GetUser retrieves a user document by id, or (nil, nil) when absent.
func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	resp, err := s.userTable.GetEntity(ctx, id, id, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeUserEntity(resp.Value)
}

// SaveUser upserts the user document. The board document carries the version
// discipline; user records are last-write-wins reference lists.
func (s *Storage) SaveUser(ctx context.Context, u *domain.User) error {
	payload, err := encodeUserEntity(u)
	if err != nil {
		return err
	}
	_, err = s.userTable.UpsertEntity(ctx, payload, nil)
	return err
}

// FindUserByUsername resolves an exact username match, or (nil, nil).
func (s *Storage) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, "Username eq '"+escapeFilterValue(username)+"'")
}

// FindUserByEmail resolves an exact email match, or (nil, nil).
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "Email eq '"+escapeFilterValue(email)+"'")
}

func (s *Storage) findUser(ctx context.Context, filter string) (*domain.User, error) {
	one := int32(1)
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &one})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			return decodeUserEntity(e)
		}
	}
	return nil, nil
}

// InsertNotification stores a notification record in the recipient's
// partition. Duplicate dispatch of the same record is harmless.
func (s *Storage) InsertNotification(ctx context.Context, n domain.Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ent := notificationEntity{
		Entity: aztables.Entity{PartitionKey: n.RecipientID, RowKey: n.ID},
		Doc:    string(doc),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.notificationTable.AddEntity(ctx, payload, nil)
	if err != nil && isStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

// EnqueueNotification hands the record to the delivery queue consumed by
// downstream channels.
func (s *Storage) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = s.notificationQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// ListNotifications retrieves all notifications for the recipient.
func (s *Storage) ListNotifications(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(recipientID) + "'"
	pager := s.notificationTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	notifications := []domain.Notification{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			n, err := decodeNotificationEntity(e)
			if err != nil {
				return nil, err
			}
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

// DeleteNotifications removes acknowledged records. Records are independent:
// an id that no longer resolves does not block the others.
func (s *Storage) DeleteNotifications(ctx context.Context, recipientID string, ids []string) error {
	match := azcore.ETagAny
	for _, id := range ids {
		_, err := s.notificationTable.DeleteEntity(ctx, recipientID, id, &aztables.DeleteEntityOptions{IfMatch: &match})
		if err != nil && !isStatus(err, http.StatusNotFound) {
			return err
		}
	}
	return nil
}

func encodeBoardEntity(b *domain.Board) ([]byte, error) {
	doc, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(boardEntity{
		Entity: aztables.Entity{PartitionKey: b.ID, RowKey: b.ID},
		Doc:    string(doc),
	})
}

func decodeBoardEntity(data []byte) (*domain.Board, error) {
	var ent struct {
		boardEntity
		ETag string `json:"odata.etag"`
	}
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	var b domain.Board
	if err := json.Unmarshal([]byte(ent.Doc), &b); err != nil {
		return nil, err
	}
	b.ETag = ent.ETag
	return &b, nil
}

func encodeUserEntity(u *domain.User) ([]byte, error) {
	doc, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return json.Marshal(userEntity{
		Entity:   aztables.Entity{PartitionKey: u.ID, RowKey: u.ID},
		Username: u.Username,
		Email:    u.Email,
		Doc:      string(doc),
	})
}

func decodeUserEntity(data []byte) (*domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal([]byte(ent.Doc), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeNotificationEntity(data []byte) (domain.Notification, error) {
	var ent notificationEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Notification{}, err
	}
	var n domain.Notification
	if err := json.Unmarshal([]byte(ent.Doc), &n); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func isStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}

// escapeFilterValue doubles single quotes per the OData filter grammar.
func escapeFilterValue(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, v[i])
	}
	return string(out)
}
