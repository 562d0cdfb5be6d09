package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"kanban-api/domain"
)

type backend interface {
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	InsertBoard(ctx context.Context, b *domain.Board) error
	SaveBoard(ctx context.Context, b *domain.Board) error
	DeleteBoard(ctx context.Context, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching for board reads.
// Every board write evicts the cached copy so the next read observes the new
// version.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

// cachedBoard carries the document version alongside the document itself; the
// version is excluded from the document's own JSON form.
type cachedBoard struct {
	ETag  string       `json:"etag"`
	Board domain.Board `json:"board"`
}

func (c *Cache) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	if b, ok := c.loadBoardFromCache(ctx, id); ok {
		return b, nil
	}

	b, err := c.base.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	if b != nil {
		c.storeBoard(ctx, b)
	}
	return b, nil
}

func (c *Cache) GetBoards(ctx context.Context, ids []string) ([]domain.Board, error) {
	boards := make([]domain.Board, 0, len(ids))
	for _, id := range ids {
		b, err := c.GetBoard(ctx, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			boards = append(boards, *b)
		}
	}
	return boards, nil
}

func (c *Cache) InsertBoard(ctx context.Context, b *domain.Board) error {
	if err := c.base.InsertBoard(ctx, b); err != nil {
		return err
	}
	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) SaveBoard(ctx context.Context, b *domain.Board) error {
	if err := c.base.SaveBoard(ctx, b); err != nil {
		return err
	}
	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) DeleteBoard(ctx context.Context, id string) error {
	if err := c.base.DeleteBoard(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *Cache) loadBoardFromCache(ctx context.Context, id string) (*domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
		}
		return nil, false
	}
	var rec cachedBoard
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
		return nil, false
	}
	rec.Board.ETag = rec.ETag
	return &rec.Board, true
}

func (c *Cache) storeBoard(ctx context.Context, b *domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(cachedBoard{ETag: b.ETag, Board: *b})
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(b.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(id)).Result()
}

func boardCacheKey(id string) string {
	return "board:" + id
}
