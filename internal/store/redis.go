package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for room and player snapshots. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary. Freeze requests are never cached: the barrier must always see
// the latest outstanding set.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateRoom(ctx context.Context, r *model.RoomState) error {
	if err := s.primary.CreateRoom(ctx, r); err != nil {
		return err
	}
	s.cacheRoom(ctx, r)
	return nil
}

func (s *CachedStore) UpdateRoom(ctx context.Context, r *model.RoomState) error {
	if err := s.primary.UpdateRoom(ctx, r); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, roomKey(r.Code))
	return nil
}

func (s *CachedStore) UpsertPlayer(ctx context.Context, code string, p *model.PlayerState) error {
	if err := s.primary.UpsertPlayer(ctx, code, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, playersKey(code))
	return nil
}

func (s *CachedStore) DeletePlayers(ctx context.Context, code string) error {
	if err := s.primary.DeletePlayers(ctx, code); err != nil {
		return err
	}
	s.rdb.Del(ctx, playersKey(code))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRoom(ctx context.Context, code string) (*model.RoomState, error) {
	data, err := s.rdb.Get(ctx, roomKey(code)).Bytes()
	if err == nil {
		var r model.RoomState
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cacheRoom(ctx, r)
	return r, nil
}

func (s *CachedStore) ListPlayers(ctx context.Context, code string) ([]model.PlayerState, error) {
	data, err := s.rdb.Get(ctx, playersKey(code)).Bytes()
	if err == nil {
		var players []model.PlayerState
		if json.Unmarshal(data, &players) == nil {
			return players, nil
		}
	}

	players, err := s.primary.ListPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(players); err == nil {
		s.rdb.Set(ctx, playersKey(code), data, s.ttl)
	}
	return players, nil
}

// --- Passthrough (coordination and ledger read the primary directly) ---

func (s *CachedStore) GetPlayer(ctx context.Context, code, nickname string) (*model.PlayerState, error) {
	return s.primary.GetPlayer(ctx, code, nickname)
}

func (s *CachedStore) CreateFreezeRequest(ctx context.Context, code, nickname string) (*model.FreezeRequest, error) {
	return s.primary.CreateFreezeRequest(ctx, code, nickname)
}

func (s *CachedStore) DeleteFreezeRequest(ctx context.Context, code, nickname string) error {
	return s.primary.DeleteFreezeRequest(ctx, code, nickname)
}

func (s *CachedStore) DeleteAllFreezeRequests(ctx context.Context, code string) error {
	return s.primary.DeleteAllFreezeRequests(ctx, code)
}

func (s *CachedStore) ListFreezeRequests(ctx context.Context, code string) ([]model.FreezeRequest, error) {
	return s.primary.ListFreezeRequests(ctx, code)
}

func (s *CachedStore) InsertTransaction(ctx context.Context, code, nickname string, tx *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, code, nickname, tx)
}

func (s *CachedStore) ListTransactions(ctx context.Context, code, nickname string) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx, code, nickname)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRoom(ctx context.Context, r *model.RoomState) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, roomKey(r.Code), data, s.ttl)
	}
}

func roomKey(code string) string    { return fmt.Sprintf("room:%s", code) }
func playersKey(code string) string { return fmt.Sprintf("room:%s:players", code) }
