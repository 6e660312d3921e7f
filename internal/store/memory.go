package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// single-host play. Not suitable for multi-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	rooms   map[string]*model.RoomState
	players map[string][]*model.PlayerState // join order preserved
	freezes map[string][]model.FreezeRequest
	ledger  map[string][]model.Transaction // key: code/nickname

	// now is swappable so tests can control server-assigned timestamps.
	now func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*model.RoomState),
		players: make(map[string][]*model.PlayerState),
		freezes: make(map[string][]model.FreezeRequest),
		ledger:  make(map[string][]model.Transaction),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the server-timestamp source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func ledgerKey(code, nickname string) string { return code + "/" + nickname }

func (s *MemoryStore) CreateRoom(_ context.Context, room *model.RoomState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; ok {
		return fmt.Errorf("room %s already exists", room.Code)
	}
	cp := *room
	s.rooms[room.Code] = &cp
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, code string) (*model.RoomState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpdateRoom(_ context.Context, room *model.RoomState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; !ok {
		return fmt.Errorf("room %s: %w", room.Code, ErrNotFound)
	}
	cp := *room
	s.rooms[room.Code] = &cp
	return nil
}

func (s *MemoryStore) UpsertPlayer(_ context.Context, code string, p *model.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.UpdatedAt = s.now()
	for i, existing := range s.players[code] {
		if existing.Nickname == p.Nickname {
			s.players[code][i] = &cp
			return nil
		}
	}
	s.players[code] = append(s.players[code], &cp)
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, code, nickname string) (*model.PlayerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players[code] {
		if p.Nickname == nickname {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("player %s in room %s: %w", nickname, code, ErrNotFound)
}

func (s *MemoryStore) ListPlayers(_ context.Context, code string) ([]model.PlayerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PlayerState, 0, len(s.players[code]))
	for _, p := range s.players[code] {
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) DeletePlayers(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.players, code)
	return nil
}

func (s *MemoryStore) CreateFreezeRequest(_ context.Context, code, nickname string) (*model.FreezeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fr := range s.freezes[code] {
		if fr.Nickname == nickname {
			// Re-request refreshes nothing; the original stands.
			cp := fr
			return &cp, nil
		}
	}
	fr := model.FreezeRequest{Nickname: nickname, CreatedAt: s.now()}
	s.freezes[code] = append(s.freezes[code], fr)
	return &fr, nil
}

func (s *MemoryStore) DeleteFreezeRequest(_ context.Context, code, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := s.freezes[code]
	for i, fr := range reqs {
		if fr.Nickname == nickname {
			s.freezes[code] = append(reqs[:i], reqs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) DeleteAllFreezeRequests(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.freezes, code)
	return nil
}

func (s *MemoryStore) ListFreezeRequests(_ context.Context, code string) ([]model.FreezeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FreezeRequest, len(s.freezes[code]))
	copy(out, s.freezes[code])
	return out, nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, code, nickname string, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey(code, nickname)
	s.ledger[key] = append(s.ledger[key], *tx)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, code, nickname string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := ledgerKey(code, nickname)
	out := make([]model.Transaction, len(s.ledger[key]))
	copy(out, s.ledger[key])
	return out, nil
}
