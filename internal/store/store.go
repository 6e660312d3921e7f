// Package store defines the snapshot-store interface the coordination layer
// runs on. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing and single-host play).
//
// The store is deliberately dumb: write-with-server-timestamp, read-latest,
// no multi-document atomicity. Cross-participant coordination built on top of
// it is advisory, not transactional.
package store

import (
	"context"
	"errors"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface for room, player, freeze-request and
// ledger documents. Each room owns one RoomState document, a player document
// per nickname, and at most one freeze-request document per nickname.
type Store interface {
	// --- Room document (single writer: the host) ---

	// CreateRoom persists a new room document.
	CreateRoom(ctx context.Context, room *model.RoomState) error

	// GetRoom retrieves the latest room snapshot by join code.
	GetRoom(ctx context.Context, code string) (*model.RoomState, error)

	// UpdateRoom replaces the room document.
	UpdateRoom(ctx context.Context, room *model.RoomState) error

	// --- Player documents (single writer: that player) ---

	// UpsertPlayer writes a player's latest state.
	UpsertPlayer(ctx context.Context, code string, p *model.PlayerState) error

	// GetPlayer retrieves one player's latest snapshot.
	GetPlayer(ctx context.Context, code, nickname string) (*model.PlayerState, error)

	// ListPlayers returns all players in first-seen (join) order.
	ListPlayers(ctx context.Context, code string) ([]model.PlayerState, error)

	// DeletePlayers removes all player documents for a room (new game).
	DeletePlayers(ctx context.Context, code string) error

	// --- Freeze requests (author-owned; host may force-clear) ---

	// CreateFreezeRequest records trade intent with a server-assigned
	// timestamp and returns the stored document.
	CreateFreezeRequest(ctx context.Context, code, nickname string) (*model.FreezeRequest, error)

	// DeleteFreezeRequest removes the author's own request.
	DeleteFreezeRequest(ctx context.Context, code, nickname string) error

	// DeleteAllFreezeRequests is the host's force-clear.
	DeleteAllFreezeRequests(ctx context.Context, code string) error

	// ListFreezeRequests returns outstanding requests in creation order.
	ListFreezeRequests(ctx context.Context, code string) ([]model.FreezeRequest, error)

	// --- Immutable ledger ---

	// InsertTransaction appends an immutable trade record.
	InsertTransaction(ctx context.Context, code, nickname string, tx *model.Transaction) error

	// ListTransactions returns a player's trades in chronological order.
	ListTransactions(ctx context.Context, code, nickname string) ([]model.Transaction, error)
}
