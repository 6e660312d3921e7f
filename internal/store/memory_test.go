package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/store"
)

var ctx = context.Background()

func seedRoom(t *testing.T, ms *store.MemoryStore, code string) {
	t.Helper()
	err := ms.CreateRoom(ctx, &model.RoomState{
		Code:      code,
		Status:    model.RoomWaiting,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
}

func TestRoom_CRUD(t *testing.T) {
	ms := store.NewMemoryStore()
	seedRoom(t, ms, "111111")

	if err := ms.CreateRoom(ctx, &model.RoomState{Code: "111111"}); err == nil {
		t.Error("expected error creating a duplicate room")
	}

	if _, err := ms.GetRoom(ctx, "222222"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	r, err := ms.GetRoom(ctx, "111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Status = model.RoomPlaying
	if err := ms.UpdateRoom(ctx, r); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// The store hands out copies; mutating a read must not leak back.
	r2, _ := ms.GetRoom(ctx, "111111")
	r2.Status = model.RoomEnded
	r3, _ := ms.GetRoom(ctx, "111111")
	if r3.Status != model.RoomPlaying {
		t.Errorf("expected PLAYING, got %s (aliased document)", r3.Status)
	}
}

func TestListPlayers_FirstSeenOrder(t *testing.T) {
	ms := store.NewMemoryStore()
	seedRoom(t, ms, "111111")

	for _, n := range []string{"carol", "alice", "bob"} {
		if err := ms.UpsertPlayer(ctx, "111111", &model.PlayerState{Nickname: n}); err != nil {
			t.Fatalf("upsert %s: %v", n, err)
		}
	}

	// Updating an existing player keeps their position.
	roi := decimal.NewFromInt(7)
	ms.UpsertPlayer(ctx, "111111", &model.PlayerState{Nickname: "carol", ROI: &roi})

	players, err := ms.ListPlayers(ctx, "111111")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"carol", "alice", "bob"}
	if len(players) != len(want) {
		t.Fatalf("expected %d players, got %d", len(want), len(players))
	}
	for i, n := range want {
		if players[i].Nickname != n {
			t.Errorf("position %d: expected %s, got %s", i, n, players[i].Nickname)
		}
	}
	if players[0].ROI == nil || !players[0].ROI.Equal(roi) {
		t.Errorf("expected carol's updated roi, got %v", players[0].ROI)
	}
}

func TestFreezeRequest_ServerTimestampsAndIdempotency(t *testing.T) {
	ms := store.NewMemoryStore()
	seedRoom(t, ms, "111111")

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ms.SetClock(func() time.Time { return t0 })

	fr, err := ms.CreateFreezeRequest(ctx, "111111", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr.CreatedAt.Equal(t0) {
		t.Errorf("expected server-assigned timestamp %s, got %s", t0, fr.CreatedAt)
	}

	// A re-request does not refresh the original timestamp.
	ms.SetClock(func() time.Time { return t0.Add(5 * time.Second) })
	fr2, err := ms.CreateFreezeRequest(ctx, "111111", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr2.CreatedAt.Equal(t0) {
		t.Errorf("re-request must keep the original timestamp, got %s", fr2.CreatedAt)
	}

	reqs, _ := ms.ListFreezeRequests(ctx, "111111")
	if len(reqs) != 1 {
		t.Fatalf("expected a single request per nickname, got %d", len(reqs))
	}

	// Deleting an absent request is a no-op, not an error.
	if err := ms.DeleteFreezeRequest(ctx, "111111", "nobody"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ms.DeleteFreezeRequest(ctx, "111111", "alice"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	reqs, _ = ms.ListFreezeRequests(ctx, "111111")
	if len(reqs) != 0 {
		t.Errorf("expected empty barrier, got %+v", reqs)
	}
}

func TestTransactions_AppendOrderPerPlayer(t *testing.T) {
	ms := store.NewMemoryStore()
	seedRoom(t, ms, "111111")

	for i, kind := range []model.TradeKind{model.TradeBuy, model.TradeSell} {
		tx := &model.Transaction{ID: string(rune('a' + i)), Day: 70 + i, Kind: kind}
		if err := ms.InsertTransaction(ctx, "111111", "alice", tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	ms.InsertTransaction(ctx, "111111", "bob", &model.Transaction{ID: "z", Kind: model.TradeBuy})

	txs, err := ms.ListTransactions(ctx, "111111", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions for alice, got %d", len(txs))
	}
	if txs[0].Kind != model.TradeBuy || txs[1].Kind != model.TradeSell {
		t.Errorf("expected chronological order, got %s then %s", txs[0].Kind, txs[1].Kind)
	}
}
