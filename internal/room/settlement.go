package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/metrics"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// DefaultSettleBuffer is how long settlement waits before reading back
// player state. ROI updates are asynchronous, independently-written
// documents; settling immediately risks crowning a winner from stale data.
const DefaultSettleBuffer = 2 * time.Second

// missingROISentinel ranks players whose record has no ROI field last.
var missingROISentinel = decimal.NewFromInt(-999)

// pickWinner returns the player with maximum ROI. Ties are broken by
// first-seen order, which is the order the store returns. Returns nil when
// the room is empty.
func pickWinner(players []model.PlayerState) *model.Winner {
	var winner *model.Winner
	for _, p := range players {
		roi := missingROISentinel
		if p.ROI != nil {
			roi = *p.ROI
		}
		if winner == nil || roi.GreaterThan(winner.ROI) {
			winner = &model.Winner{Nickname: p.Nickname, ROI: roi}
		}
	}
	return winner
}

// endGame settles the room: stop all timers and pending countdown state
// immediately, wait the settlement buffer, then read back every player's
// latest state and publish the winner with the final ENDED status.
func (s *Service) endGame(ctx context.Context, code string) error {
	sess, ok := s.session(code)
	if !ok {
		return fmt.Errorf("room %s: no active session", code)
	}

	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Status == model.RoomEnded {
		return nil // already settled
	}

	// Timers first, so no advance can race the settlement read-back.
	sess.stopTimers()
	if err := s.store.DeleteAllFreezeRequests(ctx, code); err != nil {
		slog.Warn("failed to clear freeze requests on end", "room", code, "err", err)
	}

	// Buffer: player ROI writes may still be in flight.
	select {
	case <-time.After(s.settleBuffer):
	case <-ctx.Done():
		return ctx.Err()
	}

	players, err := s.store.ListPlayers(ctx, code)
	if err != nil {
		return fmt.Errorf("settlement read-back: %w", err)
	}

	room.Status = model.RoomEnded
	room.FinalWinner = pickWinner(players)
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		return fmt.Errorf("publish settlement: %w", err)
	}
	metrics.ActiveRooms.Dec()

	ev := Event{Type: "game_ended", Room: code, Day: sess.clk.Day()}
	if room.FinalWinner != nil {
		ev.Winner = room.FinalWinner.Nickname
		ev.WinnerROI = room.FinalWinner.ROI.String()
	}
	s.hub.Broadcast(ev)

	slog.Info("room settled",
		"room", code,
		"players", len(players),
		"winner", ev.Winner,
		"winner_roi", ev.WinnerROI,
	)
	return nil
}
