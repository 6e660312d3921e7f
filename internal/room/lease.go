// Package room implements the multiplayer coordination layer: the room
// status machine, the advisory trade-freeze barrier, auto-advance control,
// and end-of-game settlement, exposed over HTTP.
package room

import (
	"time"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// FreezeWindowSeconds is the display countdown window for a trade freeze.
// It is display-only: the barrier releases on request removal, never on the
// countdown alone.
const FreezeWindowSeconds = 15

// Frozen reports whether the day-advance barrier is up: any outstanding
// request freezes advancement for the whole room.
func Frozen(reqs []model.FreezeRequest) bool {
	return len(reqs) > 0
}

// Countdown returns the displayed seconds remaining, derived from the most
// recent request's server-assigned timestamp so client clock skew cannot
// distort it: max(0, 15 − floor(now − createdAt)).
func Countdown(reqs []model.FreezeRequest, now time.Time) int {
	if len(reqs) == 0 {
		return 0
	}
	latest := reqs[0].CreatedAt
	for _, fr := range reqs[1:] {
		if fr.CreatedAt.After(latest) {
			latest = fr.CreatedAt
		}
	}
	elapsed := int(now.Sub(latest).Seconds())
	if remaining := FreezeWindowSeconds - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
