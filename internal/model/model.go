// Package model defines the core domain types shared across the game server.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomStatus is the lifecycle state of a room. Transitions are host-driven
// and strictly WAITING → PLAYING → ENDED (reset returns to WAITING).
type RoomStatus string

const (
	RoomWaiting RoomStatus = "WAITING"
	RoomPlaying RoomStatus = "PLAYING"
	RoomEnded   RoomStatus = "ENDED"
)

// TradeKind distinguishes ledger entries.
type TradeKind string

const (
	TradeBuy  TradeKind = "BUY"
	TradeSell TradeKind = "SELL"
)

// Indicator toggle names stored on the room document.
const (
	ToggleMA20  = "MA20"
	ToggleMA60  = "MA60"
	ToggleRiver = "RIVER"
	ToggleTrend = "TREND"
)

// PricePoint is one day of the replayed NAV series.
type PricePoint struct {
	Index int             `json:"index" db:"idx"`
	Date  time.Time       `json:"date" db:"date"`
	NAV   decimal.Decimal `json:"nav" db:"nav"`
}

// Transaction is an immutable record of an executed trade.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	Day       int             `json:"day" db:"day"`
	Kind      TradeKind       `json:"kind" db:"kind"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Units     decimal.Decimal `json:"units" db:"units"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CashAfter decimal.Decimal `json:"cash_after" db:"cash_after"`
	// PnL is set only for SELL: (price − avgCost at sale time) × units sold.
	PnL       *decimal.Decimal `json:"pnl,omitempty" db:"pnl"`
	Timestamp time.Time        `json:"timestamp" db:"timestamp"`
}

// Winner is the settled result published on the room document.
type Winner struct {
	Nickname string          `json:"nickname"`
	ROI      decimal.Decimal `json:"roi"`
}

// RoomState is the shared room document. Exactly one writer role (the host)
// mutates status/day/settings fields.
type RoomState struct {
	Code             string          `json:"code" db:"code"` // 6-digit numeric join code
	Status           RoomStatus      `json:"status" db:"status"`
	CurrentDay       int             `json:"current_day" db:"current_day"`
	StartDay         int             `json:"start_day" db:"start_day"`
	FeeRate          decimal.Decimal `json:"fee_rate" db:"fee_rate"`
	IndicatorToggles []string        `json:"indicator_toggles" db:"indicator_toggles"`
	GameEnd          *time.Time      `json:"game_end,omitempty" db:"game_end"`
	TimeOffsetYears  int             `json:"time_offset_years" db:"time_offset_years"`
	FinalWinner      *Winner         `json:"final_winner,omitempty" db:"final_winner"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// PlayerState is the per-participant document, written only by that player's
// session and read by the host/spectator aggregation.
type PlayerState struct {
	Nickname  string           `json:"nickname" db:"nickname"`
	Cash      decimal.Decimal  `json:"cash" db:"cash"`
	Units     decimal.Decimal  `json:"units" db:"units"`
	AvgCost   decimal.Decimal  `json:"avg_cost" db:"avg_cost"`
	ROI       *decimal.Decimal `json:"roi,omitempty" db:"roi"` // percent; nil until the first async write lands
	Assets    decimal.Decimal  `json:"assets" db:"assets"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// FreezeRequest is an ephemeral advisory lock document. While at least one
// exists, day advancement is frozen for the whole room. CreatedAt is a
// server-assigned timestamp so countdown math is immune to client clock skew.
type FreezeRequest struct {
	Nickname  string    `json:"nickname" db:"nickname"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
