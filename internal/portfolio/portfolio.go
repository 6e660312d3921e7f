// Package portfolio implements the position accounting state machine: cash,
// fractional units, weighted-average cost, the trailing stop-loss high-water
// mark, and the append-only transaction ledger.
//
// Expected edge conditions (bad amounts, overselling) are rejected with
// sentinel errors and leave state untouched; nothing here panics.
// All monetary values use shopspring/decimal, never float64.
package portfolio

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

var (
	// ErrInvalidAmount is returned for non-positive or over-cash buy amounts.
	ErrInvalidAmount = errors.New("portfolio: invalid trade amount")

	// ErrInvalidUnits is returned for non-positive or over-held sell units.
	ErrInvalidUnits = errors.New("portfolio: invalid sell units")
)

var (
	// UnitEpsilon snaps residual fractional units to zero after a sell.
	UnitEpsilon = decimal.NewFromFloat(0.0001)

	// CloseTolerance absorbs floating-point drift from fractional-unit buys:
	// selling up to this many units more than held is treated as a full close.
	CloseTolerance = decimal.NewFromFloat(0.1)
)

var hundred = decimal.NewFromInt(100)

// Engine is a single player's portfolio state machine. It is not safe for
// concurrent use; each participant owns exactly one instance.
type Engine struct {
	initialCash decimal.Decimal
	stopLossPct decimal.Decimal // percent below the post-entry high

	cash       decimal.Decimal
	units      decimal.Decimal
	avgCost    decimal.Decimal
	highestNAV decimal.Decimal // post-entry high; trails upward only
	warning    bool

	ledger []model.Transaction
}

// NewEngine creates a flat portfolio with the given starting cash and
// stop-loss percent (e.g. 10 for a 10% trailing stop).
func NewEngine(initialCash, stopLossPct decimal.Decimal) *Engine {
	return &Engine{
		initialCash: initialCash,
		stopLossPct: stopLossPct,
		cash:        initialCash,
	}
}

// Buy spends amount of cash at the given price. Rejected with
// ErrInvalidAmount if amount is not positive or exceeds available cash.
// The caller is responsible for consuming the current day's tick afterwards.
func (e *Engine) Buy(day int, price, amount decimal.Decimal) (*model.Transaction, error) {
	if !price.IsPositive() || !amount.IsPositive() || amount.GreaterThan(e.cash) {
		return nil, ErrInvalidAmount
	}

	bought := amount.Div(price)

	// Running weighted average across multiple buys, not per-trade overwrite.
	e.avgCost = e.units.Mul(e.avgCost).Add(amount).Div(e.units.Add(bought))

	if e.units.IsZero() {
		// Entry into a flat position starts a fresh high-water mark.
		e.highestNAV = price
	}

	e.units = e.units.Add(bought)
	e.cash = e.cash.Sub(amount)

	tx := e.append(day, model.TradeBuy, price, bought, amount, nil)
	return tx, nil
}

// Sell liquidates the given number of units at price. Requests exceeding the
// held units by less than CloseTolerance are treated as a full close;
// anything beyond that is rejected with ErrInvalidUnits.
func (e *Engine) Sell(day int, price, units decimal.Decimal) (*model.Transaction, error) {
	if !price.IsPositive() || !units.IsPositive() || !e.units.IsPositive() {
		return nil, ErrInvalidUnits
	}

	sold := units
	if units.GreaterThan(e.units) {
		if units.Sub(e.units).GreaterThanOrEqual(CloseTolerance) {
			return nil, ErrInvalidUnits
		}
		sold = e.units
	}

	proceeds := sold.Mul(price)
	pnl := price.Sub(e.avgCost).Mul(sold)

	e.cash = e.cash.Add(proceeds)
	e.units = e.units.Sub(sold)

	if e.units.LessThan(UnitEpsilon) {
		// Full exit: everything position-scoped resets.
		e.units = decimal.Zero
		e.avgCost = decimal.Zero
		e.highestNAV = decimal.Zero
		e.warning = false
	}

	tx := e.append(day, model.TradeSell, price, sold, proceeds, &pnl)
	return tx, nil
}

// Tick updates the trailing stop-loss state for the day's price. Called
// every day whether or not a trade happened.
func (e *Engine) Tick(price decimal.Decimal) {
	if !e.units.IsPositive() {
		e.highestNAV = decimal.Zero
		e.warning = false
		return
	}
	if price.GreaterThan(e.highestNAV) {
		e.highestNAV = price
	}
	e.warning = price.LessThan(e.StopLossPrice())
}

// StopLossPrice returns the current warning threshold:
// highestNAV × (1 − stopLossPct/100). Zero while flat.
func (e *Engine) StopLossPrice() decimal.Decimal {
	return e.highestNAV.Mul(decimal.NewFromInt(1).Sub(e.stopLossPct.Div(hundred)))
}

// Cash returns available cash.
func (e *Engine) Cash() decimal.Decimal { return e.cash }

// Units returns held units.
func (e *Engine) Units() decimal.Decimal { return e.units }

// AvgCost returns the weighted-average cost. Meaningful only while units > 0.
func (e *Engine) AvgCost() decimal.Decimal { return e.avgCost }

// HighestNAV returns the post-entry high-water mark.
func (e *Engine) HighestNAV() decimal.Decimal { return e.highestNAV }

// StopLossActive reports whether the trailing stop warning is raised.
func (e *Engine) StopLossActive() bool { return e.warning }

// Assets returns total value at the given price: cash + units × price.
func (e *Engine) Assets(price decimal.Decimal) decimal.Decimal {
	return e.cash.Add(e.units.Mul(price))
}

// ROI returns the percent return on initial cash at the given price.
func (e *Engine) ROI(price decimal.Decimal) decimal.Decimal {
	if !e.initialCash.IsPositive() {
		return decimal.Zero
	}
	return e.Assets(price).Sub(e.initialCash).Div(e.initialCash).Mul(hundred)
}

// Ledger returns a copy of the transaction log in chronological order.
func (e *Engine) Ledger() []model.Transaction {
	out := make([]model.Transaction, len(e.ledger))
	copy(out, e.ledger)
	return out
}

func (e *Engine) append(day int, kind model.TradeKind, price, units, amount decimal.Decimal, pnl *decimal.Decimal) *model.Transaction {
	tx := model.Transaction{
		ID:        uuid.New().String(),
		Day:       day,
		Kind:      kind,
		Price:     price,
		Units:     units,
		Amount:    amount,
		CashAfter: e.cash,
		PnL:       pnl,
		Timestamp: time.Now().UTC(),
	}
	e.ledger = append(e.ledger, tx)
	return &tx
}

// Replay applies a recorded ledger to a fresh engine with the same starting
// cash. Replaying the full log reproduces the final cash/units/avgCost.
func Replay(initialCash, stopLossPct decimal.Decimal, txs []model.Transaction) (*Engine, error) {
	e := NewEngine(initialCash, stopLossPct)
	for _, tx := range txs {
		var err error
		switch tx.Kind {
		case model.TradeBuy:
			_, err = e.Buy(tx.Day, tx.Price, tx.Amount)
		case model.TradeSell:
			_, err = e.Sell(tx.Day, tx.Price, tx.Units)
		}
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}
