package portfolio_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/portfolio"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newEngine() *portfolio.Engine {
	return portfolio.NewEngine(d(1000000), d(10))
}

// --- Buy tests ---

func TestBuy_InitialPosition(t *testing.T) {
	e := newEngine()

	tx, err := e.Buy(0, d(100), d(500000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !e.Units().Equal(d(5000)) {
		t.Errorf("expected 5000 units, got %s", e.Units())
	}
	if !e.AvgCost().Equal(d(100)) {
		t.Errorf("expected avg cost 100, got %s", e.AvgCost())
	}
	if !e.Cash().Equal(d(500000)) {
		t.Errorf("expected cash 500000, got %s", e.Cash())
	}
	if !e.HighestNAV().Equal(d(100)) {
		t.Errorf("entry should start the high-water mark at 100, got %s", e.HighestNAV())
	}
	if tx.Kind != "BUY" {
		t.Errorf("expected BUY transaction, got %s", tx.Kind)
	}
	if !tx.CashAfter.Equal(d(500000)) {
		t.Errorf("expected cash_after 500000, got %s", tx.CashAfter)
	}
	if tx.PnL != nil {
		t.Error("buy transactions carry no pnl")
	}
	if tx.ID == "" {
		t.Error("expected non-empty transaction id")
	}
}

func TestBuy_WeightedAverageCost(t *testing.T) {
	e := newEngine()

	if _, err := e.Buy(0, d(100), d(500000)); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if _, err := e.Buy(1, d(150), d(300000)); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	// 5000 units @100 plus 2000 units @150 → 800000 spent over 7000 units.
	if !e.Units().Equal(d(7000)) {
		t.Fatalf("expected 7000 units, got %s", e.Units())
	}
	expected := d(800000).Div(d(7000))
	if !e.AvgCost().Equal(expected) {
		t.Errorf("expected avg cost %s, got %s", expected, e.AvgCost())
	}
	if !e.Cash().Equal(d(200000)) {
		t.Errorf("expected cash 200000, got %s", e.Cash())
	}
}

func TestBuy_RejectsInvalidAmounts(t *testing.T) {
	e := newEngine()

	tests := []struct {
		name   string
		price  decimal.Decimal
		amount decimal.Decimal
	}{
		{"zero amount", d(100), decimal.Zero},
		{"negative amount", d(100), d(-500)},
		{"over cash", d(100), d(1000001)},
		{"zero price", decimal.Zero, d(500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Buy(0, tt.price, tt.amount); err != portfolio.ErrInvalidAmount {
				t.Errorf("expected ErrInvalidAmount, got %v", err)
			}
		})
	}

	// Rejections leave state untouched.
	if !e.Cash().Equal(d(1000000)) || !e.Units().IsZero() {
		t.Errorf("rejected buys must not mutate state: cash=%s units=%s", e.Cash(), e.Units())
	}
}

// --- Sell tests ---

func TestSell_RealizedPnL(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))

	tx, err := e.Sell(1, d(120), d(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !e.Cash().Equal(d(740000)) {
		t.Errorf("expected cash 740000, got %s", e.Cash())
	}
	if !e.Units().Equal(d(3000)) {
		t.Errorf("expected 3000 units, got %s", e.Units())
	}
	if tx.PnL == nil {
		t.Fatal("sell transactions carry realized pnl")
	}
	if !tx.PnL.Equal(d(40000)) {
		t.Errorf("expected pnl 40000, got %s", tx.PnL)
	}
	// Partial sells keep the average cost.
	if !e.AvgCost().Equal(d(100)) {
		t.Errorf("partial sell should keep avg cost 100, got %s", e.AvgCost())
	}
}

func TestSell_FullCloseResetsPosition(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))
	e.Tick(d(150))

	if _, err := e.Sell(1, d(120), d(5000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !e.Units().IsZero() {
		t.Errorf("expected 0 units, got %s", e.Units())
	}
	if !e.AvgCost().IsZero() {
		t.Errorf("full close should reset avg cost, got %s", e.AvgCost())
	}
	if !e.HighestNAV().IsZero() {
		t.Errorf("full close should reset the high-water mark, got %s", e.HighestNAV())
	}
	if e.StopLossActive() {
		t.Error("full close should clear the stop-loss warning")
	}
}

func TestSell_CloseTolerance(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))

	// Overselling by less than the tolerance is a full close at the held size.
	tx, err := e.Sell(1, d(100), d(5000.05))
	if err != nil {
		t.Fatalf("within-tolerance oversell should close the position: %v", err)
	}
	if !tx.Units.Equal(d(5000)) {
		t.Errorf("expected 5000 units sold, got %s", tx.Units)
	}
	if !e.Units().IsZero() {
		t.Errorf("expected flat position, got %s units", e.Units())
	}

	// At or beyond the tolerance the request is rejected outright.
	e2 := newEngine()
	e2.Buy(0, d(100), d(500000))
	if _, err := e2.Sell(1, d(100), d(5000.1)); err != portfolio.ErrInvalidUnits {
		t.Errorf("expected ErrInvalidUnits for oversell beyond tolerance, got %v", err)
	}
	if !e2.Units().Equal(d(5000)) {
		t.Errorf("rejected sell must not mutate units, got %s", e2.Units())
	}
}

func TestSell_RejectsWhenFlat(t *testing.T) {
	e := newEngine()
	if _, err := e.Sell(0, d(100), d(0.05)); err != portfolio.ErrInvalidUnits {
		t.Errorf("expected ErrInvalidUnits for flat position, got %v", err)
	}
	if _, err := e.Sell(0, d(100), decimal.Zero); err != portfolio.ErrInvalidUnits {
		t.Errorf("expected ErrInvalidUnits for zero units, got %v", err)
	}
}

// --- Trailing stop tests ---

func TestTrailingStop_WarnAndClear(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))

	e.Tick(d(150))
	if !e.HighestNAV().Equal(d(150)) {
		t.Fatalf("expected high-water mark 150, got %s", e.HighestNAV())
	}
	if !e.StopLossPrice().Equal(d(135)) {
		t.Fatalf("expected stop-loss price 135, got %s", e.StopLossPrice())
	}
	if e.StopLossActive() {
		t.Error("warning should be off at the high")
	}

	e.Tick(d(134))
	if !e.StopLossActive() {
		t.Error("expected warning below the stop-loss price")
	}
	if !e.HighestNAV().Equal(d(150)) {
		t.Errorf("high-water mark trails upward only, got %s", e.HighestNAV())
	}

	// Recovery above the threshold clears the warning without manual action.
	e.Tick(d(136))
	if e.StopLossActive() {
		t.Error("expected warning cleared above the stop-loss price")
	}

	e.Tick(d(160))
	if !e.HighestNAV().Equal(d(160)) {
		t.Errorf("expected high-water mark 160, got %s", e.HighestNAV())
	}
	if !e.StopLossPrice().Equal(d(144)) {
		t.Errorf("expected stop-loss price 144, got %s", e.StopLossPrice())
	}
}

func TestTick_FlatPositionStaysQuiet(t *testing.T) {
	e := newEngine()
	e.Tick(d(90))
	if e.StopLossActive() {
		t.Error("flat position should never warn")
	}
	if !e.HighestNAV().IsZero() {
		t.Errorf("flat position carries no high-water mark, got %s", e.HighestNAV())
	}
}

func TestBuyAfterFullClose_NewHighWaterMark(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))
	e.Tick(d(150))
	e.Sell(1, d(150), d(5000))

	e.Buy(2, d(80), d(400000))
	if !e.HighestNAV().Equal(d(80)) {
		t.Errorf("re-entry should start a fresh high-water mark at 80, got %s", e.HighestNAV())
	}
}

// --- Valuation tests ---

func TestAssetsAndROI(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))

	// 500000 cash + 5000 units × 120.
	if !e.Assets(d(120)).Equal(d(1100000)) {
		t.Errorf("expected assets 1100000, got %s", e.Assets(d(120)))
	}
	if !e.ROI(d(120)).Equal(d(10)) {
		t.Errorf("expected roi 10%%, got %s", e.ROI(d(120)))
	}
	if !e.ROI(d(100)).IsZero() {
		t.Errorf("expected roi 0%% at cost, got %s", e.ROI(d(100)))
	}
}

// --- Ledger tests ---

func TestLedger_ReplayReproducesState(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(500000))
	e.Buy(1, d(150), d(300000))
	e.Sell(2, d(140), d(4000))

	replayed, err := portfolio.Replay(d(1000000), d(10), e.Ledger())
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if !replayed.Cash().Equal(e.Cash()) {
		t.Errorf("replayed cash %s != %s", replayed.Cash(), e.Cash())
	}
	if !replayed.Units().Equal(e.Units()) {
		t.Errorf("replayed units %s != %s", replayed.Units(), e.Units())
	}
	if !replayed.AvgCost().Equal(e.AvgCost()) {
		t.Errorf("replayed avg cost %s != %s", replayed.AvgCost(), e.AvgCost())
	}
}

func TestLedger_ChronologicalAndCopied(t *testing.T) {
	e := newEngine()
	e.Buy(0, d(100), d(100000))
	e.Sell(1, d(110), d(1000))

	ledger := e.Ledger()
	if len(ledger) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ledger))
	}
	if ledger[0].Kind != "BUY" || ledger[1].Kind != "SELL" {
		t.Errorf("expected BUY then SELL, got %s then %s", ledger[0].Kind, ledger[1].Kind)
	}

	// Mutating the copy must not reach the engine's log.
	ledger[0].Day = 99
	if e.Ledger()[0].Day != 0 {
		t.Error("Ledger should return a defensive copy")
	}
}
