package indicator_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/indicator"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/series"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testStart = time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)

// loadSeries builds a series from explicit NAVs.
func loadSeries(t *testing.T, navs []decimal.Decimal) *series.PriceSeries {
	t.Helper()
	ps, err := series.Load(navs, testStart)
	if err != nil {
		t.Fatalf("failed to load series: %v", err)
	}
	return ps
}

// flatSeries returns n days pinned at nav.
func flatSeries(t *testing.T, n int, nav decimal.Decimal) *series.PriceSeries {
	t.Helper()
	navs := make([]decimal.Decimal, n)
	for i := range navs {
		navs[i] = nav
	}
	return loadSeries(t, navs)
}

// trendSeries builds a two-phase piecewise-linear walk: lead days stepping by
// leadStep from base, then tail days stepping by tailStep. Linear segments
// keep every NAV exact in decimal, so MA comparisons have no rounding slack.
func trendSeries(t *testing.T, lead int, base, leadStep decimal.Decimal, tail int, tailStep decimal.Decimal) *series.PriceSeries {
	t.Helper()
	navs := make([]decimal.Decimal, 0, lead+tail)
	for i := 0; i < lead; i++ {
		navs = append(navs, base.Add(leadStep.Mul(decimal.NewFromInt(int64(i)))))
	}
	last := navs[len(navs)-1]
	for k := 1; k <= tail; k++ {
		navs = append(navs, last.Add(tailStep.Mul(decimal.NewFromInt(int64(k)))))
	}
	return loadSeries(t, navs)
}

// scanCrosses collects every classified crossover in the series.
func scanCrosses(s *series.PriceSeries) map[int]indicator.CrossSignal {
	found := make(map[int]indicator.CrossSignal)
	for i := 0; i < s.Len(); i++ {
		if sig := indicator.DetectCross(s, i); sig != nil {
			found[i] = *sig
		}
	}
	return found
}

// --- Moving average tests ---

func TestMA_NilBelowWindow(t *testing.T) {
	s := flatSeries(t, 30, d(100))

	if got := indicator.MA(s, 19, 20); got != nil {
		t.Errorf("expected nil MA20 at index 19, got %s", got)
	}
	got := indicator.MA(s, 20, 20)
	if got == nil {
		t.Fatal("expected MA20 defined at index 20")
	}
	if !got.Equal(d(100)) {
		t.Errorf("expected MA20=100 on flat series, got %s", got)
	}
}

func TestMA_InvalidSamplePoisonsWindow(t *testing.T) {
	navs := make([]decimal.Decimal, 25)
	for i := range navs {
		navs[i] = d(100)
	}
	navs[5] = decimal.Zero // bad data point
	s := loadSeries(t, navs)

	// A window covering the bad point yields nil, never a partial average.
	if got := indicator.MA(s, 24, 20); got != nil {
		t.Errorf("expected nil MA over invalid sample, got %s", got)
	}
	// A window past it is unaffected.
	got := indicator.MA(s, 24, 10)
	if got == nil || !got.Equal(d(100)) {
		t.Errorf("expected MA10=100 past the invalid sample, got %v", got)
	}
}

func TestMA_OutOfRange(t *testing.T) {
	s := flatSeries(t, 30, d(100))
	if got := indicator.MA(s, 100, 20); got != nil {
		t.Errorf("expected nil MA past the series end, got %s", got)
	}
	if got := indicator.MA(s, 20, 0); got != nil {
		t.Errorf("expected nil MA for zero window, got %s", got)
	}
}

// --- River band tests ---

func TestRiver_BandAroundMA60(t *testing.T) {
	s := flatSeries(t, 80, d(100))

	top, bottom := indicator.River(s, 60)
	if top == nil || bottom == nil {
		t.Fatal("expected river band defined at index 60")
	}
	if !top.Equal(d(110)) {
		t.Errorf("expected river top 110, got %s", top)
	}
	if !bottom.Equal(d(90)) {
		t.Errorf("expected river bottom 90, got %s", bottom)
	}
}

func TestRiver_NilWithoutMA60(t *testing.T) {
	s := flatSeries(t, 80, d(100))
	top, bottom := indicator.River(s, 59)
	if top != nil || bottom != nil {
		t.Errorf("expected nil band below warmup, got top=%v bottom=%v", top, bottom)
	}
}

// --- Crossover detection tests ---

func TestDetectCross_GoldSolidOnSharpRally(t *testing.T) {
	// Slow decline, then a +3.0/day rally: the month line snaps above the
	// season line while the season line itself is already turning up.
	s := trendSeries(t, 70, d(100), d(-0.2), 40, d(3))

	found := scanCrosses(s)
	if len(found) != 1 {
		t.Fatalf("expected exactly one signal, got %d: %v", len(found), found)
	}
	sig, ok := found[78]
	if !ok {
		t.Fatalf("expected the signal at index 78, got %v", found)
	}
	if sig.Kind != indicator.CrossGold {
		t.Errorf("expected GOLD, got %s", sig.Kind)
	}
	if sig.Confidence != indicator.ConfidenceSolid {
		t.Errorf("expected SOLID, got %s", sig.Confidence)
	}
}

func TestDetectCross_GoldHollowOnFeebleDrift(t *testing.T) {
	// Shallow decline, then a +0.012/day crawl: the lines cross but neither
	// slope nor bias confirms a trend.
	s := trendSeries(t, 70, d(100), d(-0.05), 60, d(0.012))

	found := scanCrosses(s)
	if len(found) != 1 {
		t.Fatalf("expected exactly one signal, got %d: %v", len(found), found)
	}
	sig, ok := found[107]
	if !ok {
		t.Fatalf("expected the signal at index 107, got %v", found)
	}
	if sig.Kind != indicator.CrossGold || sig.Confidence != indicator.ConfidenceHollow {
		t.Errorf("expected GOLD/HOLLOW, got %s/%s", sig.Kind, sig.Confidence)
	}
}

func TestDetectCross_DeathSolidOnSelloff(t *testing.T) {
	s := trendSeries(t, 70, d(100), d(0.2), 40, d(-3))

	found := scanCrosses(s)
	if len(found) != 1 {
		t.Fatalf("expected exactly one signal, got %d: %v", len(found), found)
	}
	sig, ok := found[78]
	if !ok {
		t.Fatalf("expected the signal at index 78, got %v", found)
	}
	if sig.Kind != indicator.CrossDeath || sig.Confidence != indicator.ConfidenceSolid {
		t.Errorf("expected DEATH/SOLID, got %s/%s", sig.Kind, sig.Confidence)
	}
}

func TestDetectCross_DeathHollowOnSlowDrip(t *testing.T) {
	// Mirror of the feeble gold drift. The season line is still gently rising
	// at the cross, so neither downside confirmation fires.
	s := trendSeries(t, 70, d(100), d(0.05), 60, d(-0.012))

	found := scanCrosses(s)
	if len(found) != 1 {
		t.Fatalf("expected exactly one signal, got %d: %v", len(found), found)
	}
	sig, ok := found[107]
	if !ok {
		t.Fatalf("expected the signal at index 107, got %v", found)
	}
	if sig.Kind != indicator.CrossDeath || sig.Confidence != indicator.ConfidenceHollow {
		t.Errorf("expected DEATH/HOLLOW, got %s/%s", sig.Kind, sig.Confidence)
	}
}

func TestDetectCross_SuppressedWithoutSlopeReference(t *testing.T) {
	// A sharp reversal right after the season line first becomes defined:
	// the raw crossover exists, but the 10-day-prior MA60 reference does not,
	// so no signal may be emitted.
	s := trendSeries(t, 61, d(100), d(-0.5), 8, d(6))

	if found := scanCrosses(s); len(found) != 0 {
		t.Errorf("expected no signals without the slope reference, got %v", found)
	}
}

func TestDetectCross_NoCrossOnFlatSeries(t *testing.T) {
	s := flatSeries(t, 120, d(100))
	if found := scanCrosses(s); len(found) != 0 {
		t.Errorf("expected no signals on a flat series, got %v", found)
	}
}

// --- Snapshot tests ---

func TestAt_FullSnapshot(t *testing.T) {
	s := trendSeries(t, 70, d(100), d(-0.2), 40, d(3))

	snap := indicator.At(s, 78)
	if snap.MA20 == nil || snap.MA60 == nil {
		t.Fatal("expected both moving averages defined")
	}
	if snap.RiverTop == nil || snap.RiverBottom == nil {
		t.Fatal("expected river band defined")
	}
	if snap.Cross == nil {
		t.Fatal("expected the crossover signal in the snapshot")
	}
	if snap.Cross.Kind != indicator.CrossGold {
		t.Errorf("expected GOLD cross, got %s", snap.Cross.Kind)
	}
}

func TestAt_EarlyIndexAllNil(t *testing.T) {
	s := flatSeries(t, 120, d(100))

	snap := indicator.At(s, 5)
	if snap.MA20 != nil || snap.MA60 != nil || snap.RiverTop != nil || snap.RiverBottom != nil || snap.Cross != nil {
		t.Errorf("expected an empty snapshot below warmup, got %+v", snap)
	}
}
