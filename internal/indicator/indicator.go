// Package indicator computes moving averages, volatility bands, and
// classified crossover signals from a price series.
//
// Every function here is total and side-effect-free: insufficient history is
// represented as a nil value or an absent signal, never an error. All
// arithmetic uses shopspring/decimal.
package indicator

import (
	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/series"
)

// Standard windows: the "month line" and the "season line".
const (
	WindowMA20 = 20
	WindowMA60 = 60

	// slopeLookback is how far back the season-line slope reference sits.
	slopeLookback = 10

	// minCrossIndex is the earliest index at which crossovers are considered.
	minCrossIndex = 10
)

// Classifier thresholds. Empirically chosen game-balance constants, including
// the asymmetry between GOLD and DEATH; changing them changes the game's
// difficulty curve.
var (
	trendThreshold = decimal.NewFromFloat(0.0015) // season-line slope, 0.15%
	biasThreshold  = decimal.NewFromFloat(0.02)   // price deviation from MA60
	fastThreshold  = decimal.NewFromFloat(0.005)  // month-line slope
)

// River band envelope around MA60.
var (
	riverTopFactor    = decimal.NewFromFloat(1.10)
	riverBottomFactor = decimal.NewFromFloat(0.90)
)

// CrossKind identifies the direction of an MA20/MA60 crossover.
type CrossKind string

const (
	CrossGold  CrossKind = "GOLD"  // MA20 crosses above MA60
	CrossDeath CrossKind = "DEATH" // MA20 crosses below MA60
)

// Confidence tiers a crossover as trend-confirmed or noise.
type Confidence string

const (
	ConfidenceSolid  Confidence = "SOLID"  // genuine trend inflection
	ConfidenceHollow Confidence = "HOLLOW" // chop; informational only
)

// CrossSignal is a classified trend-reversal event.
type CrossSignal struct {
	Kind       CrossKind  `json:"kind"`
	Confidence Confidence `json:"confidence"`
}

// Snapshot is the full indicator state at one index. Fields are nil when
// there is not enough history to compute them. Never persisted.
type Snapshot struct {
	MA20        *decimal.Decimal `json:"ma20"`
	MA60        *decimal.Decimal `json:"ma60"`
	RiverTop    *decimal.Decimal `json:"river_top"`
	RiverBottom *decimal.Decimal `json:"river_bottom"`
	Cross       *CrossSignal     `json:"cross_signal"`
}

// MA computes the simple moving average of the w points ending at index i.
// Returns nil if i < w or any sampled point is invalid; a partial average is
// never substituted.
func MA(s *series.PriceSeries, i, w int) *decimal.Decimal {
	if w <= 0 || i < w {
		return nil
	}
	sum := decimal.Zero
	for j := i - w + 1; j <= i; j++ {
		nav, ok := s.NAV(j)
		if !ok {
			return nil
		}
		sum = sum.Add(nav)
	}
	avg := sum.Div(decimal.NewFromInt(int64(w)))
	return &avg
}

// River returns the ±10% volatility band around MA60 at index i.
// Both bounds are nil whenever MA60 is nil.
func River(s *series.PriceSeries, i int) (top, bottom *decimal.Decimal) {
	ma60 := MA(s, i, WindowMA60)
	if ma60 == nil {
		return nil, nil
	}
	t := ma60.Mul(riverTopFactor)
	b := ma60.Mul(riverBottomFactor)
	return &t, &b
}

// DetectCross detects and classifies an MA20/MA60 crossover at index i.
// Returns nil when no crossover occurs, when any required MA value is
// undefined, or when the 10-day-prior slope reference is unavailable;
// a substitute reference index is never guessed.
func DetectCross(s *series.PriceSeries, i int) *CrossSignal {
	if i <= minCrossIndex {
		return nil
	}

	ma20 := MA(s, i, WindowMA20)
	ma60 := MA(s, i, WindowMA60)
	ma20Prev := MA(s, i-1, WindowMA20)
	ma60Prev := MA(s, i-1, WindowMA60)
	if ma20 == nil || ma60 == nil || ma20Prev == nil || ma60Prev == nil {
		return nil
	}

	var kind CrossKind
	switch {
	case ma20Prev.LessThanOrEqual(*ma60Prev) && ma20.GreaterThan(*ma60):
		kind = CrossGold
	case ma20Prev.GreaterThanOrEqual(*ma60Prev) && ma20.LessThan(*ma60):
		kind = CrossDeath
	default:
		return nil
	}

	ma60Ref := MA(s, i-slopeLookback, WindowMA60)
	if ma60Ref == nil {
		return nil
	}
	nav, ok := s.NAV(i)
	if !ok {
		return nil
	}

	slope20 := ma20.Sub(*ma20Prev).Div(*ma20Prev)
	slope60 := ma60.Sub(*ma60Ref).Div(*ma60Ref)
	bias60 := nav.Sub(*ma60).Div(*ma60)

	return &CrossSignal{Kind: kind, Confidence: classify(kind, slope20, slope60, bias60)}
}

// classify applies the SOLID/HOLLOW tiering. The GOLD and DEATH filters are
// deliberately asymmetric: an upside confirmation can also come from price
// running ahead of the season line, a downside one cannot.
func classify(kind CrossKind, slope20, slope60, bias60 decimal.Decimal) Confidence {
	if kind == CrossGold {
		switch {
		case slope60.GreaterThan(trendThreshold):
			return ConfidenceSolid
		case slope60.IsPositive() && bias60.GreaterThan(biasThreshold):
			return ConfidenceSolid
		case slope20.GreaterThan(fastThreshold):
			return ConfidenceSolid
		}
		return ConfidenceHollow
	}

	switch {
	case slope60.LessThan(trendThreshold.Neg()):
		return ConfidenceSolid
	case slope20.LessThan(fastThreshold.Neg()):
		return ConfidenceSolid
	}
	return ConfidenceHollow
}

// At computes the complete indicator snapshot for index i.
func At(s *series.PriceSeries, i int) Snapshot {
	top, bottom := River(s, i)
	return Snapshot{
		MA20:        MA(s, i, WindowMA20),
		MA60:        MA(s, i, WindowMA60),
		RiverTop:    top,
		RiverBottom: bottom,
		Cross:       DetectCross(s, i),
	}
}
