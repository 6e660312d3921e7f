// Package series provides the immutable daily NAV sequence that drives all
// downstream computation, plus a synthetic generator and a historical loader.
//
// NAV values use shopspring/decimal. The generator's internal random-walk
// math runs in float64 and results are converted to decimal immediately.
package series

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// ErrEmptySeries is returned when loading a series with no points.
var ErrEmptySeries = errors.New("series: no price points")

// navScale is the number of decimal places NAVs are quoted at.
const navScale int32 = 4

// PriceSeries is an immutable ordered daily price sequence. It is generated
// or loaded once per session and never mutated afterwards.
type PriceSeries struct {
	points []model.PricePoint
}

// Len returns the number of daily points.
func (s *PriceSeries) Len() int {
	return len(s.points)
}

// At returns the point at index i, or false if i is out of range.
func (s *PriceSeries) At(i int) (model.PricePoint, bool) {
	if i < 0 || i >= len(s.points) {
		return model.PricePoint{}, false
	}
	return s.points[i], true
}

// NAV returns the NAV at index i, or false if i is out of range or the
// stored value is not positive (treated as invalid, never substituted).
func (s *PriceSeries) NAV(i int) (decimal.Decimal, bool) {
	p, ok := s.At(i)
	if !ok || !p.NAV.IsPositive() {
		return decimal.Decimal{}, false
	}
	return p.NAV, true
}

// Slice returns a copy of the points in [from, to), clamped to valid range.
// Callers get their own backing array; the series stays immutable.
func (s *PriceSeries) Slice(from, to int) []model.PricePoint {
	if from < 0 {
		from = 0
	}
	if to > len(s.points) {
		to = len(s.points)
	}
	if from >= to {
		return []model.PricePoint{}
	}
	out := make([]model.PricePoint, to-from)
	copy(out, s.points[from:to])
	return out
}

// Load builds a series from pre-existing NAV values (historical replay).
// Indexes and dates are assigned sequentially from start.
func Load(navs []decimal.Decimal, start time.Time) (*PriceSeries, error) {
	if len(navs) == 0 {
		return nil, ErrEmptySeries
	}
	points := make([]model.PricePoint, len(navs))
	for i, nav := range navs {
		points[i] = model.PricePoint{
			Index: i,
			Date:  start.AddDate(0, 0, i),
			NAV:   nav,
		}
	}
	return &PriceSeries{points: points}, nil
}

// GeneratorConfig shapes the synthetic random walk.
type GeneratorConfig struct {
	Days         int     // number of daily points
	InitialNAV   float64 // starting NAV
	RegimeLength int     // ticks between drift/volatility regime switches
	Seed         int64   // same seed → same series
}

// DefaultGeneratorConfig returns the standard two-year synthetic shape.
func DefaultGeneratorConfig(seed int64) GeneratorConfig {
	return GeneratorConfig{
		Days:         500,
		InitialNAV:   1.0000,
		RegimeLength: 30,
		Seed:         seed,
	}
}

// regime is one drift/volatility phase of the walk. Values are daily.
type regime struct {
	drift float64
	vol   float64
}

// regimes the generator cycles through at random. Mix of bull, bear and
// sideways phases so crossovers and stop-loss events actually occur in play.
var regimes = []regime{
	{drift: 0.0012, vol: 0.008},  // steady bull
	{drift: 0.0030, vol: 0.015},  // euphoric run
	{drift: -0.0010, vol: 0.010}, // slow bleed
	{drift: -0.0035, vol: 0.022}, // panic
	{drift: 0.0000, vol: 0.006},  // sideways chop
}

// Generate produces a deterministic-shape geometric random walk with
// regime-switching drift and volatility every cfg.RegimeLength ticks.
func Generate(cfg GeneratorConfig, start time.Time) *PriceSeries {
	if cfg.Days <= 0 {
		cfg.Days = 500
	}
	if cfg.RegimeLength <= 0 {
		cfg.RegimeLength = 30
	}
	if cfg.InitialNAV <= 0 {
		cfg.InitialNAV = 1.0
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	points := make([]model.PricePoint, cfg.Days)

	nav := cfg.InitialNAV
	cur := regimes[rng.Intn(len(regimes))]

	for i := 0; i < cfg.Days; i++ {
		if i > 0 && i%cfg.RegimeLength == 0 {
			cur = regimes[rng.Intn(len(regimes))]
		}
		if i > 0 {
			// Geometric step: nav *= exp(drift + vol*ε).
			nav *= math.Exp(cur.drift + cur.vol*rng.NormFloat64())
			if nav < 0.0001 {
				nav = 0.0001 // quoted NAVs never reach zero
			}
		}
		points[i] = model.PricePoint{
			Index: i,
			Date:  start.AddDate(0, 0, i),
			NAV:   decimal.NewFromFloat(nav).Round(navScale),
		}
	}

	return &PriceSeries{points: points}
}

// DisplayDate applies the cosmetic year offset used to relabel a historical
// series as a different era. Index arithmetic never uses this.
func DisplayDate(p model.PricePoint, offsetYears int) time.Time {
	return p.Date.AddDate(offsetYears, 0, 0)
}
