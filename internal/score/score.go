// Package score reduces a supplier quote to one comparable number on
// the requester side.
package score

import (
	"math"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

// ReferenceCost normalizes quoted prices: a quote at or below this cost
// earns the full price score.
const ReferenceCost = 2000.0

const (
	coverageWeight = 0.6
	priceWeight    = 0.4
)

// RiskSignal is the external intelligence input folded into scoring.
// The zero value means "no known risk".
type RiskSignal struct {
	RoadBlockCount  int
	WeatherSeverity float64
}

// Penalty converts the signal into a non-negative score deduction.
func (r RiskSignal) Penalty() float64 {
	p := 0.04*float64(r.RoadBlockCount) + 0.06*r.WeatherSeverity
	if p < 0 {
		return 0
	}
	return p
}

// Quote scores an accepting quote. Coverage dominates price 60/40; the
// risk penalty is subtracted from the raw score, floored at zero, and
// the result is rounded to 4 decimals so equal inputs compare equal.
// Rejecting quotes must not be scored; callers filter them first.
func Quote(q protocol.QuoteResponse, risk RiskSignal) float64 {
	baseline := math.Max(q.TotalCost, 1.0)
	priceScore := clamp01(ReferenceCost / baseline)

	raw := coverageWeight*q.CoverageRatio + priceWeight*priceScore
	return round4(math.Max(0, raw-risk.Penalty()))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
