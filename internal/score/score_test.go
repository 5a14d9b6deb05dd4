package score

import (
	"testing"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		q    protocol.QuoteResponse
		risk RiskSignal
		want float64
	}{
		{
			name: "full coverage cheap quote maxes out",
			q:    protocol.QuoteResponse{OK: true, CoverageRatio: 1.0, TotalCost: 500},
			want: 1.0, // 0.6*1 + 0.4*clamp(2000/500)=0.4*1
		},
		{
			name: "price score scales above reference cost",
			q:    protocol.QuoteResponse{OK: true, CoverageRatio: 1.0, TotalCost: 4000},
			want: 0.8, // 0.6 + 0.4*0.5
		},
		{
			name: "zero cost treated as 1.0 baseline",
			q:    protocol.QuoteResponse{OK: true, CoverageRatio: 0.5, TotalCost: 0},
			want: 0.7, // 0.3 + 0.4*clamp(2000/1)
		},
		{
			name: "risk penalty subtracts",
			q:    protocol.QuoteResponse{OK: true, CoverageRatio: 1.0, TotalCost: 500},
			risk: RiskSignal{RoadBlockCount: 5, WeatherSeverity: 2}, // 0.2 + 0.12
			want: 0.68,
		},
		{
			name: "score floors at zero",
			q:    protocol.QuoteResponse{OK: true, CoverageRatio: 0.1, TotalCost: 100000},
			risk: RiskSignal{RoadBlockCount: 50},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quote(tt.q, tt.risk)
			if got != tt.want {
				t.Errorf("Quote() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("score %v outside [0,1]", got)
			}
		})
	}
}

func TestRiskPenaltyNonNegative(t *testing.T) {
	r := RiskSignal{RoadBlockCount: 0, WeatherSeverity: -3}
	if p := r.Penalty(); p < 0 {
		t.Errorf("Penalty() = %v, want >= 0", p)
	}
}

func TestQuoteDeterministic(t *testing.T) {
	q := protocol.QuoteResponse{OK: true, CoverageRatio: 0.731, TotalCost: 1234.56}
	first := Quote(q, RiskSignal{RoadBlockCount: 1})
	for i := 0; i < 100; i++ {
		if got := Quote(q, RiskSignal{RoadBlockCount: 1}); got != first {
			t.Fatalf("score varies across runs: %v vs %v", got, first)
		}
	}
}
