package quote

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

var (
	berkeley   = protocol.Geo{Lat: 37.8715, Lon: -122.2730, Label: "123 Main St, Berkeley"}
	losAngeles = protocol.Geo{Lat: 34.0522, Lon: -118.2437, Label: "LA"}
)

func sfDepot() ledger.SupplierConfig {
	return ledger.SupplierConfig{
		SupplierID:    "supply_sf_store_1",
		Lat:           37.78,
		Lon:           -122.42,
		Label:         "SF Depot",
		BaseLeadHours: 1.5,
		RadiusKm:      120,
		DeliveryMode:  "truck",
	}
}

func newEngine(t *testing.T, stock []ledger.Line) (*Engine, ledger.SupplierConfig) {
	t.Helper()
	store := ledger.NewMemoryStore()
	cfg := sfDepot()
	if err := store.EnsureSupplier(context.Background(), cfg); err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}
	if len(stock) > 0 {
		if _, err := store.Restock(context.Background(), cfg.SupplierID, stock); err != nil {
			t.Fatalf("Restock: %v", err)
		}
	}
	return NewEngine(store), cfg
}

func TestQuoteFullCoverage(t *testing.T) {
	eng, cfg := newEngine(t, []ledger.Line{{Name: "blanket", Qty: 500, Unit: "ea", UnitPrice: 10}})

	resp, err := eng.Quote(context.Background(), protocol.QuoteRequest{
		NeedID:      "need_abc123",
		Location:    berkeley,
		Lines:       []protocol.Line{{Name: "blanket", Qty: 100}},
		Priority:    protocol.PriorityMedium,
		MaxEtaHours: 6,
	}, cfg)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if !resp.OK {
		t.Fatalf("quote rejected: %s", resp.Reason)
	}
	if resp.CoverageRatio != 1.0 {
		t.Errorf("coverage = %v, want 1.0", resp.CoverageRatio)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].Qty != 100 {
		t.Errorf("offered lines = %+v, want blanket:100", resp.Lines)
	}
	// medium priority: 100 × $10 × 1.00
	if resp.TotalCost != 1000.00 {
		t.Errorf("total cost = %v, want 1000.00", resp.TotalCost)
	}
	if resp.EtaHours <= cfg.BaseLeadHours || resp.EtaHours > 6 {
		t.Errorf("eta = %v, want within (%v, 6]", resp.EtaHours, cfg.BaseLeadHours)
	}
	if resp.Terms != "delivery:truck;priority:medium" {
		t.Errorf("terms = %q", resp.Terms)
	}
}

func TestQuoteOutOfRadius(t *testing.T) {
	eng, cfg := newEngine(t, []ledger.Line{{Name: "blanket", Qty: 500, UnitPrice: 10}})

	resp, err := eng.Quote(context.Background(), protocol.QuoteRequest{
		NeedID:      "need_far",
		Location:    losAngeles,
		Lines:       []protocol.Line{{Name: "blanket", Qty: 100}},
		Priority:    protocol.PriorityHigh,
		MaxEtaHours: 48,
	}, cfg)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if resp.OK {
		t.Fatal("quote accepted out of radius")
	}
	if !strings.HasPrefix(resp.Reason, "out_of_radius_") || !strings.HasSuffix(resp.Reason, "km") {
		t.Errorf("reason = %q, want out_of_radius_<km>", resp.Reason)
	}
}

func TestQuoteNoCoverage(t *testing.T) {
	eng, cfg := newEngine(t, nil)

	resp, err := eng.Quote(context.Background(), protocol.QuoteRequest{
		NeedID:      "need_empty",
		Location:    berkeley,
		Lines:       []protocol.Line{{Name: "blanket", Qty: 100}},
		Priority:    protocol.PriorityMedium,
		MaxEtaHours: 6,
	}, cfg)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if resp.OK || resp.Reason != "no_coverage" {
		t.Errorf("resp = ok=%v reason=%q, want no_coverage reject", resp.OK, resp.Reason)
	}
}

func TestQuoteEtaExceedsSLA(t *testing.T) {
	eng, cfg := newEngine(t, []ledger.Line{{Name: "blanket", Qty: 500, UnitPrice: 10}})

	resp, err := eng.Quote(context.Background(), protocol.QuoteRequest{
		NeedID:      "need_rush",
		Location:    berkeley,
		Lines:       []protocol.Line{{Name: "blanket", Qty: 100}},
		Priority:    protocol.PriorityCritical,
		MaxEtaHours: 0.5, // base lead alone is 1.5h
	}, cfg)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if resp.OK {
		t.Fatal("quote accepted past SLA")
	}
	if !strings.HasPrefix(resp.Reason, "eta_exceeds_sla_") || !strings.HasSuffix(resp.Reason, "h") {
		t.Errorf("reason = %q, want eta_exceeds_sla_<eta>h", resp.Reason)
	}
}

func TestQuotePriorityPricing(t *testing.T) {
	tests := []struct {
		priority protocol.Priority
		want     float64
	}{
		{protocol.PriorityCritical, 900.00},
		{protocol.PriorityHigh, 950.00},
		{protocol.PriorityMedium, 1000.00},
		{protocol.PriorityLow, 1050.00},
		{protocol.Priority("bogus"), 1000.00}, // unknown falls back to medium
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			eng, cfg := newEngine(t, []ledger.Line{{Name: "blanket", Qty: 500, UnitPrice: 10}})
			resp, err := eng.Quote(context.Background(), protocol.QuoteRequest{
				NeedID:      "need_price",
				Location:    berkeley,
				Lines:       []protocol.Line{{Name: "blanket", Qty: 100}},
				Priority:    tt.priority,
				MaxEtaHours: 6,
			}, cfg)
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if !resp.OK {
				t.Fatalf("rejected: %s", resp.Reason)
			}
			if math.Abs(resp.TotalCost-tt.want) > 1e-9 {
				t.Errorf("total = %v, want %v", resp.TotalCost, tt.want)
			}
		})
	}
}

func TestQuotePartialCoverage(t *testing.T) {
	eng, cfg := newEngine(t, []ledger.Line{{Name: "blanket", Qty: 60, UnitPrice: 10}})

	resp, err := eng.Quote(context.Background(), protocol.QuoteRequest{
		NeedID:      "need_partial",
		Location:    berkeley,
		Lines:       []protocol.Line{{Name: "blanket", Qty: 100}},
		Priority:    protocol.PriorityMedium,
		MaxEtaHours: 6,
	}, cfg)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !resp.OK {
		t.Fatalf("rejected: %s", resp.Reason)
	}
	if resp.CoverageRatio != 0.6 {
		t.Errorf("coverage = %v, want 0.6", resp.CoverageRatio)
	}
	if resp.Lines[0].Qty != 60 {
		t.Errorf("offered = %d, want 60", resp.Lines[0].Qty)
	}
	if resp.TotalCost != 600.00 {
		t.Errorf("total = %v, want 600.00", resp.TotalCost)
	}
}
