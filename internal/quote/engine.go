// Package quote decides whether and how a supplier services a need:
// service-radius eligibility, inventory-capped offers, decimal pricing
// with a priority multiplier, and a delivery ETA against the need's SLA.
package quote

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/wh0th3h3llam1/agent-aid/internal/geo"
	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

// AssumedSpeedKmh is the conservative ground-transport speed used for
// travel-time estimates.
const AssumedSpeedKmh = 40.0

var priorityMultipliers = map[protocol.Priority]decimal.Decimal{
	protocol.PriorityCritical: decimal.RequireFromString("0.90"),
	protocol.PriorityHigh:     decimal.RequireFromString("0.95"),
	protocol.PriorityMedium:   decimal.RequireFromString("1.00"),
	protocol.PriorityLow:      decimal.RequireFromString("1.05"),
}

// Engine computes quotes against the inventory ledger. Quote is a pure
// function of the request, the supplier config and the current ledger
// snapshot; the only side effect is the ledger read.
type Engine struct {
	store ledger.Store
}

func NewEngine(store ledger.Store) *Engine {
	return &Engine{store: store}
}

// Quote evaluates req for the supplier described by cfg. Ineligibility
// is returned as a non-OK response with a machine-readable reason; the
// error return is reserved for ledger failures.
func (e *Engine) Quote(ctx context.Context, req protocol.QuoteRequest, cfg ledger.SupplierConfig) (protocol.QuoteResponse, error) {
	reject := func(reason string) protocol.QuoteResponse {
		return protocol.QuoteResponse{
			NeedID:     req.NeedID,
			SupplierID: cfg.SupplierID,
			OK:         false,
			Reason:     reason,
		}
	}

	distKm := geo.HaversineKm(req.Location, protocol.Geo{Lat: cfg.Lat, Lon: cfg.Lon, Label: cfg.Label})
	if distKm > cfg.RadiusKm {
		return reject(fmt.Sprintf("out_of_radius_%dkm", int(distKm))), nil
	}

	requested := make([]ledger.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		requested = append(requested, ledger.Line{Name: l.Name, Qty: l.Qty})
	}
	offered, cov, err := e.store.OfferFor(ctx, cfg.SupplierID, requested)
	if err != nil {
		return protocol.QuoteResponse{}, err
	}
	if cov <= 0 || !anyPositive(offered) {
		return reject("no_coverage"), nil
	}

	baseCost := decimal.Zero
	for _, l := range offered {
		baseCost = baseCost.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Qty))))
	}

	eta := round2(cfg.BaseLeadHours + distKm/AssumedSpeedKmh)
	if eta > req.MaxEtaHours {
		return reject("eta_exceeds_sla_" + strconv.FormatFloat(eta, 'f', -1, 64) + "h"), nil
	}

	priority := req.Priority.Normalize()
	total := baseCost.Mul(priorityMultipliers[priority]).Round(2)

	lines := make([]protocol.Line, 0, len(offered))
	for _, l := range offered {
		lines = append(lines, protocol.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
	}

	return protocol.QuoteResponse{
		NeedID:        req.NeedID,
		SupplierID:    cfg.SupplierID,
		OK:            true,
		CoverageRatio: round3(cov),
		EtaHours:      eta,
		TotalCost:     total.InexactFloat64(),
		Lines:         lines,
		Terms:         fmt.Sprintf("delivery:%s;priority:%s", cfg.DeliveryMode, priority),
	}, nil
}

func anyPositive(lines []ledger.Line) bool {
	for _, l := range lines {
		if l.Qty > 0 {
			return true
		}
	}
	return false
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
