// Package ledger is the authoritative per-supplier stock store. All
// reads and deductions for one supplier are serialized so that no unit
// is sold twice; deductions for a single accept are applied as one
// all-or-nothing unit and clamp at zero instead of going negative.
package ledger

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnknownSupplier = errors.New("unknown supplier")
	ErrNegativeQty     = errors.New("restock quantity must be non-negative")
)

// SupplierConfig is a supplier's service profile, created idempotently
// on first use and mutated only by admin operations.
type SupplierConfig struct {
	SupplierID    string  `json:"supplier_id" bson:"_id"`
	Lat           float64 `json:"lat" bson:"lat"`
	Lon           float64 `json:"lon" bson:"lon"`
	Label         string  `json:"label" bson:"label"`
	BaseLeadHours float64 `json:"base_lead_hours" bson:"base_lead_hours"`
	RadiusKm      float64 `json:"radius_km" bson:"radius_km"`
	DeliveryMode  string  `json:"delivery_mode" bson:"delivery_mode"`
}

// Line mirrors protocol.Line for storage. Item names are keyed
// case-insensitively; Name preserves the stored (lower-cased) form.
type Line struct {
	Name      string  `json:"name" bson:"name"`
	Qty       int     `json:"qty" bson:"qty"`
	Unit      string  `json:"unit,omitempty" bson:"unit,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty" bson:"unit_price,omitempty"`
}

// Store is the ledger contract shared by the memory and Mongo backends.
//
// OfferFor is a consistent-snapshot read: it never observes a deduction
// half applied. Deduct serializes against all other writes touching the
// same supplier and returns the quantities actually removed, which may
// be smaller than requested when stock ran out (clamp, not error).
type Store interface {
	EnsureSupplier(ctx context.Context, cfg SupplierConfig) error
	Supplier(ctx context.Context, supplierID string) (SupplierConfig, error)
	Inventory(ctx context.Context, supplierID string) ([]Line, error)
	OfferFor(ctx context.Context, supplierID string, requested []Line) ([]Line, float64, error)
	Deduct(ctx context.Context, supplierID string, lines []Line) ([]Line, error)
	Restock(ctx context.Context, supplierID string, lines []Line) ([]Line, error)
	Adjust(ctx context.Context, supplierID string, lines []Line) ([]Line, error)
}

// ItemKey returns the canonical case-insensitive inventory key for name.
func ItemKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// coverage computes the mean of min(offer/want, 1) over requested lines
// with want > 0. Lines with want <= 0 do not participate.
func coverage(requested, offered []Line) float64 {
	offers := make(map[string]int, len(offered))
	for _, o := range offered {
		offers[ItemKey(o.Name)] = o.Qty
	}
	sum, n := 0.0, 0
	for _, r := range requested {
		if r.Qty <= 0 {
			continue
		}
		ratio := float64(offers[ItemKey(r.Name)]) / float64(r.Qty)
		if ratio > 1 {
			ratio = 1
		}
		sum += ratio
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
