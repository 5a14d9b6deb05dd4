// Package protocol defines the aid-market message schemas exchanged
// between need agents, supply agents and admin tooling. The schemas are
// transport-agnostic: parties are addressed by opaque PartyRef
// identifiers and the transport layer resolves them.
package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// PartyRef is an opaque identifier for a message party. The negotiation
// core never interprets it; the transport resolves it to an endpoint.
type PartyRef string

// Priority of a need. Higher priorities are served at a discount because
// suppliers treat low-priority needs opportunistically.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Normalize lower-cases p and falls back to medium for unknown values.
func (p Priority) Normalize() Priority {
	switch Priority(strings.ToLower(string(p))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// Line is one requested or offered item row. Qty is never negative on
// the wire; an offered qty of zero means "cannot fulfill this line".
type Line struct {
	Name      string  `json:"name" bson:"name"`
	Qty       int     `json:"qty" bson:"qty"`
	Unit      string  `json:"unit,omitempty" bson:"unit,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty" bson:"unit_price,omitempty"`
}

// Geo is a point location with an optional human label.
type Geo struct {
	Lat   float64 `json:"lat" bson:"lat"`
	Lon   float64 `json:"lon" bson:"lon"`
	Label string  `json:"label,omitempty" bson:"label,omitempty"`
}

// QuoteRequest is broadcast by a need agent to all known suppliers.
type QuoteRequest struct {
	NeedID      string   `json:"need_id"`
	Location    Geo      `json:"location"`
	Lines       []Line   `json:"items"`
	Priority    Priority `json:"priority"`
	MaxEtaHours float64  `json:"max_eta_hours"`
}

// QuoteResponse is a supplier's answer to one QuoteRequest. When OK is
// false only Reason is set. Lines carry the supplier's offered
// quantities, capped by current inventory.
type QuoteResponse struct {
	NeedID        string  `json:"need_id"`
	SupplierID    string  `json:"supplier_id"`
	OK            bool    `json:"ok"`
	Reason        string  `json:"reason,omitempty"`
	CoverageRatio float64 `json:"coverage_ratio,omitempty"`
	EtaHours      float64 `json:"eta_hours,omitempty"`
	TotalCost     float64 `json:"total_cost,omitempty"`
	Lines         []Line  `json:"items,omitempty"`
	Terms         string  `json:"terms,omitempty"`
}

// Accept is the requester's per-supplier allocation: the quantities it
// wants this supplier to fulfill. Partial allocation is allowed.
type Accept struct {
	NeedID     string `json:"need_id"`
	SupplierID string `json:"supplier_id"`
	Accept     bool   `json:"accept"`
	Lines      []Line `json:"items"`
}

// AllocationNotice is the supplier's authoritative confirmation with the
// quantities actually deducted from its ledger. They may be smaller than
// the accepted quantities if a concurrent accept drained stock first.
type AllocationNotice struct {
	NeedID     string `json:"need_id"`
	SupplierID string `json:"supplier_id"`
	Lines      []Line `json:"items"`
	Note       string `json:"note,omitempty"`
}

// Restock adds stock (admin use, shared-secret authenticated).
// Quantities must be non-negative.
type Restock struct {
	Secret string `json:"secret"`
	Lines  []Line `json:"items"`
}

// AdjustInventory applies a signed delta per line (admin use).
// Negative quantities subtract stock, floored at zero.
type AdjustInventory struct {
	Secret string `json:"secret"`
	Lines  []Line `json:"items"`
}

// InventoryQuery asks a supplier to echo its current inventory
// (admin use, shared-secret authenticated).
type InventoryQuery struct {
	Secret string `json:"secret"`
}

// InventoryStatus echoes a supplier's inventory after an admin change
// or query.
type InventoryStatus struct {
	SupplierID string `json:"supplier_id"`
	Inventory  []Line `json:"inventory"`
	Note       string `json:"note,omitempty"`
}

// ErrorMessage reports an admin-path data error back to the caller.
type ErrorMessage struct {
	Message string `json:"message"`
}

// Message type names carried in Envelope.Type.
const (
	TypeQuoteRequest     = "quote_request"
	TypeQuoteResponse    = "quote_response"
	TypeAccept           = "accept"
	TypeAllocationNotice = "allocation_notice"
	TypeRestock          = "restock"
	TypeAdjustInventory  = "adjust_inventory"
	TypeInventoryQuery   = "inventory_query"
	TypeInventoryStatus  = "inventory_status"
	TypeError            = "error"
)

// Envelope wraps one protocol message for delivery. Sender is the
// PartyRef replies should be addressed to.
type Envelope struct {
	Type    string          `json:"type"`
	Sender  PartyRef        `json:"sender"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals msg into an Envelope of the given type.
func NewEnvelope(typ string, sender PartyRef, msg any) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:    typ,
		Sender:  sender,
		SentAt:  time.Now().UTC(),
		Payload: payload,
	}, nil
}
