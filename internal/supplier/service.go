// Package supplier implements the supply-side agent: quoting against
// the inventory ledger, applying accepted allocations atomically, and
// the shared-secret admin operations.
package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
	"github.com/wh0th3h3llam1/agent-aid/internal/quote"
	"github.com/wh0th3h3llam1/agent-aid/internal/telemetry"
	"github.com/wh0th3h3llam1/agent-aid/internal/transport"
)

var ErrUnauthorized = errors.New("unauthorized")

// Service is one supplier party. Config and inventory are read fresh
// from the ledger on every quote so admin changes take effect
// immediately.
type Service struct {
	ref         protocol.PartyRef
	store       ledger.Store
	engine      *quote.Engine
	transport   transport.Transport
	telemetry   *telemetry.Emitter
	adminSecret string
}

func New(store ledger.Store, tr transport.Transport, em *telemetry.Emitter, supplierID, adminSecret string) *Service {
	return &Service{
		ref:         protocol.PartyRef(supplierID),
		store:       store,
		engine:      quote.NewEngine(store),
		transport:   tr,
		telemetry:   em,
		adminSecret: adminSecret,
	}
}

// Start idempotently registers the supplier row and logs the current
// inventory, mirroring what operators expect to see on boot.
func (s *Service) Start(ctx context.Context, cfg ledger.SupplierConfig, seed []ledger.Line) error {
	if err := s.store.EnsureSupplier(ctx, cfg); err != nil {
		return fmt.Errorf("ensure supplier: %w", err)
	}
	if len(seed) > 0 {
		if _, err := s.store.Restock(ctx, cfg.SupplierID, seed); err != nil {
			return fmt.Errorf("seed inventory: %w", err)
		}
	}
	inv, err := s.store.Inventory(ctx, cfg.SupplierID)
	if err != nil {
		return err
	}
	slog.Info("supplier ready", "supplier_id", cfg.SupplierID, "label", cfg.Label, "items", len(inv))
	return nil
}

// Ref is the PartyRef this supplier answers to.
func (s *Service) Ref() protocol.PartyRef { return s.ref }

// HandleEnvelope dispatches one inbound message. Unknown types are
// logged and dropped.
func (s *Service) HandleEnvelope(ctx context.Context, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeQuoteRequest:
		var req protocol.QuoteRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			slog.Warn("malformed quote request", "supplier_id", s.ref, "error", err)
			return
		}
		s.handleQuoteRequest(ctx, env.Sender, req)
	case protocol.TypeAccept:
		var acc protocol.Accept
		if err := json.Unmarshal(env.Payload, &acc); err != nil {
			slog.Warn("malformed accept", "supplier_id", s.ref, "error", err)
			return
		}
		s.handleAccept(ctx, env.Sender, acc)
	case protocol.TypeRestock:
		var msg protocol.Restock
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.sendError(ctx, env.Sender, "malformed restock message")
			return
		}
		s.handleRestock(ctx, env.Sender, msg)
	case protocol.TypeAdjustInventory:
		var msg protocol.AdjustInventory
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.sendError(ctx, env.Sender, "malformed adjust message")
			return
		}
		s.handleAdjust(ctx, env.Sender, msg)
	case protocol.TypeInventoryQuery:
		var msg protocol.InventoryQuery
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.sendError(ctx, env.Sender, "malformed inventory query")
			return
		}
		s.handleInventoryQuery(ctx, env.Sender, msg)
	default:
		slog.Debug("unhandled message type", "supplier_id", s.ref, "type", env.Type)
	}
}

func (s *Service) handleQuoteRequest(ctx context.Context, sender protocol.PartyRef, req protocol.QuoteRequest) {
	cfg, err := s.store.Supplier(ctx, string(s.ref))
	if err != nil {
		slog.Error("supplier config unavailable", "supplier_id", s.ref, "error", err)
		return
	}

	resp, err := s.engine.Quote(ctx, req, cfg)
	if err != nil {
		slog.Error("quote computation failed", "supplier_id", s.ref, "need_id", req.NeedID, "error", err)
		return
	}

	if resp.OK {
		slog.Info("quote sent",
			"supplier_id", s.ref,
			"need_id", req.NeedID,
			"coverage", resp.CoverageRatio,
			"eta_hours", resp.EtaHours,
			"total_cost", resp.TotalCost,
		)
	} else {
		slog.Info("quote rejected", "supplier_id", s.ref, "need_id", req.NeedID, "reason", resp.Reason)
	}

	s.reply(ctx, sender, protocol.TypeQuoteResponse, resp)
	s.telemetry.Emit(ctx, "quote_response", req.NeedID, map[string]any{
		"ok": resp.OK, "reason": resp.Reason, "total_cost": resp.TotalCost,
	})
}

// handleAccept deducts the accepted quantities as one atomic unit and
// confirms with the quantities actually deducted. A shortfall against
// the accept is a race outcome, not an error; it is logged for audit.
func (s *Service) handleAccept(ctx context.Context, sender protocol.PartyRef, acc protocol.Accept) {
	if !acc.Accept {
		return
	}

	toDeduct := make([]ledger.Line, 0, len(acc.Lines))
	for _, l := range acc.Lines {
		toDeduct = append(toDeduct, ledger.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
	}

	applied, err := s.store.Deduct(ctx, string(s.ref), toDeduct)
	if err != nil {
		slog.Error("deduction failed", "supplier_id", s.ref, "need_id", acc.NeedID, "error", err)
		return
	}

	shortfall := accepted(acc.Lines) - total(applied)
	note := "allocation confirmed"
	if shortfall > 0 {
		note = fmt.Sprintf("allocation reduced by %d units (stock drained by concurrent accept)", shortfall)
		slog.Warn("allocation short-delivered",
			"supplier_id", s.ref,
			"need_id", acc.NeedID,
			"shortfall", shortfall,
		)
		s.telemetry.Emit(ctx, "oversell_clamped", acc.NeedID, map[string]any{"shortfall": shortfall})
	}

	confirmed := make([]protocol.Line, 0, len(applied))
	for _, l := range applied {
		confirmed = append(confirmed, protocol.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
	}

	s.reply(ctx, sender, protocol.TypeAllocationNotice, protocol.AllocationNotice{
		NeedID:     acc.NeedID,
		SupplierID: string(s.ref),
		Lines:      confirmed,
		Note:       note,
	})
	slog.Info("allocation confirmed", "supplier_id", s.ref, "need_id", acc.NeedID, "lines", len(confirmed))
}

func (s *Service) handleRestock(ctx context.Context, sender protocol.PartyRef, msg protocol.Restock) {
	if msg.Secret != s.adminSecret {
		s.sendError(ctx, sender, ErrUnauthorized.Error())
		return
	}
	inv, err := s.store.Restock(ctx, string(s.ref), toLedger(msg.Lines))
	if err != nil {
		s.sendError(ctx, sender, err.Error())
		return
	}
	s.sendStatus(ctx, sender, inv, "restocked")
}

func (s *Service) handleAdjust(ctx context.Context, sender protocol.PartyRef, msg protocol.AdjustInventory) {
	if msg.Secret != s.adminSecret {
		s.sendError(ctx, sender, ErrUnauthorized.Error())
		return
	}
	inv, err := s.store.Adjust(ctx, string(s.ref), toLedger(msg.Lines))
	if err != nil {
		s.sendError(ctx, sender, err.Error())
		return
	}
	s.sendStatus(ctx, sender, inv, "adjusted")
}

func (s *Service) handleInventoryQuery(ctx context.Context, sender protocol.PartyRef, msg protocol.InventoryQuery) {
	if msg.Secret != s.adminSecret {
		s.sendError(ctx, sender, ErrUnauthorized.Error())
		return
	}
	inv, err := s.store.Inventory(ctx, string(s.ref))
	if err != nil {
		s.sendError(ctx, sender, err.Error())
		return
	}
	s.sendStatus(ctx, sender, inv, "")
}

func (s *Service) sendStatus(ctx context.Context, to protocol.PartyRef, inv []ledger.Line, note string) {
	lines := make([]protocol.Line, 0, len(inv))
	for _, l := range inv {
		lines = append(lines, protocol.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
	}
	s.reply(ctx, to, protocol.TypeInventoryStatus, protocol.InventoryStatus{
		SupplierID: string(s.ref),
		Inventory:  lines,
		Note:       note,
	})
}

func (s *Service) sendError(ctx context.Context, to protocol.PartyRef, message string) {
	s.reply(ctx, to, protocol.TypeError, protocol.ErrorMessage{Message: message})
}

func (s *Service) reply(ctx context.Context, to protocol.PartyRef, typ string, msg any) {
	env, err := protocol.NewEnvelope(typ, s.ref, msg)
	if err != nil {
		slog.Error("envelope marshal failed", "supplier_id", s.ref, "type", typ, "error", err)
		return
	}
	if err := s.transport.Send(ctx, to, env); err != nil {
		slog.Warn("reply send failed", "supplier_id", s.ref, "to", to, "type", typ, "error", err)
	}
}

func toLedger(lines []protocol.Line) []ledger.Line {
	out := make([]ledger.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
	}
	return out
}

func total(lines []ledger.Line) int {
	n := 0
	for _, l := range lines {
		n += l.Qty
	}
	return n
}

func accepted(lines []protocol.Line) int {
	n := 0
	for _, l := range lines {
		if l.Qty > 0 {
			n += l.Qty
		}
	}
	return n
}
