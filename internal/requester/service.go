// Package requester implements the need-side agent: broadcasting a
// need to all known suppliers, collecting and scoring quotes inside a
// bounded gather window, and sending the greedy allocation's accepts.
package requester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wh0th3h3llam1/agent-aid/internal/alloc"
	"github.com/wh0th3h3llam1/agent-aid/internal/gather"
	"github.com/wh0th3h3llam1/agent-aid/internal/geocode"
	"github.com/wh0th3h3llam1/agent-aid/internal/intel"
	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
	"github.com/wh0th3h3llam1/agent-aid/internal/score"
	"github.com/wh0th3h3llam1/agent-aid/internal/telemetry"
	"github.com/wh0th3h3llam1/agent-aid/internal/transport"
)

var ErrNoLines = errors.New("need has no requested lines")

const (
	riskRadiusKm   = 25.0
	riskHorizonMin = 180
)

// Options configures a requester Service.
type Options struct {
	NeederID        string
	Suppliers       []protocol.PartyRef
	ShortWait       time.Duration // zero means gather.DefaultShortWait
	MaxWait         time.Duration // zero means gather.DefaultMaxWait
	DefaultLocation protocol.Geo
	Intel           intel.Provider  // nil means zero risk
	Geocoder        *geocode.Client // nil means always use DefaultLocation
}

// NeedSpec describes a need to broadcast. Location wins over Address;
// a failed address lookup falls back to the configured default.
type NeedSpec struct {
	Lines       []protocol.Line
	Priority    protocol.Priority
	MaxEtaHours float64
	Address     string
	Location    *protocol.Geo
}

// needState is the per-need working context. It is owned by exactly one
// Service and all access goes through the Service mutex; there are no
// ambient registries.
type needState struct {
	request   protocol.QuoteRequest
	remaining map[string]int
	quotes    []alloc.ScoredQuote
	window    *gather.Controller
}

// Service is one need-side party.
type Service struct {
	opts      Options
	ref       protocol.PartyRef
	transport transport.Transport
	telemetry *telemetry.Emitter

	mu    sync.Mutex
	needs map[string]*needState
}

func New(tr transport.Transport, em *telemetry.Emitter, opts Options) *Service {
	return &Service{
		opts:      opts,
		ref:       protocol.PartyRef(opts.NeederID),
		transport: tr,
		telemetry: em,
		needs:     make(map[string]*needState),
	}
}

// Ref is the PartyRef suppliers reply to.
func (s *Service) Ref() protocol.PartyRef { return s.ref }

// CreateNeed broadcasts a quote request to every known supplier and
// starts tracking the need. A send failure to one supplier never aborts
// the rest of the broadcast.
func (s *Service) CreateNeed(ctx context.Context, spec NeedSpec) (string, error) {
	if len(spec.Lines) == 0 {
		return "", ErrNoLines
	}

	needID := "need_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	req := protocol.QuoteRequest{
		NeedID:      needID,
		Location:    s.resolveLocation(ctx, spec),
		Lines:       spec.Lines,
		Priority:    spec.Priority.Normalize(),
		MaxEtaHours: spec.MaxEtaHours,
	}

	remaining := make(map[string]int, len(spec.Lines))
	for _, l := range spec.Lines {
		if l.Qty > 0 {
			remaining[ledger.ItemKey(l.Name)] += l.Qty
		}
	}

	st := &needState{request: req, remaining: remaining}
	st.window = gather.New(s.opts.ShortWait, s.opts.MaxWait, func() { s.allocate(needID) })

	s.mu.Lock()
	s.needs[needID] = st
	s.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.TypeQuoteRequest, s.ref, req)
	if err != nil {
		return "", fmt.Errorf("marshal quote request: %w", err)
	}

	sent := 0
	for _, supplierRef := range s.opts.Suppliers {
		if err := s.transport.Send(ctx, supplierRef, env); err != nil {
			slog.Warn("broadcast to supplier failed",
				"needer_id", s.ref, "need_id", needID, "supplier", supplierRef, "error", err)
			continue
		}
		sent++
	}
	slog.Info("need broadcast", "needer_id", s.ref, "need_id", needID,
		"suppliers", sent, "priority", req.Priority, "max_eta_hours", req.MaxEtaHours)
	s.telemetry.Emit(ctx, "quote_request", needID, map[string]any{
		"suppliers": sent, "lat": req.Location.Lat, "lon": req.Location.Lon,
	})
	return needID, nil
}

func (s *Service) resolveLocation(ctx context.Context, spec NeedSpec) protocol.Geo {
	if spec.Location != nil {
		return *spec.Location
	}
	if loc, err := s.opts.Geocoder.Lookup(ctx, spec.Address); err == nil {
		return loc
	}
	loc := s.opts.DefaultLocation
	if spec.Address != "" && loc.Label == "" {
		loc.Label = spec.Address
	}
	return loc
}

// HandleEnvelope dispatches one inbound message.
func (s *Service) HandleEnvelope(ctx context.Context, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeQuoteResponse:
		var resp protocol.QuoteResponse
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			slog.Warn("malformed quote response", "needer_id", s.ref, "error", err)
			return
		}
		s.handleQuoteResponse(ctx, env.Sender, resp)
	case protocol.TypeAllocationNotice:
		var notice protocol.AllocationNotice
		if err := json.Unmarshal(env.Payload, &notice); err != nil {
			slog.Warn("malformed allocation notice", "needer_id", s.ref, "error", err)
			return
		}
		s.handleAllocationNotice(ctx, notice)
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		if err := json.Unmarshal(env.Payload, &msg); err == nil {
			slog.Warn("error from party", "needer_id", s.ref, "from", env.Sender, "message", msg.Message)
		}
	default:
		slog.Debug("unhandled message type", "needer_id", s.ref, "type", env.Type)
	}
}

func (s *Service) handleQuoteResponse(ctx context.Context, sender protocol.PartyRef, resp protocol.QuoteResponse) {
	s.mu.Lock()
	st, ok := s.needs[resp.NeedID]
	s.mu.Unlock()
	if !ok {
		slog.Debug("quote for unknown or completed need", "needer_id", s.ref, "need_id", resp.NeedID)
		return
	}

	if !resp.OK {
		slog.Info("quote rejected by supplier",
			"needer_id", s.ref, "need_id", resp.NeedID,
			"supplier_id", resp.SupplierID, "reason", resp.Reason)
		return
	}

	// risk lookup happens outside the lock; it may hit the network
	risk := s.riskFor(ctx, st.request.Location)
	sc := score.Quote(resp, risk)

	s.mu.Lock()
	if !st.window.QuoteArrived() {
		s.mu.Unlock()
		slog.Info("late quote ignored",
			"needer_id", s.ref, "need_id", resp.NeedID, "supplier_id", resp.SupplierID)
		return
	}
	st.quotes = append(st.quotes, alloc.ScoredQuote{Quote: resp, Score: sc, Sender: sender})
	s.mu.Unlock()

	slog.Info("quote collected",
		"needer_id", s.ref, "need_id", resp.NeedID, "supplier_id", resp.SupplierID,
		"total_cost", resp.TotalCost, "eta_hours", resp.EtaHours,
		"coverage", resp.CoverageRatio, "score", sc)
	s.telemetry.Emit(ctx, "quote_response", resp.NeedID, map[string]any{
		"supplier_id": resp.SupplierID, "total_cost": resp.TotalCost,
		"coverage": resp.CoverageRatio, "score": sc,
	})
}

func (s *Service) riskFor(ctx context.Context, loc protocol.Geo) score.RiskSignal {
	if s.opts.Intel == nil {
		return score.RiskSignal{}
	}
	return s.opts.Intel.Risk(ctx, loc.Lat, loc.Lon, riskRadiusKm, riskHorizonMin)
}

// allocate runs when the gather window closes. It computes the greedy
// plan, sends one Accept per selected supplier and clears the need if
// every line reached full coverage.
func (s *Service) allocate(needID string) {
	ctx := context.Background()

	s.mu.Lock()
	st, ok := s.needs[needID]
	if !ok {
		s.mu.Unlock()
		return
	}
	plan := alloc.Build(st.remaining, st.quotes)
	st.remaining = plan.Remaining
	st.quotes = nil
	s.mu.Unlock()

	for _, allocation := range plan.Allocations {
		acc := protocol.Accept{
			NeedID:     needID,
			SupplierID: allocation.SupplierID,
			Accept:     true,
			Lines:      allocation.Lines,
		}
		env, err := protocol.NewEnvelope(protocol.TypeAccept, s.ref, acc)
		if err != nil {
			slog.Error("marshal accept failed", "needer_id", s.ref, "need_id", needID, "error", err)
			continue
		}
		if err := s.transport.Send(ctx, allocation.Sender, env); err != nil {
			slog.Warn("accept send failed",
				"needer_id", s.ref, "need_id", needID,
				"supplier_id", allocation.SupplierID, "error", err)
			continue
		}
		slog.Info("accept sent", "needer_id", s.ref, "need_id", needID,
			"supplier_id", allocation.SupplierID, "lines", len(allocation.Lines))
		s.telemetry.Emit(ctx, "accept_sent", needID, map[string]any{
			"supplier_id": allocation.SupplierID,
		})
	}

	if len(plan.Allocations) == 0 {
		slog.Info("no suppliers available", "needer_id", s.ref, "need_id", needID)
	}

	if plan.FullyCovered() && len(plan.Allocations) > 0 {
		s.mu.Lock()
		delete(s.needs, needID)
		s.mu.Unlock()
		slog.Info("need fully allocated", "needer_id", s.ref, "need_id", needID)
	} else {
		slog.Info("need partially open",
			"needer_id", s.ref, "need_id", needID, "remaining", plan.Remaining)
	}
}

// handleAllocationNotice records the supplier's authoritative final
// quantities. It never adjusts remainingNeeded: reconciliation against
// quote-time bookkeeping is an audit concern, not a correctness one.
func (s *Service) handleAllocationNotice(ctx context.Context, notice protocol.AllocationNotice) {
	parts := make([]string, 0, len(notice.Lines))
	for _, l := range notice.Lines {
		parts = append(parts, fmt.Sprintf("%s:%d", l.Name, l.Qty))
	}
	slog.Info("allocation confirmed",
		"needer_id", s.ref, "need_id", notice.NeedID,
		"supplier_id", notice.SupplierID,
		"items", strings.Join(parts, ","), "note", notice.Note)
	s.telemetry.Emit(ctx, "allocation_notice", notice.NeedID, map[string]any{
		"supplier_id": notice.SupplierID, "items": parts,
	})
}

// Remaining reports the outstanding quantities for a need; the second
// return is false once the need completed or was never created.
func (s *Service) Remaining(needID string) (map[string]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.needs[needID]
	if !ok {
		return nil, false
	}
	out := make(map[string]int, len(st.remaining))
	for k, v := range st.remaining {
		out[k] = v
	}
	return out, true
}

// Shutdown stops every open gather window without allocating.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.needs {
		st.window.Stop()
	}
}
