// Package httpapi exposes each agent's message inbox and operational
// endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
	"github.com/wh0th3h3llam1/agent-aid/internal/requester"
)

// MessageHandler consumes one inbound envelope. Processing is
// fire-and-forget from the HTTP client's point of view.
type MessageHandler interface {
	HandleEnvelope(ctx context.Context, env protocol.Envelope)
}

func base(inbox MessageHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Post("/v1/messages", func(w http.ResponseWriter, req *http.Request) {
		var env protocol.Envelope
		if err := json.NewDecoder(req.Body).Decode(&env); err != nil {
			writeError(w, http.StatusBadRequest, "malformed envelope")
			return
		}
		if env.Type == "" || env.Sender == "" {
			writeError(w, http.StatusBadRequest, "envelope requires type and sender")
			return
		}
		inbox.HandleEnvelope(req.Context(), env)
		w.WriteHeader(http.StatusAccepted)
	})

	return r
}

// needRequest is the POST /v1/needs body.
type needRequest struct {
	Items       []protocol.Line   `json:"items"`
	Priority    protocol.Priority `json:"priority"`
	MaxEtaHours float64           `json:"max_eta_hours"`
	Address     string            `json:"address,omitempty"`
	Location    *protocol.Geo     `json:"location,omitempty"`
}

// NewNeedRouter serves the need-side agent: the message inbox plus
// need submission and status.
func NewNeedRouter(svc *requester.Service) chi.Router {
	r := base(svc)

	r.Post("/v1/needs", func(w http.ResponseWriter, req *http.Request) {
		var body needRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed need")
			return
		}
		needID, err := svc.CreateNeed(req.Context(), requester.NeedSpec{
			Lines:       body.Items,
			Priority:    body.Priority,
			MaxEtaHours: body.MaxEtaHours,
			Address:     body.Address,
			Location:    body.Location,
		})
		if err != nil {
			if errors.Is(err, requester.ErrNoLines) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("need submission failed", "error", err)
			writeError(w, http.StatusInternalServerError, "need submission failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"need_id": needID})
	})

	r.Get("/v1/needs/{needID}", func(w http.ResponseWriter, req *http.Request) {
		needID := chi.URLParam(req, "needID")
		remaining, open := svc.Remaining(needID)
		if !open {
			writeError(w, http.StatusNotFound, "unknown or completed need")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"need_id":   needID,
			"remaining": remaining,
		})
	})

	return r
}

// adminRequest is the body of the supply-side admin mutations. The
// same shared secret guards the message-path equivalents.
type adminRequest struct {
	Secret string          `json:"secret"`
	Items  []protocol.Line `json:"items"`
}

// NewSupplyRouter serves the supply-side agent: the message inbox plus
// the shared-secret admin surface backed directly by the ledger.
func NewSupplyRouter(inbox MessageHandler, store ledger.Store, supplierID, adminSecret string) chi.Router {
	r := base(inbox)

	mutate := func(op func(context.Context, string, []ledger.Line) ([]ledger.Line, error)) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			var body adminRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "malformed request")
				return
			}
			if body.Secret != adminSecret {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			lines := make([]ledger.Line, 0, len(body.Items))
			for _, l := range body.Items {
				lines = append(lines, ledger.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
			}
			inv, err := op(req.Context(), supplierID, lines)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeInventory(w, supplierID, inv)
		}
	}

	r.Post("/v1/admin/restock", mutate(store.Restock))
	r.Post("/v1/admin/adjust", mutate(store.Adjust))

	r.Get("/v1/admin/inventory", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-Admin-Secret") != adminSecret {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		inv, err := store.Inventory(req.Context(), supplierID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeInventory(w, supplierID, inv)
	})

	return r
}

func writeInventory(w http.ResponseWriter, supplierID string, inv []ledger.Line) {
	lines := make([]protocol.Line, 0, len(inv))
	for _, l := range inv {
		lines = append(lines, protocol.Line{Name: l.Name, Qty: l.Qty, Unit: l.Unit, UnitPrice: l.UnitPrice})
	}
	writeJSON(w, http.StatusOK, protocol.InventoryStatus{
		SupplierID: supplierID,
		Inventory:  lines,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
