// Package telemetry emits best-effort events to an external ingest
// endpoint. Failures are logged and swallowed; telemetry must never
// break the negotiation flow.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event is one telemetry record. Meta carries event-specific detail.
type Event struct {
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"ts"`
	AgentType string         `json:"agent_type"` // needer|supplier
	AgentID   string         `json:"agent_id"`
	EventType string         `json:"event_type"`
	NeedID    string         `json:"need_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Emitter posts events to one ingest URL. A nil Emitter or an empty URL
// disables emission entirely.
type Emitter struct {
	url       string
	agentType string
	agentID   string
	client    *http.Client
}

func NewEmitter(url, agentType, agentID string) *Emitter {
	return &Emitter{
		url:       url,
		agentType: agentType,
		agentID:   agentID,
		client:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Emit sends one event and never returns an error.
func (e *Emitter) Emit(ctx context.Context, eventType, needID string, meta map[string]any) {
	if e == nil || e.url == "" {
		return
	}
	ev := Event{
		EventID:   "evt_" + uuid.NewString(),
		Timestamp: time.Now().UTC(),
		AgentType: e.agentType,
		AgentID:   e.agentID,
		EventType: eventType,
		NeedID:    needID,
		Meta:      meta,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		slog.Debug("telemetry emit failed", "event_type", eventType, "error", err)
		return
	}
	resp.Body.Close()
}
