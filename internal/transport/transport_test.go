package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

func TestHTTPTransportSend(t *testing.T) {
	received := make(chan protocol.Envelope, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("X-Message-Type"); got != protocol.TypeQuoteRequest {
			t.Errorf("X-Message-Type = %q", got)
		}
		var env protocol.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- env
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(map[protocol.PartyRef]string{"supplier_1": srv.URL})
	env, err := protocol.NewEnvelope(protocol.TypeQuoteRequest, "needer_1", protocol.QuoteRequest{NeedID: "need_1"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := tr.Send(context.Background(), "supplier_1", env); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := <-received
	if got.Sender != "needer_1" || got.Type != protocol.TypeQuoteRequest {
		t.Errorf("envelope = %+v", got)
	}
}

func TestHTTPTransportUnknownParty(t *testing.T) {
	tr := NewHTTPTransport(nil)
	err := tr.Send(context.Background(), "ghost", protocol.Envelope{})
	if !errors.Is(err, ErrUnknownParty) {
		t.Errorf("err = %v, want ErrUnknownParty", err)
	}
}

func TestHTTPTransportErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(map[protocol.PartyRef]string{"s": srv.URL})
	if err := tr.Send(context.Background(), "s", protocol.Envelope{Type: protocol.TypeAccept}); err == nil {
		t.Error("Send returned nil on 400 response")
	}
}

func TestBusDelivery(t *testing.T) {
	bus := NewBus()
	got := make(chan protocol.Envelope, 1)
	bus.Register("supplier_1", func(ctx context.Context, env protocol.Envelope) {
		got <- env
	})

	env, _ := protocol.NewEnvelope(protocol.TypeAccept, "needer_1", protocol.Accept{NeedID: "n1", Accept: true})
	if err := bus.Send(context.Background(), "supplier_1", env); err != nil {
		t.Fatalf("Send: %v", err)
	}
	bus.Drain()

	env = <-got
	var acc protocol.Accept
	if err := json.Unmarshal(env.Payload, &acc); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if acc.NeedID != "n1" || !acc.Accept {
		t.Errorf("accept = %+v", acc)
	}
}

func TestBusUnknownParty(t *testing.T) {
	bus := NewBus()
	if err := bus.Send(context.Background(), "ghost", protocol.Envelope{}); !errors.Is(err, ErrUnknownParty) {
		t.Errorf("err = %v, want ErrUnknownParty", err)
	}
}
