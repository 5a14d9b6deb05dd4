package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
	"github.com/wh0th3h3llam1/agent-aid/internal/requester"
	"github.com/wh0th3h3llam1/agent-aid/internal/transport"
)

type recordingInbox struct {
	envs []protocol.Envelope
}

func (r *recordingInbox) HandleEnvelope(_ context.Context, env protocol.Envelope) {
	r.envs = append(r.envs, env)
}

func TestInboxAcceptsEnvelope(t *testing.T) {
	inbox := &recordingInbox{}
	srv := httptest.NewServer(base(inbox))
	defer srv.Close()

	env, err := protocol.NewEnvelope(protocol.TypeQuoteResponse, "supply_1", protocol.QuoteResponse{NeedID: "need_1", OK: true})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	body, _ := json.Marshal(env)

	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(inbox.envs) != 1 || inbox.envs[0].Type != protocol.TypeQuoteResponse {
		t.Errorf("inbox = %+v, want one quote_response", inbox.envs)
	}
}

func TestInboxRejectsMalformed(t *testing.T) {
	srv := httptest.NewServer(base(&recordingInbox{}))
	defer srv.Close()

	for _, body := range []string{"not json", `{"payload":{}}`} {
		resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status for %q = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestNeedSubmissionAndStatus(t *testing.T) {
	bus := transport.NewBus()
	svc := requester.New(bus, nil, requester.Options{
		NeederID:        "needer_1",
		ShortWait:       50 * time.Millisecond,
		MaxWait:         200 * time.Millisecond,
		DefaultLocation: protocol.Geo{Lat: 37.8715, Lon: -122.2730},
	})
	defer svc.Shutdown()

	srv := httptest.NewServer(NewNeedRouter(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/needs", "application/json",
		strings.NewReader(`{"items":[{"name":"blanket","qty":100}],"priority":"critical","max_eta_hours":6}`))
	if err != nil {
		t.Fatalf("POST /v1/needs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var created struct {
		NeedID string `json:"need_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.NeedID == "" {
		t.Fatal("empty need_id")
	}

	status, err := http.Get(srv.URL + "/v1/needs/" + created.NeedID)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer status.Body.Close()
	if status.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", status.StatusCode)
	}
	var st struct {
		Remaining map[string]int `json:"remaining"`
	}
	if err := json.NewDecoder(status.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Remaining["blanket"] != 100 {
		t.Errorf("remaining = %v, want blanket:100", st.Remaining)
	}
}

func TestNeedSubmissionRejectsEmpty(t *testing.T) {
	bus := transport.NewBus()
	svc := requester.New(bus, nil, requester.Options{NeederID: "needer_1"})
	srv := httptest.NewServer(NewNeedRouter(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/needs", "application/json", strings.NewReader(`{"items":[]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownNeedIs404(t *testing.T) {
	bus := transport.NewBus()
	svc := requester.New(bus, nil, requester.Options{NeederID: "needer_1"})
	srv := httptest.NewServer(NewNeedRouter(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/needs/need_missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func newSupplyServer(t *testing.T) (*httptest.Server, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	if err := store.EnsureSupplier(context.Background(), ledger.SupplierConfig{SupplierID: "supply_1"}); err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}
	srv := httptest.NewServer(NewSupplyRouter(&recordingInbox{}, store, "supply_1", "secret"))
	t.Cleanup(srv.Close)
	return srv, store
}

func TestAdminRestock(t *testing.T) {
	srv, _ := newSupplyServer(t)

	resp, err := http.Post(srv.URL+"/v1/admin/restock", "application/json",
		strings.NewReader(`{"secret":"secret","items":[{"name":"Water","qty":30,"unit":"l","unit_price":1.5}]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var status protocol.InventoryStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(status.Inventory) != 1 || status.Inventory[0].Name != "water" || status.Inventory[0].Qty != 30 {
		t.Errorf("inventory = %+v, want water:30", status.Inventory)
	}
}

func TestAdminRestockUnauthorized(t *testing.T) {
	srv, _ := newSupplyServer(t)

	resp, err := http.Post(srv.URL+"/v1/admin/restock", "application/json",
		strings.NewReader(`{"secret":"wrong","items":[{"name":"water","qty":30}]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminRestockNegativeQty(t *testing.T) {
	srv, _ := newSupplyServer(t)

	resp, err := http.Post(srv.URL+"/v1/admin/restock", "application/json",
		strings.NewReader(`{"secret":"secret","items":[{"name":"water","qty":-5}]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminInventory(t *testing.T) {
	srv, store := newSupplyServer(t)
	if _, err := store.Restock(context.Background(), "supply_1", []ledger.Line{{Name: "tent", Qty: 4}}); err != nil {
		t.Fatalf("Restock: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/admin/inventory", nil)
	req.Header.Set("X-Admin-Secret", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var status protocol.InventoryStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(status.Inventory) != 1 || status.Inventory[0].Name != "tent" {
		t.Errorf("inventory = %+v, want tent", status.Inventory)
	}

	req.Header.Set("X-Admin-Secret", "wrong")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp2.StatusCode)
	}
}
