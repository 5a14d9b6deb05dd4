package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

// HTTPTransport posts envelopes to each party's message inbox
// (POST <endpoint>/v1/messages). The address book maps PartyRef to a
// base URL and can be extended at runtime as parties are discovered.
type HTTPTransport struct {
	client *http.Client

	mu        sync.RWMutex
	addresses map[protocol.PartyRef]string
}

func NewHTTPTransport(addresses map[protocol.PartyRef]string) *HTTPTransport {
	book := make(map[protocol.PartyRef]string, len(addresses))
	for ref, url := range addresses {
		book[ref] = url
	}
	return &HTTPTransport{
		client:    &http.Client{Timeout: 5 * time.Second},
		addresses: book,
	}
}

// SetAddress adds or replaces one party's endpoint.
func (t *HTTPTransport) SetAddress(ref protocol.PartyRef, baseURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addresses[ref] = baseURL
}

func (t *HTTPTransport) Send(ctx context.Context, to protocol.PartyRef, env protocol.Envelope) error {
	t.mu.RLock()
	baseURL, ok := t.addresses[to]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParty, to)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Message-Type", env.Type)
	req.Header.Set("X-Sender", string(env.Sender))

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("send to %s: status %d", to, resp.StatusCode)
	}
	return nil
}
