// Package geocode resolves free-text addresses to coordinates through
// the external geocoding collaborator. Resolution is best-effort; need
// creation falls back to a configured default location when the lookup
// fails.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

var ErrNoResult = errors.New("no geocoding result")

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

// Lookup resolves address to a location. Callers must treat errors as
// "use the default location", never as fatal.
func (c *Client) Lookup(ctx context.Context, address string) (protocol.Geo, error) {
	if c == nil || c.baseURL == "" || address == "" {
		return protocol.Geo{}, ErrNoResult
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/geocode?q="+url.QueryEscape(address), nil)
	if err != nil {
		return protocol.Geo{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return protocol.Geo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return protocol.Geo{}, ErrNoResult
	}

	var body struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return protocol.Geo{}, err
	}
	return protocol.Geo{Lat: body.Lat, Lon: body.Lon, Label: address}, nil
}
