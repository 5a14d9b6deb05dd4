// Package intel queries the external risk-intelligence collaborator for
// road and weather conditions near a need location. The client is
// strictly best-effort: any failure yields a zero risk signal.
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wh0th3h3llam1/agent-aid/internal/score"
)

// Provider supplies a risk signal for a location. Absence of a provider
// means zero risk.
type Provider interface {
	Risk(ctx context.Context, lat, lon, radiusKm float64, horizonMin int) score.RiskSignal
}

// Client is the HTTP provider. A nil Client or empty base URL returns
// the zero signal.
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

func (c *Client) Risk(ctx context.Context, lat, lon, radiusKm float64, horizonMin int) score.RiskSignal {
	if c == nil || c.baseURL == "" {
		return score.RiskSignal{}
	}

	url := fmt.Sprintf("%s/v1/risk?lat=%f&lon=%f&radius_km=%f&horizon_min=%d",
		c.baseURL, lat, lon, radiusKm, horizonMin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return score.RiskSignal{}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("risk intel unavailable", "error", err)
		return score.RiskSignal{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return score.RiskSignal{}
	}

	var body struct {
		RoadBlockCount  int     `json:"road_block_count"`
		WeatherSeverity float64 `json:"weather_worst_severity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return score.RiskSignal{}
	}
	return score.RiskSignal{
		RoadBlockCount:  body.RoadBlockCount,
		WeatherSeverity: body.WeatherSeverity,
	}
}
