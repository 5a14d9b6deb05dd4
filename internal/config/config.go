// Package config loads agent configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NeedAgent is the configuration for the need-side agent binary.
type NeedAgent struct {
	Port        string
	Environment string

	NeederID  string
	Peers     map[string]string // party ref -> base URL
	Suppliers []string          // party refs to broadcast needs to

	ShortWait time.Duration
	MaxWait   time.Duration

	DefaultLat   float64
	DefaultLon   float64
	DefaultLabel string

	TelemetryURL string
	IntelURL     string
	GeocodeURL   string

	// StartupNeedJSON, when set, is a need broadcast once on boot.
	StartupNeedJSON string
}

// SupplyAgent is the configuration for the supply-side agent binary.
type SupplyAgent struct {
	Port        string
	Environment string

	SupplierID  string
	AdminSecret string
	Peers       map[string]string

	MongoURI string
	MongoDB  string

	Lat           float64
	Lon           float64
	Label         string
	BaseLeadHours float64
	RadiusKm      float64
	DeliveryMode  string

	TelemetryURL string

	// SeedItemsJSON is optional starting inventory, a JSON array of lines.
	SeedItemsJSON string
}

func LoadNeedAgent() (*NeedAgent, error) {
	peers, err := parsePeers(getEnv("PEERS", ""))
	if err != nil {
		return nil, err
	}

	suppliers := splitList(getEnv("SUPPLIERS", ""))
	if len(suppliers) == 0 {
		// default to every known peer
		for ref := range peers {
			suppliers = append(suppliers, ref)
		}
	}

	return &NeedAgent{
		Port:            getEnv("PORT", "8090"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		NeederID:        getEnv("NEEDER_ID", "needer_1"),
		Peers:           peers,
		Suppliers:       suppliers,
		ShortWait:       time.Duration(getEnvInt("SHORT_WAIT_SECONDS", 3)) * time.Second,
		MaxWait:         time.Duration(getEnvInt("MAX_WAIT_SECONDS", 9)) * time.Second,
		DefaultLat:      getEnvFloat("DEFAULT_LAT", 37.8715),
		DefaultLon:      getEnvFloat("DEFAULT_LON", -122.2730),
		DefaultLabel:    getEnv("DEFAULT_LABEL", "Berkeley, CA"),
		TelemetryURL:    getEnv("TELEMETRY_URL", ""),
		IntelURL:        getEnv("INTEL_URL", ""),
		GeocodeURL:      getEnv("GEOCODE_URL", ""),
		StartupNeedJSON: getEnv("NEED_JSON", ""),
	}, nil
}

func LoadSupplyAgent() (*SupplyAgent, error) {
	peers, err := parsePeers(getEnv("PEERS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &SupplyAgent{
		Port:          getEnv("PORT", "8091"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		SupplierID:    getEnv("SUPPLIER_ID", "supply_1"),
		AdminSecret:   getEnv("ADMIN_SECRET", ""),
		Peers:         peers,
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDB:       getEnv("MONGO_DB", "agentaid"),
		Lat:           getEnvFloat("SUPPLIER_LAT", 37.78),
		Lon:           getEnvFloat("SUPPLIER_LON", -122.42),
		Label:         getEnv("SUPPLIER_LABEL", ""),
		BaseLeadHours: getEnvFloat("BASE_LEAD_HOURS", 2.0),
		RadiusKm:      getEnvFloat("RADIUS_KM", 150),
		DeliveryMode:  getEnv("DELIVERY_MODE", "truck"),
		TelemetryURL:  getEnv("TELEMETRY_URL", ""),
		SeedItemsJSON: getEnv("SEED_ITEMS_JSON", ""),
	}

	if cfg.Environment == "production" && cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ADMIN_SECRET is required in production")
	}

	return cfg, nil
}

// parsePeers decodes "ref=url,ref=url" into an address book.
func parsePeers(s string) (map[string]string, error) {
	peers := make(map[string]string)
	for _, pair := range splitList(s) {
		ref, url, ok := strings.Cut(pair, "=")
		if !ok || ref == "" || url == "" {
			return nil, fmt.Errorf("malformed PEERS entry %q, want ref=url", pair)
		}
		peers[ref] = url
	}
	return peers, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
