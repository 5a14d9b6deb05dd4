package config

import (
	"testing"
	"time"
)

func TestParsePeers(t *testing.T) {
	peers, err := parsePeers("supply_1=http://localhost:8091, supply_2=http://localhost:8092")
	if err != nil {
		t.Fatalf("parsePeers: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("len = %d, want 2", len(peers))
	}
	if peers["supply_1"] != "http://localhost:8091" {
		t.Errorf("supply_1 = %q", peers["supply_1"])
	}
}

func TestParsePeersMalformed(t *testing.T) {
	for _, in := range []string{"supply_1", "=http://x", "supply_1="} {
		if _, err := parsePeers(in); err == nil {
			t.Errorf("parsePeers(%q) accepted malformed entry", in)
		}
	}
}

func TestLoadNeedAgentDefaults(t *testing.T) {
	cfg, err := LoadNeedAgent()
	if err != nil {
		t.Fatalf("LoadNeedAgent: %v", err)
	}
	if cfg.Port != "8090" || cfg.NeederID != "needer_1" {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if cfg.ShortWait != 3*time.Second || cfg.MaxWait != 9*time.Second {
		t.Errorf("waits = %v/%v, want 3s/9s", cfg.ShortWait, cfg.MaxWait)
	}
}

func TestLoadNeedAgentSuppliersDefaultToPeers(t *testing.T) {
	t.Setenv("PEERS", "supply_1=http://localhost:8091")
	cfg, err := LoadNeedAgent()
	if err != nil {
		t.Fatalf("LoadNeedAgent: %v", err)
	}
	if len(cfg.Suppliers) != 1 || cfg.Suppliers[0] != "supply_1" {
		t.Errorf("suppliers = %v, want [supply_1]", cfg.Suppliers)
	}
}

func TestLoadSupplyAgentRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	if _, err := LoadSupplyAgent(); err == nil {
		t.Error("production config without ADMIN_SECRET accepted")
	}
}
