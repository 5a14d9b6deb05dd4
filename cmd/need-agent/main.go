package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wh0th3h3llam1/agent-aid/internal/config"
	"github.com/wh0th3h3llam1/agent-aid/internal/geocode"
	"github.com/wh0th3h3llam1/agent-aid/internal/httpapi"
	"github.com/wh0th3h3llam1/agent-aid/internal/intel"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
	"github.com/wh0th3h3llam1/agent-aid/internal/requester"
	"github.com/wh0th3h3llam1/agent-aid/internal/telemetry"
	"github.com/wh0th3h3llam1/agent-aid/internal/transport"
)

// startupNeed is the NEED_JSON schema, one need broadcast on boot.
type startupNeed struct {
	Items       []protocol.Line   `json:"items"`
	Priority    protocol.Priority `json:"priority"`
	MaxEtaHours float64           `json:"max_eta_hours"`
	Address     string            `json:"address,omitempty"`
	Location    *protocol.Geo     `json:"location,omitempty"`
}

func main() {
	cfg, err := config.LoadNeedAgent()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	addresses := make(map[protocol.PartyRef]string, len(cfg.Peers))
	for ref, url := range cfg.Peers {
		addresses[protocol.PartyRef(ref)] = url
	}
	tr := transport.NewHTTPTransport(addresses)
	em := telemetry.NewEmitter(cfg.TelemetryURL, "need_agent", cfg.NeederID)

	suppliers := make([]protocol.PartyRef, 0, len(cfg.Suppliers))
	for _, ref := range cfg.Suppliers {
		suppliers = append(suppliers, protocol.PartyRef(ref))
	}

	opts := requester.Options{
		NeederID:        cfg.NeederID,
		Suppliers:       suppliers,
		ShortWait:       cfg.ShortWait,
		MaxWait:         cfg.MaxWait,
		DefaultLocation: protocol.Geo{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon, Label: cfg.DefaultLabel},
	}
	if cfg.IntelURL != "" {
		opts.Intel = intel.NewClient(cfg.IntelURL)
	}
	if cfg.GeocodeURL != "" {
		opts.Geocoder = geocode.NewClient(cfg.GeocodeURL)
	}

	svc := requester.New(tr, em, opts)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.NewNeedRouter(svc),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("need agent listening",
			"needer_id", cfg.NeederID, "port", cfg.Port, "suppliers", len(suppliers))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	if cfg.StartupNeedJSON != "" {
		go broadcastStartupNeed(svc, cfg.StartupNeedJSON)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	svc.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func broadcastStartupNeed(svc *requester.Service, rawNeed string) {
	var need startupNeed
	if err := json.Unmarshal([]byte(rawNeed), &need); err != nil {
		slog.Error("NEED_JSON invalid", "error", err)
		return
	}

	// give the inbox a moment to come up so replies are not lost
	time.Sleep(500 * time.Millisecond)

	needID, err := svc.CreateNeed(context.Background(), requester.NeedSpec{
		Lines:       need.Items,
		Priority:    need.Priority,
		MaxEtaHours: need.MaxEtaHours,
		Address:     need.Address,
		Location:    need.Location,
	})
	if err != nil {
		slog.Error("startup need rejected", "error", err)
		return
	}
	slog.Info("startup need broadcast", "need_id", needID)
}
