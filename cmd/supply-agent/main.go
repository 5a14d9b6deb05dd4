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

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wh0th3h3llam1/agent-aid/internal/config"
	"github.com/wh0th3h3llam1/agent-aid/internal/httpapi"
	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
	"github.com/wh0th3h3llam1/agent-aid/internal/supplier"
	"github.com/wh0th3h3llam1/agent-aid/internal/telemetry"
	"github.com/wh0th3h3llam1/agent-aid/internal/transport"
)

func main() {
	cfg, err := config.LoadSupplyAgent()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	var store ledger.Store
	var mongoClient *mongo.Client
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			slog.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		mongoClient = c
		ms := ledger.NewMongoStore(c, cfg.MongoDB)
		if err := ms.EnsureIndexes(ctx); err != nil {
			slog.Warn("mongo index creation failed", "error", err)
		}
		store = ms
		slog.Info("mongo ledger enabled", "db", cfg.MongoDB)
	} else {
		store = ledger.NewMemoryStore()
		slog.Info("in-memory ledger (set MONGO_URI to persist)")
	}

	addresses := make(map[protocol.PartyRef]string, len(cfg.Peers))
	for ref, url := range cfg.Peers {
		addresses[protocol.PartyRef(ref)] = url
	}
	tr := transport.NewHTTPTransport(addresses)
	em := telemetry.NewEmitter(cfg.TelemetryURL, "supply_agent", cfg.SupplierID)

	svc := supplier.New(store, tr, em, cfg.SupplierID, cfg.AdminSecret)

	var seed []ledger.Line
	if cfg.SeedItemsJSON != "" {
		if err := json.Unmarshal([]byte(cfg.SeedItemsJSON), &seed); err != nil {
			slog.Error("SEED_ITEMS_JSON invalid", "error", err)
			os.Exit(1)
		}
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = svc.Start(startCtx, ledger.SupplierConfig{
		SupplierID:    cfg.SupplierID,
		Lat:           cfg.Lat,
		Lon:           cfg.Lon,
		Label:         cfg.Label,
		BaseLeadHours: cfg.BaseLeadHours,
		RadiusKm:      cfg.RadiusKm,
		DeliveryMode:  cfg.DeliveryMode,
	}, seed)
	cancel()
	if err != nil {
		slog.Error("supplier start failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.NewSupplyRouter(svc, store, cfg.SupplierID, cfg.AdminSecret),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("supply agent listening", "supplier_id", cfg.SupplierID, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if mongoClient != nil {
		_ = mongoClient.Disconnect(shutdownCtx)
	}
}
