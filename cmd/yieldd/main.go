package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"yieldnet/config"
	"yieldnet/core/state"
	"yieldnet/gateway"
	"yieldnet/native/agreement"
	"yieldnet/native/compliance"
	"yieldnet/native/distribution"
	"yieldnet/native/governance"
	"yieldnet/native/ledger"
	"yieldnet/native/registry"
	"yieldnet/observability/logging"
	"yieldnet/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("YIELD_ENV"))
	logger := logging.Setup("yieldd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := seedPauses(manager, cfg.Pauses); err != nil {
		logger.Error("Failed to seed pause registry", slog.Any("error", err))
		os.Exit(1)
	}

	gate, err := compliance.NewListGate(cfg.Compliance)
	if err != nil {
		logger.Error("Failed to build compliance gate", slog.Any("error", err))
		os.Exit(1)
	}
	moduleAddr, err := cfg.ModuleAuthority()
	if err != nil {
		logger.Error("Failed to decode module authority", slog.Any("error", err))
		os.Exit(1)
	}
	verifier, err := cfg.Verifier()
	if err != nil {
		logger.Error("Failed to decode verifier address", slog.Any("error", err))
		os.Exit(1)
	}

	recorder := gateway.NewEventRecorder(logger)

	assets := registry.NewEngine(verifier)
	assets.SetState(manager)
	assets.SetGate(gate)
	assets.SetEmitter(recorder)

	shares := ledger.NewEngine(moduleAddr, cfg.Ledger.LedgerParams())
	shares.SetState(manager)
	shares.SetGate(gate)
	shares.SetPauses(manager)
	shares.SetEmitter(recorder)

	distributor := distribution.NewEngine()
	distributor.SetState(manager)
	distributor.SetEmitter(recorder)

	agreements := agreement.NewEngine(moduleAddr, cfg.Agreement.AgreementParams())
	agreements.SetState(manager)
	agreements.SetRegistry(assets)
	agreements.SetShares(shares)
	agreements.SetDistributor(distributor)
	agreements.SetGate(gate)
	agreements.SetPauses(manager)
	agreements.SetEmitter(recorder)

	gov := governance.NewEngine(cfg.Governance.GovernancePolicy())
	gov.SetState(manager)
	gov.SetPauses(manager)
	gov.SetEmitter(recorder)

	server := gateway.NewServer(cfg.Gateway, gateway.Deps{
		State:      manager,
		Registry:   assets,
		Agreements: agreements,
		Ledgers:    shares,
		Governance: gov,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func seedPauses(manager *state.Manager, pauses config.Pauses) error {
	seeds := map[string]bool{
		"ledger":     pauses.Ledger,
		"agreement":  pauses.Agreement,
		"governance": pauses.Governance,
	}
	for module, paused := range seeds {
		if !paused {
			continue
		}
		if err := manager.SetPaused(module, true); err != nil {
			return err
		}
	}
	return nil
}
