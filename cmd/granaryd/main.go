package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"granary/config"
	"granary/native/registry"
	"granary/native/vault"
	"granary/observability"
	"granary/observability/logging"
	"granary/rpc"
	"granary/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "granary.toml", "path to granaryd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("granaryd", cfg.Env, &logging.FileConfig{
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	asset, err := cfg.Asset()
	if err != nil {
		log.Fatalf("vault asset: %v", err)
	}
	owner, err := cfg.Owner()
	if err != nil {
		log.Fatalf("vault owner: %v", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open database at %s: %v", cfg.DataDir, err)
	}
	defer db.Close()

	store := vault.NewStore(db)
	ledger := vault.NewRewardLedger(store, cfg.RewardDeltaGuard())
	engine := vault.NewEngine(store, ledger, vault.Params{
		Asset:         asset,
		MinDeposit:    cfg.MinDeposit(),
		EpochDuration: cfg.Vault.EpochDurationSeconds,
	})

	reg := registry.NewRegistry(owner)
	if operator, ok, err := cfg.Operator(); err != nil {
		log.Fatalf("vault operator: %v", err)
	} else if ok {
		if err := reg.SetAuthorizedCaller(owner, operator); err != nil {
			log.Fatalf("designate operator: %v", err)
		}
		logger.Info("registry operator designated")
	}
	engine.SetRegistry(reg)

	recorder := observability.NewRecorder(logger)
	engine.SetEmitter(recorder)
	reg.SetEmitter(recorder)

	server := rpc.NewServer(engine, reg, owner, cfg.Auth.APITokens, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background harvest loop. CheckAndHarvest is a no-op until the epoch
	// boundary condition is met, so a short poll interval is safe.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				harvested, err := engine.CheckAndHarvest()
				if err != nil {
					logger.Error("harvest failed", "err", err)
					continue
				}
				if harvested {
					epoch, _ := engine.CurrentEpoch()
					logger.Info("harvest completed", "epoch", epoch)
				}
			}
		}
	}()

	go func() {
		logger.Info("granaryd listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
		os.Exit(1)
	}
}
