package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/config"
	"github.com/apelisol/stepakash-wallet/internal/db"
	"github.com/apelisol/stepakash-wallet/internal/deriv"
	"github.com/apelisol/stepakash-wallet/internal/handlers"
	"github.com/apelisol/stepakash-wallet/internal/services"
	"github.com/apelisol/stepakash-wallet/internal/store"
	"github.com/apelisol/stepakash-wallet/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	bridgeClient := bridge.NewClient(cfg.BridgeBaseURL, cfg.BridgeAPIKey)
	derivClient := deriv.NewClient(cfg.DerivEndpoint, cfg.DerivAppID, cfg.DerivToken)
	jobs := store.NewJobStore(database)

	retryDelay := time.Duration(cfg.JobRetrySeconds) * time.Second
	deposits := services.NewDepositService(bridgeClient, derivClient, jobs, cfg.OpsPhone, cfg.JobMaxAttempts, retryDelay)
	withdrawals := services.NewWithdrawalService(bridgeClient, cfg.OpsPhone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.New(jobs, deposits, cfg.WorkerBatchSize, time.Duration(cfg.JobStaleSeconds)*time.Second)
	if err := sweeper.Start(ctx, cfg.WorkerSchedule); err != nil {
		log.Fatalf("failed to start deposit worker: %v", err)
	}

	handler := handlers.New(bridgeClient, bridgeClient, deposits, withdrawals, cfg.InternalAPIKey)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(cfg.AllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("wallet bridge API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	cancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
