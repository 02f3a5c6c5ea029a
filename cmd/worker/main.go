package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/config"
	"github.com/apelisol/stepakash-wallet/internal/db"
	"github.com/apelisol/stepakash-wallet/internal/deriv"
	"github.com/apelisol/stepakash-wallet/internal/services"
	"github.com/apelisol/stepakash-wallet/internal/store"
	"github.com/apelisol/stepakash-wallet/internal/worker"
)

// Standalone deposit worker for running the completion loop outside the API
// process.
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.New(jobs, deposits, cfg.WorkerBatchSize, time.Duration(cfg.JobStaleSeconds)*time.Second)
	if err := sweeper.Start(ctx, cfg.WorkerSchedule); err != nil {
		log.Fatalf("failed to start deposit worker: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	cancel()
	sweeper.Stop()
}
