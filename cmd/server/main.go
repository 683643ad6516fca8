package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"matchday/internal/api"
	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/match/neural"
	"matchday/internal/metrics"
	"matchday/internal/runner"
	"matchday/internal/store"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("⚽ ================================")
	log.Println("⚽  MATCHDAY - SIMULATION SERVER")
	log.Println("⚽ ================================")

	// Load centralized configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	engineCfg := appConfig.Engine
	poolCfg := appConfig.Pool

	log.Printf("⚽ Config: %v per tick, %v halves (%d ticks), %d workers, queue %d",
		engineCfg.TickInterval, engineCfg.HalfLength, engineCfg.TicksPerHalf(), poolCfg.Workers, poolCfg.QueueSize)

	registry, err := neural.LoadBundled()
	if err != nil {
		log.Fatalf("❌ Failed to load decision networks: %v", err)
	}
	log.Printf("🧠 Loaded %d decision networks", len(registry.Keys()))

	if engineCfg.EventLogDir != "" {
		log.Printf("📝 Event logs: %s", engineCfg.EventLogDir)
	}

	// Start debug server
	if err := api.StartDebugServer(appConfig.Observability); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	results := store.New(poolCfg.MaxResults)
	pool := runner.NewPool(results, poolCfg, match.Options{
		Engine:    engineCfg,
		Field:     appConfig.Field,
		Tactics:   appConfig.Tactics,
		Evaluator: registry,
		Observer:  metrics.Observer{},
	})
	pool.Start()
	log.Println("✅ Match pool started")

	server := api.NewServer(pool, results, appConfig.Server)

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	if appConfig.Server.APIKey == "" {
		log.Println("⚠️ API_KEY not set - match submission is open")
	}

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	pool.Stop()
	log.Println("👋 Goodbye!")
}
