/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load env config (.env honored in development)
  2. Open SQLite store
  3. Wire processor, executor, handler, router
  4. Start the in-process sweep scheduler
  5. Serve HTTP with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop the scheduler, drain active requests (30s),
  close the store.

FLAGS:
  -port    overrides PORT
  -db      overrides DB_PATH (":memory:" for an in-memory database)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kinen-app/challenge-engine/api"
	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/config"
	"github.com/kinen-app/challenge-engine/payments"
	"github.com/kinen-app/challenge-engine/settlement"
	"github.com/kinen-app/challenge-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	processor := payments.NewStripe(cfg.StripeSecretKey)
	executor := settlement.NewExecutor(store, processor, challenge.PayoutPolicy{FlatFee: cfg.PayoutFlatFee})

	handler := api.NewHandler(store, executor, processor, cfg.SweepSecret, cfg.StripeWebhookSecret)
	auth := api.NewAuth(cfg.JWTSecret)
	router := api.NewRouter(handler, auth)

	scheduler := api.NewSweepScheduler(executor, cfg.SweepInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
