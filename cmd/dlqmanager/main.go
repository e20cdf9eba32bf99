package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/workload/internal/config"
	"example.com/workload/internal/outbox"
)

// dlqBatchSize bounds how many dead-lettered events one pass handles.
const dlqBatchSize = 50

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("dlq manager metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("workload dlq manager polling every %s, quarantine after %d retries", cfg.DLQPollInterval, cfg.DLQMaxRetries)
	replayLoop(ctx, manager, cfg.DLQPollInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}

// replayLoop drives retry passes until the context is cancelled.
func replayLoop(ctx context.Context, manager *outbox.DLQManager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("workload dlq manager stopping")
			return
		case <-ticker.C:
			handled, err := manager.RunOnce(ctx, dlqBatchSize)
			switch {
			case err != nil:
				log.Printf("replay pass failed: %v", err)
			case handled > 0:
				log.Printf("handled %d dead-lettered events", handled)
			}
		}
	}
}
