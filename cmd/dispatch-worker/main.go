package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/scheduling-engine/internal/config"
	"github.com/clinicore/scheduling-engine/internal/db"
	"github.com/clinicore/scheduling-engine/internal/notify"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("dispatch-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	log.Printf("running dispatch worker in env=%s interval=%s", cfg.Env, cfg.DispatchInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := reminder.NewPgRepository(pgPool)
	notifier := notify.WithTimeout(notify.NewLogNotifier(logger), cfg.SendTimeout)
	m := metrics.NewSchedulingMetrics(nil)
	dispatcher := reminder.NewDispatcher(repo, notifier, cfg.SendDelay, m, logger)

	// Run once at startup
	runOnce(rootCtx, dispatcher)

	ticker := time.NewTicker(cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping dispatch worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, dispatcher)
		}
	}
}

func runOnce(ctx context.Context, d *reminder.Dispatcher) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	report, err := d.ProcessPending(runCtx)
	if err != nil {
		log.Printf("dispatch run error: %v", err)
		return
	}
	log.Printf("dispatch run complete in %s: due=%d sent=%d failed=%d skipped=%d",
		time.Since(start), report.Due, report.Sent, report.Failed, report.Skipped)
}
