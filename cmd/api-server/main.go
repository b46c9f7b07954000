package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/scheduling-engine/internal/api"
	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/config"
	"github.com/clinicore/scheduling-engine/internal/db"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	redisclient "github.com/clinicore/scheduling-engine/internal/redis"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

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

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	rules, err := reminder.LoadRules(cfg.ReminderRulesPath)
	if err != nil {
		log.Fatalf("reminder rules error: %v", err)
	}

	m := metrics.NewSchedulingMetrics(nil)

	scheduleRepo := schedule.NewPgRepository(pgPool)
	reminderRepo := reminder.NewPgRepository(pgPool)
	locker := redisclient.NewRedisProviderLocker(rdb, cfg.LockTTL)

	generator := schedule.NewGenerator(scheduleRepo, scheduleRepo, locker, logger)
	reminderScheduler := reminder.NewScheduler(reminderRepo, rules, m, logger)
	bookings := booking.NewService(scheduleRepo, reminderScheduler, m, logger)

	router := api.NewRouter(api.RouterConfig{
		Templates: scheduleRepo,
		Slots:     scheduleRepo,
		Generator: generator,
		Bookings:  bookings,
		Reminders: reminderRepo,
		Metrics:   m,
		Logger:    logger,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	case <-rootCtx.Done():
	}

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
