package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

type RouterConfig struct {
	Templates schedule.TemplateRepository
	Slots     schedule.SlotRepository
	Generator *schedule.Generator
	Bookings  *booking.Service
	Reminders reminder.Repository
	Metrics   *metrics.SchedulingMetrics
	Logger    *logging.Logger
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Post("/templates", upsertTemplateHandler(cfg.Templates))
		r.Get("/templates", listTemplatesHandler(cfg.Templates))
		r.Delete("/templates/{weekday}", deactivateTemplateHandler(cfg.Templates))
		r.Post("/slots/generate", generateSlotsHandler(cfg.Generator, cfg.Metrics))
		r.Get("/slots", listSlotsHandler(cfg.Slots))
	})

	r.Post("/bookings", createBookingHandler(cfg.Bookings))
	r.Post("/bookings/{appointmentID}/cancel", cancelBookingHandler(cfg.Bookings))
	r.Post("/bookings/{appointmentID}/reschedule", rescheduleBookingHandler(cfg.Bookings))
	r.Get("/bookings/{appointmentID}/reminders", listRemindersHandler(cfg.Reminders))

	return r
}
