package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/scheduling-engine/internal/db"
	"github.com/clinicore/scheduling-engine/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providerIDs, err := seedProviders(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}

	repo := schedule.NewPgRepository(pool)
	if err := seedTemplates(context.Background(), repo, providerIDs); err != nil {
		log.Fatalf("seed templates: %v", err)
	}

	if err := generateSlots(context.Background(), repo, providerIDs); err != nil {
		log.Fatalf("generate slots: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("providers seeded")
	return ids, nil
}

// seedTemplates gives every provider a Monday..Friday working pattern with
// randomized hours and appointment lengths.
func seedTemplates(ctx context.Context, repo *schedule.PgRepository, providerIDs []uuid.UUID) error {
	log.Printf("seeding templates for %d providers", len(providerIDs))

	durations := []int{15, 20, 30, 45, 60}

	for _, providerID := range providerIDs {
		startHour := gofakeit.Number(7, 10)
		endHour := gofakeit.Number(15, 19)
		duration := durations[gofakeit.Number(0, len(durations)-1)]
		buffer := gofakeit.Number(0, 15)

		for weekday := 1; weekday <= 5; weekday++ {
			tpl := schedule.ScheduleTemplate{
				ID:              uuid.New(),
				ProviderID:      providerID,
				Weekday:         weekday,
				StartTime:       fmt.Sprintf("%02d:00", startHour),
				EndTime:         fmt.Sprintf("%02d:00", endHour),
				DurationMinutes: duration,
				BufferMinutes:   buffer,
				Active:          true,
			}
			if err := repo.UpsertTemplate(ctx, &tpl); err != nil {
				return fmt.Errorf("provider %s weekday %d: %w", providerID, weekday, err)
			}
		}
	}

	log.Println("templates seeded")
	return nil
}

func generateSlots(ctx context.Context, repo *schedule.PgRepository, providerIDs []uuid.UUID) error {
	from := time.Now()
	to := from.AddDate(0, 0, 14)
	log.Printf("generating slots %s..%s for %d providers",
		from.Format(time.DateOnly), to.Format(time.DateOnly), len(providerIDs))

	gen := schedule.NewGenerator(repo, repo, nil, nil)

	totalCreated := 0
	for _, providerID := range providerIDs {
		report, err := gen.Generate(ctx, providerID, from, to)
		if err != nil {
			return fmt.Errorf("provider %s: %w", providerID, err)
		}
		totalCreated += report.SlotsCreated
	}

	log.Printf("slots generated: %d", totalCreated)
	return nil
}
