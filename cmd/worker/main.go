package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"

	"stylistapi/dbhelper"
	"stylistapi/models"
	"stylistapi/services"
	"stylistapi/tasks"
)

func main() {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         os.Getenv("SENTRY_DSN"),
		Environment: services.GetEnv("ENV", "local"),
		Release:     "stylistapi@1.0.0",
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	cfg := services.LoadConfigFromEnv()
	provider, err := services.NewProviderFromConfig(cfg)
	if err != nil {
		log.Fatalf("[Queue] Failed to initialize LLM provider: %v", err)
	}
	responseCache, err := services.NewResponseCache(cfg)
	if err != nil {
		log.Fatalf("[Queue] Failed to initialize response cache: %v", err)
	}

	db := dbhelper.SetupDB()
	svc := services.NewRecommendationService(
		provider,
		responseCache,
		models.DefaultTaxonomy(),
		dbhelper.NewWardrobeRepository(db),
		services.LogTelemetryRecorder{},
		cfg,
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"default": 7,
		}},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeGarmentAnalysis, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleGarmentAnalysisTask(ctx, t, db, svc)
	})
	mux.HandleFunc(tasks.TypeStylingRecommendation, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleStylingRecommendationTask(ctx, t, svc)
	})

	log.Println("Starting worker...")
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run asynq server: %v", err)
	}
}
