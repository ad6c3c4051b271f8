package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/app"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/authpw"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/config"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/email"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/export"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/gitrepo"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/jobs"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/search"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/session"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/summary"
)

func main() {
	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.Pool{MaxOpen: cfg.DBMaxConns})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	seed, err := store.LoadSeed(cfg.SeedFile)
	if err != nil {
		log.Fatalf("load question seed: %v", err)
	}
	if err := store.SeedGlobalQuestions(ctx, dataStore, seed); err != nil {
		log.WithError(err).Warn("seed global questions (will retry on next restart)")
	}

	if err := os.MkdirAll(cfg.TemplatesDir, 0o755); err != nil {
		log.Fatalf("failed to create templates dir: %v", err)
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppURL:   cfg.AppURL,
	})

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPostgres(dataStore))

	var archive export.Archive
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioArchive, err := export.NewMinioArchive(ctx, export.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.WithError(err).Warn("export archive disabled")
		} else {
			archive = minioArchive
		}
	}

	deps := app.Deps{
		Auth:      authpw.NewService(dataStore),
		Search:    searchService,
		Exporter:  export.NewService(dataStore, archive),
		Templates: gitrepo.New(cfg.TemplatesDir),
		Mailer:    mailer,
	}

	var workers sync.WaitGroup
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := session.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		redisStore := session.NewRedisStore(client)
		defer redisStore.Close()

		queue := session.NewSummaryQueue(client)
		deps.Sessions = redisStore
		deps.Queue = queue
		deps.Drafts = func(trainerID int64) intake.Storage {
			return session.NewDraftStorage(client, fmt.Sprintf("trainer-%d", trainerID), cfg.DraftTTL)
		}

		generator := summary.NewHTTPGenerator(cfg.SummaryGeneratorURL)
		for i := 0; i < cfg.SummaryWorkers; i++ {
			worker := summary.NewWorker(queue, dataStore, generator, mailer)
			workers.Add(1)
			go func() {
				defer workers.Done()
				worker.Run(ctx)
			}()
		}
		log.Infof("summary: %d workers on redis queue", cfg.SummaryWorkers)
	} else {
		log.Warnf("REDIS_URL not set: sessions cannot be refreshed or revoked, summaries stay pending")
	}

	scheduler, err := jobs.New(jobs.Config{
		ReindexSchedule: cfg.ReindexSchedule,
		SweepSchedule:   cfg.SweepSchedule,
		StaleFormAge:    cfg.StaleFormAge,
	}, searchService, dataStore)
	if err != nil {
		log.Fatalf("scheduled jobs: %v", err)
	}
	scheduler.Start()

	service := app.New(cfg, dataStore, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("SmartGains API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	scheduler.Stop(shutdownCtx)
	workers.Wait()
}
