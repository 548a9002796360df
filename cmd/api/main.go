package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promptly.app/internal/auth"
	"promptly.app/internal/config"
	"promptly.app/internal/httpapi"
	"promptly.app/internal/inbox"
	"promptly.app/internal/ingest"
	"promptly.app/internal/instagram"
	"promptly.app/internal/obs"
	"promptly.app/internal/store/pg"
	"promptly.app/internal/stream"
)

var (
	version = "0.4.0"
	commit  = "dev"
)

func main() {
	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// Хранилище: Postgres в проде, память для локального запуска без БД
	var (
		store   inbox.Store
		probe   httpapi.ReadyProbe
		pgStore *pg.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore}
	} else {
		log.Println("PROMPTLY_PG_DSN is empty, using in-memory store")
		store = inbox.NewInMemory()
	}

	ig := instagram.NewClient(instagram.Config{
		BaseURL:     cfg.GraphBaseURL,
		AppID:       cfg.FacebookAppID,
		AppSecret:   cfg.FacebookAppSecret,
		RedirectURL: cfg.FacebookRedirect,
	})
	events := stream.New()
	pipeline := ingest.New(store, ig, events)

	api := httpapi.New(store, tokens, pipeline, ig, events, probe, httpapi.Options{
		FrontendURL:        cfg.FrontendURL,
		WebhookVerifyToken: cfg.WebhookVerifyToken,
		WebhookSecret:      cfg.WebhookSecret,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(cfg.MaxBodyBytes, cfg.RateBurst, cfg.RatePerSec),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting promptly-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
