package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/config"
	"grootboek.dev/internal/httpapi"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/obs"
	"grootboek.dev/internal/period"
	"grootboek.dev/internal/store/pg"
	"grootboek.dev/internal/vat"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		svc        ledger.Service
		probe      httpapi.ReadyProbe
		closeStore func() error
	)
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN, vat.MustDefaultTable())
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		svc = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeStore = store.Close
	} else {
		// No DSN: run the in-memory store with the demo administration.
		// Useful for local development and smoke tests, not for production.
		ch, err := chart.NewDefault("demo")
		if err != nil {
			log.Fatalf("default chart: %v", err)
		}
		mem := ledger.NewInMemory(vat.MustDefaultTable(), audit.LogSink{})
		year := time.Now().UTC().Year()
		mem.RegisterTenant(ch,
			period.Quarter("demo", year, 1),
			period.Quarter("demo", year, 2),
			period.Quarter("demo", year, 3),
			period.Quarter("demo", year, 4),
		)
		svc = mem
		log.Println("GROOTBOEK_PG_DSN not set; using in-memory store with tenant \"demo\"")
	}

	api := httpapi.New(svc, probe, version)
	// RequestID sits outermost so every inner layer, Logging included, sees
	// the id in the request context.
	handler := httpapi.RequestID(
		httpapi.Logging(
			httpapi.SecurityHeaders(
				httpapi.MaxBodyBytes(
					httpapi.RateLimit(api.Handler(), cfg.RateLimitBurst, cfg.RateLimitPerSecond),
					cfg.MaxBodyBytes,
				),
			),
		),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting grootboek-api %s on %s", version, srv.Addr)

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
	if closeStore != nil {
		_ = closeStore()
	}
	log.Println("Stopped")
}
