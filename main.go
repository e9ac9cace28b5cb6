// main.go
//
// Entry point for the Word Collector server.
//   - Loads .env, sets the log level, loads word lists.
//   - Opens sqlite and applies the embedded migrations.
//   - Enables OTLP tracing when OTEL_EXPORTER_OTLP_ENDPOINT is set.
//   - Serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
//   - Sweeps finished and idle sessions once a minute.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordcollector/assets"
	"github.com/robalobadob/wordcollector/internal/database"
	"github.com/robalobadob/wordcollector/internal/httpserver"
	"github.com/robalobadob/wordcollector/internal/store"
	"github.com/robalobadob/wordcollector/internal/telemetry"
	"github.com/robalobadob/wordcollector/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}
	targets, dict := words.Stats()
	log.Info().Int("targets", targets).Int("dictionary", dict).Msg("word lists loaded")

	db, err := database.Open(getEnv("DB_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	applied, err := database.MigrateContext(ctx, db, assets.Migrations())
	if err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	log.Info().Strs("applied", applied).Msg("database ready")

	if telemetry.Enabled() {
		shutdown, err := telemetry.Setup(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("tracing disabled")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	srv := httpserver.New(store.NewMemoryStore(), db, httpserver.Options{})
	port := getEnv("PORT", "5175")
	go srv.RunJanitor(ctx, time.Minute)

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("starting wordcollector")
		errc <- srv.Start(":" + port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
