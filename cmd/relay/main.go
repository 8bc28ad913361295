// Command relay runs the chat relay service: a WebSocket chat endpoint
// that forwards prompts to an external completion service, enforces
// per-session usage quotas, and streams answers back in chunks.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/costoptimizer/chat-relay/internal/config"
	"github.com/costoptimizer/chat-relay/internal/monitoring"
	"github.com/costoptimizer/chat-relay/internal/relay"
	"github.com/costoptimizer/chat-relay/internal/store"
	"github.com/costoptimizer/chat-relay/internal/upstream"
	"github.com/costoptimizer/chat-relay/internal/usage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "path to .env file loaded before config")
	flag.Parse()

	// Missing .env is fine; environment variables may come from the shell.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	initLogging(cfg.LogLevel)

	telemetry, err := monitoring.NewTracker(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry init failed")
	}
	defer func() { _ = telemetry.Close() }()

	var archive relay.TurnRecorder
	if cfg.Archive.Enabled {
		a, err := store.Open(cfg.Archive.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Archive.Path).Msg("archive init failed")
		}
		defer func() { _ = a.Close() }()
		archive = a
		log.Info().Str("path", cfg.Archive.Path).Msg("transcript archive enabled")
	}

	pacer := upstream.NewPacer(cfg.Upstream.MinCallInterval.Std())
	gateway := upstream.NewClient(cfg.Upstream, pacer)
	estimator := usage.ForConfig(cfg.Quota.Estimator)

	srv := relay.NewServer(cfg, gateway, estimator, telemetry, archive)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}
}

// initLogging sets the global level and switches to the console writer
// when stdout is a terminal.
func initLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly})
	}
}
