package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sevyedu/sevyai/internal/completion"
	"github.com/sevyedu/sevyai/internal/config"
	"github.com/sevyedu/sevyai/internal/counters"
	"github.com/sevyedu/sevyai/internal/httpapi"
	"github.com/sevyedu/sevyai/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config error")
	}

	logger := newLogger(cfg)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := counters.NewStore(ctx, cfg.CountersDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("counter store init failed")
	}
	defer store.Close()
	if cfg.CountersDatabaseURL == "" {
		logger.Warn().Msg("no counter store configured, using in-memory counters")
	}

	cache := counters.NewCache(store, cfg.CountersCacheTTL, metrics, logger.With().Str("component", "counters").Logger())

	var generator completion.Generator
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("no OPENAI_API_KEY configured, serving canned replies")
		generator = completion.NewMockGenerator()
	} else {
		generator = completion.NewClient(completion.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.ChatModel,
			Temperature: float32(cfg.ChatTemperature),
			MaxTokens:   cfg.ChatMaxTokens,
			Persona:     cfg.PersonaPrompt,
			StripBold:   cfg.ReplyStripBold,
			Timeout:     cfg.UpstreamTimeout,
		}, counters.NewAnswerRecorder(store), metrics, logger.With().Str("component", "completion").Logger())
	}

	srv := httpapi.New(cfg, generator, cache, metrics, logger.With().Str("component", "httpapi").Logger())

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
