package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"mohaweel/internal/http/handlers"
	httpapi "mohaweel/internal/http/httpapi"
	"mohaweel/internal/infra"
	"mohaweel/internal/infra/geoip"
	"mohaweel/internal/providers/genai"
	"mohaweel/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set; every generation will fail with a credential error")
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	sessions := session.NewStore(client, cfg.SessionTTL, &logger)
	app := handlers.NewApp(cfg, logger, sessions)
	router := httpapi.NewRouter(app, httpapi.Options{CountryLookup: resolver.Lookup()})
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("model", client.Model()).Msg("API listening")
		return server.Run(ctx)
	})
	g.Go(func() error {
		return sessions.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server failed")
	}
	app.Wait()
	logger.Info().Msg("server stopped")
}
