package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/credentials"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/hub"
	"studio/internal/imagegen"
	"studio/internal/infra"
	"studio/internal/orchestrator"
	"studio/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	store, closeStore, err := credentials.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CredentialBackend).Msg("failed to open credential store")
	}
	defer closeStore()

	client := imagegen.NewClient(imagegen.Options{
		BaseURL: cfg.ImageAPIBaseURL,
		Timeout: cfg.ImageAPITimeout,
		Logger:  &logger,
	})
	sockets := hub.New(logger)
	orch := orchestrator.New(orchestrator.Options{
		API:          client,
		Credentials:  store,
		State:        session.New(cfg.DefaultModel),
		Notifier:     sockets,
		Logger:       logger,
		DefaultModel: cfg.DefaultModel,
	})
	if err := orch.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start session")
	}

	router := httpapi.NewRouter(httpapi.Options{
		App:             handlers.NewApp(orch, logger, cfg.MaxMaskBytes),
		Socket:          http.HandlerFunc(sockets.ServeWS),
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("backend", cfg.CredentialBackend).Msgf("studio listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	sockets.Close()
	logger.Info().Msg("server stopped")
}
