package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"visuallab/internal/http/handlers"
	httpapi "visuallab/internal/http/httpapi"
	"visuallab/internal/infra"
	"visuallab/internal/infra/geoip"
	"visuallab/internal/middleware"
	"visuallab/internal/service"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Build(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer func() {
			_ = resolver.Close()
		}()
		lookup = resolver.CountryCode
	}

	app := handlers.NewApp(handlers.Deps{
		Store:          svc.Store,
		Orchestrator:   svc.Orchestrator,
		Engine:         svc.Engine,
		Capturer:       svc.Capturer,
		Notices:        svc.Notices,
		Files:          svc.Files,
		Logger:         &logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	router := httpapi.NewRouter(ctx, app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("text_model", svc.Gemini.TextModel()).
			Str("image_model", svc.Gemini.ImageModel()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	svc.Orchestrator.Wait()
	logger.Info().Msg("server stopped")
}
