package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fambudget/internal/auth"
	"fambudget/internal/cache"
	"fambudget/internal/cli"
	"fambudget/internal/config"
	"fambudget/internal/core"
	apphttp "fambudget/internal/http"
	applog "fambudget/internal/log"
	"fambudget/internal/mail"
	"fambudget/internal/services"
)

const (
	totalsCacheSize = 1000
	totalsCacheTTL  = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateAPI)

	ctx := context.Background()
	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	// The API keeps serving without a broker; the worker sweep exports
	// whatever was never announced.
	var events services.Publisher
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		events = amqpClient
		defer amqpClient.Close()
	}

	mailer, err := mail.NewSESMailer(ctx, mail.Config{
		Region:     cfg.SESRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
	})
	if err != nil {
		logger.Error("Failed to initialize mailer", applog.FieldError, err)
		os.Exit(1)
	}

	authSvc, err := auth.NewService(store, mailer, auth.Config{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	})
	if err != nil {
		logger.Error("Failed to initialize auth", applog.FieldError, err)
		os.Exit(1)
	}

	totals := cache.NewLRUCache[core.Money](totalsCacheSize, totalsCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(totals)
	cacheManager.StartCleanup(time.Minute)

	families := services.NewFamilies(store)
	categories := services.NewCategories(store)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, apphttp.Services{
		Store:      store,
		Auth:       authSvc,
		Directory:  services.NewDirectory(store),
		Families:   families,
		Categories: categories,
		Household:  services.NewHousehold(families, categories),
		Ledger:     services.NewLedger(store, events).WithTotalsCache(totals),
		Goals:      services.NewGoals(store, events),
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
	})

	logger.Info("Starting fambudget server",
		"port", cfg.Port,
		"driver", cfg.DBDriver,
		"events", amqpClient != nil,
		"email", mailer.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
