package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/classifier"
	"github.com/iliyamo/fernid/internal/config"
	"github.com/iliyamo/fernid/internal/database"
	"github.com/iliyamo/fernid/internal/gateway"
	"github.com/iliyamo/fernid/internal/handler"
	"github.com/iliyamo/fernid/internal/middleware"
	"github.com/iliyamo/fernid/internal/queue"
	"github.com/iliyamo/fernid/internal/repository"
	"github.com/iliyamo/fernid/internal/router"
	"github.com/iliyamo/fernid/internal/service"
	"github.com/iliyamo/fernid/internal/session"
	"github.com/iliyamo/fernid/internal/settings"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func openBackend(ctx context.Context) (*gateway.Client, error) {
	return gateway.Default.Client(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := database.Migrate(ctx, client.DB, database.MySQL); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func runConsume(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	url := cfg.RabbitURL
	if url == "" {
		url = queue.BrokerURL()
	}
	err := queue.NewConsumer(url, cfg.ActivityLogPath, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	// Redis backs settings, caching and rate limiting; without it the
	// server still runs with in-memory settings.
	rdb := config.NewRedisClient(ctx)
	var store settings.Store = settings.NewMemoryStore()
	if rdb != nil {
		defer rdb.Close()
		store = settings.NewRedisStore(rdb, "settings")
	} else {
		logger.Warn("redis unavailable; using in-memory settings, cache and rate limit disabled")
	}

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher(cfg.RabbitURL, logger)
	}

	identities := repository.NewIdentityRepo(client.DB)
	profiles := repository.NewProfileRepo(client.DB)
	scans := repository.NewScanRepo(client.DB)
	species := repository.NewSpeciesRepo(client.DB)
	sessionRepo := repository.NewSessionRepo(client.DB)
	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL, sessionRepo, cfg.IsProd())

	var avatars service.AvatarUploader
	if client.Avatars != nil {
		avatars = client.Avatars
	}
	authSvc := service.NewAuthService(identities, profiles, avatars, cfg.BcryptCost, logger)
	adminSvc := service.NewAdminService(profiles, scans, species, events, logger).WithAvatars(avatars)
	scanSvc := service.NewScanService(scans, events, logger)
	speciesSvc := service.NewSpeciesService(species, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, router.Deps{
		Sessions: sessions,
		Guard: &middleware.Guard{
			Sessions:         sessions,
			Users:            adminSvc,
			LegacyFullAccess: cfg.LegacyAdminFullAccess,
			Timeout:          cfg.RequestTimeout,
			Log:              logger,
		},
		Cache:     middleware.NewResponseCache(config.LoadCacheConfig(), rdb, logger),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		Auth:      handler.NewAuthHandler(cfg, authSvc, sessions, logger),
		User: &handler.UserHandler{
			Cfg:        cfg,
			Scans:      scanSvc,
			Auth:       authSvc,
			Classifier: classifier.NewSimulated(nil, cfg.ScanDelay),
			Settings:   store,
			Sessions:   sessions,
			Log:        logger,
		},
		Admin: &handler.AdminHandler{
			Cfg:      cfg,
			Admin:    adminSvc,
			Scans:    scanSvc,
			Species:  speciesSvc,
			Settings: store,
			Revoker:  sessionRepo,
			Log:      logger,
		},
		Species: &handler.SpeciesHandler{Cfg: cfg, Species: speciesSvc},
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
