package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/proxyward/proxyward/internal/access"
	"github.com/proxyward/proxyward/internal/bot"
	"github.com/proxyward/proxyward/internal/config"
	"github.com/proxyward/proxyward/internal/infra"
	"github.com/proxyward/proxyward/internal/logging"
	"github.com/proxyward/proxyward/internal/menu"
	"github.com/proxyward/proxyward/internal/proxy"
	"github.com/proxyward/proxyward/internal/report"
	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/rotation"
	"github.com/proxyward/proxyward/internal/server"
	"github.com/proxyward/proxyward/internal/telegram"
	"github.com/proxyward/proxyward/internal/user"
	"github.com/proxyward/proxyward/internal/wizard"
)

func main() {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := infra.EnsureSchema(ctx, db); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache == nil {
		logger.Info("running without redis")
	} else {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	users := user.NewPostgresRepository(db)
	requests := request.NewService(request.NewPostgresRepository(db), users)
	evaluator := access.NewEvaluator(users, cfg.OperatorID)
	wizardSvc := wizard.NewService(
		wizard.NewPostgresRepository(db), requests, evaluator,
		cfg.WizardDefaultDevices, cfg.WizardDefaultDays,
	)
	reports := report.NewService(users, request.NewPostgresRepository(db))

	// One sweep at boot clears sessions abandoned before the last restart.
	reaped, err := wizardSvc.ReapStale(ctx, cfg.SessionMaxAge)
	if err != nil {
		logger.Error("reap stale sessions", "error", err)
		os.Exit(1)
	}
	if reaped > 0 {
		logger.Info("reaped stale wizard sessions", "count", reaped)
	}

	transport := telegram.NewClient(cfg.BotToken)

	dispatcher := bot.New(bot.Deps{
		Transport:  transport,
		Menu:       menu.NewRenderer(transport, users, logger),
		Users:      users,
		Requests:   requests,
		Wizard:     wizardSvc,
		Access:     evaluator,
		Reports:    reports,
		Rotation:   rotation.NewPicker(rotation.NewPostgresRepository(db)),
		Links:      proxy.NewLinks(cfg.ProxyServer, cfg.ProxyTurboPort, cfg.ProxyStablePort, cfg.ProxySecret),
		OperatorID: cfg.OperatorID,
		StuckAfter: cfg.StuckAfter,
		Logger:     logger,
	})

	ops := server.New(server.Deps{
		Cfg:     cfg,
		DB:      db,
		Cache:   cache,
		Reports: reports,
		Logger:  logger,
	})

	opsErrCh := make(chan error, 1)
	go func() {
		logger.Info("ops api listening", "address", cfg.OpsAddress())
		opsErrCh <- ops.Listen()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		logger.Info("bot polling started", "operator_id", cfg.OperatorID)
		pollErrCh <- telegram.NewPoller(transport, dispatcher, logger).Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-opsErrCh:
		logger.Error("ops api failed", "error", err)
	case err := <-pollErrCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("poller failed", "error", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("bot exited cleanly")
}
