package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rebooto/pkg/api"
	"rebooto/pkg/config"
	"rebooto/pkg/database"
	"rebooto/pkg/ocr"
	"rebooto/pkg/rules"
	"rebooto/pkg/scheduling"
	"rebooto/pkg/service"
	"rebooto/pkg/work"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "component", "Main", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// Stores
	credsStore := database.NewGormCredsStore(db)
	deviceStore := database.NewGormDeviceStore(db)
	actionStore := database.NewGormActionStore(db)
	ruleStore := database.NewGormRuleStore(db)
	stateStore := database.NewGormStateStore(db)
	workStore := database.NewGormWorkStore(db)
	executionStore := database.NewGormExecutionStore(db)

	// Engine
	matcher := rules.NewMatcher(ruleStore, stateStore)
	manager := work.NewManager(work.Deps{
		Works:      workStore,
		Devices:    deviceStore,
		Creds:      credsStore,
		Actions:    actionStore,
		Rules:      ruleStore,
		States:     stateStore,
		Executions: executionStore,
	}, cfg.EncryptionKey)

	// Services
	credsService := service.NewCredsService(credsStore, deviceStore, cfg.EncryptionKey)
	deviceService := service.NewDeviceService(deviceStore, stateStore, workStore, credsService)
	actionService := service.NewActionService(actionStore, ruleStore)
	ruleService := service.NewRuleService(ruleStore, actionStore, stateStore, matcher)
	stateService := service.NewStateService(stateStore, deviceStore, ocr.NewTesseract(cfg.TesseractPath), matcher)
	executionService := service.NewExecutionService(executionStore, workStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := scheduling.NewSweeper(deviceStore, stateStore, ruleStore, workStore, manager, scheduling.Options{
		AutomaticRecovery:        cfg.AutomaticRecovery,
		RuleWorkInterval:         time.Duration(cfg.RuleWorkSweepSeconds) * time.Second,
		ZombieScreenshotInterval: time.Duration(cfg.ZombieScreenshotSweepSeconds) * time.Second,
		MarkZombieInterval:       time.Duration(cfg.MarkZombieSweepSeconds) * time.Second,
		PendingWorkInterval:      time.Duration(cfg.PendingWorkSweepSeconds) * time.Second,
		RetryRule:                time.Duration(cfg.RetryRuleMinutes) * time.Minute,
		StateLookback:            time.Duration(cfg.StateLookbackMinutes) * time.Minute,
		PendingWorkTimeout:       time.Duration(cfg.PendingWorkTimeoutMin) * time.Minute,
		BecomeZombie:             time.Duration(cfg.BecomeZombieMinutes) * time.Minute,
	})
	go sweeper.Run(ctx)

	router := api.NewRouter(cfg, &api.Handlers{
		Creds:      credsService,
		Devices:    deviceService,
		Actions:    actionService,
		Rules:      ruleService,
		States:     stateService,
		Executions: executionService,
		Manager:    manager,
		Works:      workStore,
	})

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "component", "Main", "address", cfg.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "component", "Main")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
