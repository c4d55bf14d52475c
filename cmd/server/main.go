package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"pricewatch-go/internal/config"
	"pricewatch-go/internal/handler"
	"pricewatch-go/internal/service"
	"pricewatch-go/pkg/alert"
	"pricewatch-go/pkg/extract"
	"pricewatch-go/pkg/fetch"
	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/monitor"
	"pricewatch-go/pkg/storage"
	"pricewatch-go/pkg/tracker"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "config/dev.yaml", "Configuration file path")
	flag.BoolVar(&app.debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if err := app.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func (app *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewManager().Load(app.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if app.debug {
		cfg.Logger.Level = "debug"
	}
	logger.SetLogger(logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	}))
	mainLog := logger.GetLogger().WithComponent("server")

	st, err := buildStorage(cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	selectors := extract.NewSelectorStore(st)
	if err := selectors.Refresh(ctx); err != nil {
		mainLog.WithError(err).Warn("custom selectors unavailable")
	}

	client := fetch.NewHTTPClient(time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second)
	fetcher := fetch.NewFetcherWithCache(client, extract.NewPipeline(selectors),
		time.Duration(cfg.Cache.DurationSeconds)*time.Second, cfg.Cache.MaxSize)

	catalog := tracker.NewCatalog(st)
	if err := catalog.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	alerts := alert.NewManager(st)
	if err := alerts.Load(ctx); err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	retries := monitor.NewRetryQueue(st)
	if err := retries.Load(ctx); err != nil {
		return fmt.Errorf("load retry queue: %w", err)
	}

	engine := monitor.NewEngine(catalog, fetcher, alerts, nil, retries, monitor.Settings{
		CheckInterval:     time.Duration(cfg.Monitor.CheckIntervalMinutes) * time.Minute,
		AutoCheck:         cfg.Monitor.AutoCheck,
		MaxRetries:        cfg.Monitor.MaxRetries,
		StaggerDelay:      time.Duration(cfg.Monitor.StaggerMs) * time.Millisecond,
		RateLimitPerHour:  cfg.Monitor.RateLimitPerHour,
		MinChangePercent:  cfg.Alerts.MinChangePercent,
		NotifyOnPriceUp:   cfg.Alerts.NotifyOnPriceUp,
		NotifyOnPriceDown: cfg.Alerts.NotifyOnPriceDown,
	})

	scheduler := monitor.NewScheduler(engine)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	svc := service.New(engine, catalog, alerts, scheduler)

	fiberApp := fiber.New(fiber.Config{
		AppName:               "pricewatch-go",
		DisableStartupMessage: true,
	})
	handler.NewController(svc).Register(fiberApp)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- fiberApp.Listen(addr)
	}()
	mainLog.WithField("addr", addr).Info("control plane listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.WithField("signal", sig.String()).Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	cancel()
	if err := fiberApp.ShutdownWithTimeout(5 * time.Second); err != nil {
		mainLog.WithError(err).Warn("http shutdown was not clean")
	}
	mainLog.Info("server stopped")
	return nil
}

func buildStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return storage.NewFileStorage(cfg.Storage.DataDir)
	}
}
