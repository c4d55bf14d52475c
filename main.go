package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pricewatch-go/pkg/alert"
	"pricewatch-go/pkg/extract"
	"pricewatch-go/pkg/fetch"
	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/monitor"
	"pricewatch-go/pkg/pricing"
	"pricewatch-go/pkg/storage"
	"pricewatch-go/pkg/tracker"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("CRITICAL ERROR: application panic recovered: %v\n", r)
			os.Exit(1)
		}
	}()

	// Environment variable defaults (cron/CI friendly)
	defaultURLs := getEnvOrDefault("PRICEWATCH_URLS", "")
	defaultDataDir := getEnvOrDefault("PRICEWATCH_DATA_DIR", "./data")
	defaultInterval := getEnvIntOrDefault("PRICEWATCH_INTERVAL_MINUTES", 30)
	defaultRateLimit := getEnvIntOrDefault("PRICEWATCH_RATE_LIMIT", 60)
	defaultMaxRetries := getEnvIntOrDefault("PRICEWATCH_MAX_RETRIES", 3)
	defaultDebug := getEnvBoolOrDefault("DEBUG", false)

	// Command line flags (override environment variables)
	var (
		trackURLs  = flag.String("track", defaultURLs, "Comma-separated product URLs to add before the sweep (env: PRICEWATCH_URLS)")
		dataDir    = flag.String("data-dir", defaultDataDir, "Directory for persisted state (env: PRICEWATCH_DATA_DIR)")
		daemon     = flag.Bool("daemon", false, "Keep running on the configured interval instead of a single sweep")
		interval   = flag.Int("interval", defaultInterval, "Sweep interval in minutes, clamped to [5, 1440] (env: PRICEWATCH_INTERVAL_MINUTES)")
		rateLimit  = flag.Int("rate-limit", defaultRateLimit, "Fetches per hour (env: PRICEWATCH_RATE_LIMIT)")
		maxRetries = flag.Int("max-retries", defaultMaxRetries, "Retry ceiling for failed checks (env: PRICEWATCH_MAX_RETRIES)")
		debug      = flag.Bool("debug", defaultDebug, "Enable debug logging (env: DEBUG)")
		help       = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *help {
		printUsage()
		return
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	logger.SetLogger(logger.New(logger.Config{Level: level, Format: "console"}))
	log := logger.GetLogger().WithComponent("main")

	st, err := storage.NewFileStorage(*dataDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	selectors := extract.NewSelectorStore(st)
	if err := selectors.Refresh(ctx); err != nil {
		log.WithError(err).Warn("Custom selectors unavailable")
	}

	fetcher := fetch.NewFetcher(fetch.NewHTTPClient(0), extract.NewPipeline(selectors))
	catalog := tracker.NewCatalog(st)
	alerts := alert.NewManager(st)
	retries := monitor.NewRetryQueue(st)
	for name, load := range map[string]func(context.Context) error{
		"catalog": catalog.Load, "alerts": alerts.Load, "retry queue": retries.Load,
	} {
		if err := load(ctx); err != nil {
			log.WithError(err).WithField("state", name).Fatal("Failed to load persisted state")
		}
	}

	engine := monitor.NewEngine(catalog, fetcher, alerts, nil, retries, monitor.Settings{
		CheckInterval:    time.Duration(*interval) * time.Minute,
		AutoCheck:        *daemon,
		MaxRetries:       *maxRetries,
		RateLimitPerHour: *rateLimit,
	})

	if *trackURLs != "" {
		for _, raw := range strings.Split(*trackURLs, ",") {
			url := strings.TrimSpace(raw)
			if url == "" {
				continue
			}
			p, err := engine.Track(ctx, url)
			if err != nil {
				log.WithError(err).WithField("url", url).Warn("Could not track URL")
				continue
			}
			fmt.Printf("Tracking %s at %s\n", p.Name, pricing.Format(p.Price, p.Currency))
		}
	}

	if *daemon {
		runDaemon(ctx, cancel, engine, log)
		return
	}

	runOnce(ctx, engine, catalog, log)
}

func runOnce(ctx context.Context, engine *monitor.Engine, catalog *tracker.Catalog, log *logger.Logger) {
	start := time.Now()
	result, err := engine.RunSweep(ctx)
	if err != nil {
		log.WithError(err).Fatal("Sweep failed")
	}

	fmt.Printf("\n=== Price Sweep Results ===\n")
	fmt.Printf("Checked: %d\n", result.Checked)
	fmt.Printf("Updated: %d\n", result.Updated)
	fmt.Printf("Errors:  %d\n", result.Errors)
	fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))

	products := catalog.List()
	if len(products) == 0 {
		fmt.Println("\nNo products tracked yet. Add some with -track.")
		return
	}

	fmt.Printf("\n=== Tracked Products ===\n")
	for _, p := range products {
		status := "OK"
		if p.LastCheckStatus != tracker.StatusSuccess {
			status = strings.ToUpper(p.LastCheckStatus)
		}
		line := fmt.Sprintf("[%s] %s - %s", status, productTitle(p), pricing.Format(p.Price, p.Currency))
		if p.PreviousPrice != nil {
			line += fmt.Sprintf(" (was %s, %+.1f%%)", pricing.Format(*p.PreviousPrice, p.Currency), p.ChangePercent())
		}
		fmt.Println(line)
		if p.LastError != "" {
			fmt.Printf("   Error: %s\n", p.LastError)
		}
	}
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, engine *monitor.Engine, log *logger.Logger) {
	scheduler := monitor.NewScheduler(engine)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	log.WithField("interval", engine.Settings().CheckInterval.String()).Info("Monitoring started")
	fmt.Println("Monitoring... press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutdown signal received...")
	cancel()
	fmt.Println("Stopped")
}

func productTitle(p *tracker.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return p.URL
}

func printUsage() {
	fmt.Println("pricewatch-go - product price monitoring")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./pricewatch-go -track <URL>[,<URL>...]   # add products, run one sweep")
	fmt.Println("    ./pricewatch-go                           # single sweep over tracked products")
	fmt.Println("    ./pricewatch-go -daemon                   # keep sweeping on the interval")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -track string       Comma-separated product URLs (env: PRICEWATCH_URLS)")
	fmt.Println("    -data-dir string    State directory (default: ./data, env: PRICEWATCH_DATA_DIR)")
	fmt.Println("    -daemon             Run continuously on the interval")
	fmt.Println("    -interval int       Sweep interval in minutes (default: 30, env: PRICEWATCH_INTERVAL_MINUTES)")
	fmt.Println("    -rate-limit int     Fetches per hour (default: 60, env: PRICEWATCH_RATE_LIMIT)")
	fmt.Println("    -max-retries int    Retry ceiling (default: 3, env: PRICEWATCH_MAX_RETRIES)")
	fmt.Println("    -debug              Debug logging (env: DEBUG)")
	fmt.Println("    -help               Show this help message")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    ./pricewatch-go -track \"https://www.amazon.com/dp/B000TEST\"")
	fmt.Println("    PRICEWATCH_URLS=\"https://example.com/p1,https://example.com/p2\" ./pricewatch-go")
	fmt.Println("    ./pricewatch-go -daemon -interval 60")
}
