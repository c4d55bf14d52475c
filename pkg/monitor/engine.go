package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pricewatch-go/pkg/alert"
	"pricewatch-go/pkg/extract"
	"pricewatch-go/pkg/fetch"
	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/pricing"
	"pricewatch-go/pkg/ratelimit"
	"pricewatch-go/pkg/storage"
	"pricewatch-go/pkg/tracker"
)

// ErrSweepInFlight is returned when a sweep is requested while one is
// already running. Sweeps are strictly serialized.
var ErrSweepInFlight = errors.New("sweep already in flight")

// Interval bounds for the periodic sweep.
const (
	MinCheckInterval     = 5 * time.Minute
	MaxCheckInterval     = 1440 * time.Minute
	DefaultCheckInterval = 30 * time.Minute

	defaultStaggerDelay = 2 * time.Second
	defaultMaxRetries   = 3
	rateLimitBackoff    = 2 * time.Second
)

// PriceFetcher is the fetch-parse-extract path the engine drives. The
// production implementation is fetch.Fetcher.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, url string) (*extract.Result, error)
	InvalidateCache(url string)
}

// Notifier delivers price-change and alert messages. Fire and forget:
// failures are logged by the implementation, never propagated.
type Notifier interface {
	Notify(title, message, severity string)
}

// LogNotifier writes notifications to the structured log. It is the
// default sink when no external notifier is wired.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.GetLogger().WithComponent("notifier")}
}

func (n *LogNotifier) Notify(title, message, severity string) {
	n.log.WithFields(map[string]interface{}{
		"title":    title,
		"severity": severity,
	}).Info(message)
}

// Settings is the engine's runtime configuration. ApplySettings
// reconstructs the rate limiter on a rate change; interval changes are
// picked up by the Scheduler.
type Settings struct {
	CheckInterval     time.Duration `json:"check_interval"`
	AutoCheck         bool          `json:"auto_check"`
	MaxRetries        int           `json:"max_retries"`
	StaggerDelay      time.Duration `json:"stagger_delay"`
	RateLimitPerHour  int           `json:"rate_limit_per_hour"`
	MinChangePercent  float64       `json:"min_change_percent"`
	NotifyOnPriceUp   bool          `json:"notify_on_price_up"`
	NotifyOnPriceDown bool          `json:"notify_on_price_down"`
}

// Normalize clamps out-of-range values to safe defaults.
func (s Settings) Normalize() Settings {
	if s.CheckInterval == 0 {
		s.CheckInterval = DefaultCheckInterval
	}
	if s.CheckInterval < MinCheckInterval {
		s.CheckInterval = MinCheckInterval
	}
	if s.CheckInterval > MaxCheckInterval {
		s.CheckInterval = MaxCheckInterval
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = defaultMaxRetries
	}
	if s.StaggerDelay <= 0 {
		s.StaggerDelay = defaultStaggerDelay
	}
	if s.RateLimitPerHour <= 0 {
		s.RateLimitPerHour = 60
	}
	return s
}

// SweepResult summarizes one full-catalog pass.
type SweepResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// RetryResult summarizes one retry-queue pass.
type RetryResult struct {
	Retried   int `json:"retried"`
	Recovered int `json:"recovered"`
	Dropped   int `json:"dropped"`
}

// Status is the read-only state snapshot for the control plane.
type Status struct {
	Products      int                `json:"products"`
	Alerts        int                `json:"alerts"`
	RetryQueue    int                `json:"retry_queue"`
	Cache         storage.CacheStats `json:"cache"`
	RateLimiter   ratelimit.Stats    `json:"rate_limiter"`
	Settings      Settings           `json:"settings"`
	LastSweep     *time.Time         `json:"last_sweep,omitempty"`
	LastSweepInfo *SweepResult       `json:"last_sweep_info,omitempty"`
}

// Engine owns all monitoring state and drives sweeps and retries. One
// instance per process; the Scheduler and the control plane share it.
type Engine struct {
	catalog  *tracker.Catalog
	fetcher  PriceFetcher
	alerts   *alert.Manager
	notifier Notifier
	retries  *RetryQueue

	mu       sync.RWMutex
	limiter  *ratelimit.TokenBucket
	settings Settings

	sweepMu sync.Mutex

	infoMu        sync.Mutex
	lastSweep     *time.Time
	lastSweepInfo *SweepResult

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	log *logger.Logger
}

func NewEngine(catalog *tracker.Catalog, fetcher PriceFetcher, alerts *alert.Manager, notifier Notifier, retries *RetryQueue, settings Settings) *Engine {
	settings = settings.Normalize()
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	return &Engine{
		catalog:  catalog,
		fetcher:  fetcher,
		alerts:   alerts,
		notifier: notifier,
		retries:  retries,
		limiter:  ratelimit.NewTokenBucket(settings.RateLimitPerHour),
		settings: settings,
		now:      time.Now,
		sleep:    contextSleep,
		log:      logger.GetLogger().WithComponent("engine"),
	}
}

// Settings returns the current normalized settings.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.settings
}

// ApplySettings installs new settings. A changed rate limit rebuilds
// the token bucket; the caller reschedules the sweep timer when the
// interval or auto-check flag moved.
func (e *Engine) ApplySettings(s Settings) Settings {
	s = s.Normalize()

	e.mu.Lock()
	if s.RateLimitPerHour != e.settings.RateLimitPerHour {
		e.limiter = ratelimit.NewTokenBucket(s.RateLimitPerHour)
	}
	e.settings = s
	e.mu.Unlock()

	e.log.WithFields(map[string]interface{}{
		"check_interval": s.CheckInterval.String(),
		"rate_limit":     s.RateLimitPerHour,
	}).Info("settings applied")
	return s
}

// RunSweep checks every tracked product in collection order with a
// stagger delay between items, then persists the catalog once behind
// the torn-write guard. An empty catalog is a no-op.
func (e *Engine) RunSweep(ctx context.Context) (SweepResult, error) {
	if !e.sweepMu.TryLock() {
		return SweepResult{}, ErrSweepInFlight
	}
	defer e.sweepMu.Unlock()

	items := e.catalog.List()
	startLen := len(items)
	var result SweepResult

	if startLen == 0 {
		e.recordSweep(result)
		return result, nil
	}

	settings := e.Settings()
	e.log.WithField("products", startLen).Info("sweep started")

	for i, p := range items {
		if i > 0 {
			if err := e.sleep(ctx, settings.StaggerDelay); err != nil {
				return result, err
			}
		}

		result.Checked++
		changed, err := e.checkItem(ctx, p)
		if err != nil {
			result.Errors++
			continue
		}
		if changed {
			result.Updated++
		}
	}

	saved, err := e.catalog.SaveIfUnchanged(ctx, startLen)
	if err != nil {
		e.log.WithError(err).Error("sweep persist failed, will retry next sweep")
	} else if !saved {
		e.log.Warn("sweep persist skipped by torn-write guard")
	}

	e.recordSweep(result)
	e.log.WithFields(map[string]interface{}{
		"checked": result.Checked,
		"updated": result.Updated,
		"errors":  result.Errors,
	}).Info("sweep finished")

	return result, nil
}

// checkItem runs one product through the rate limiter, the fetch
// cache, and the extraction pipeline, then applies the outcome.
func (e *Engine) checkItem(ctx context.Context, p *tracker.Product) (bool, error) {
	e.mu.RLock()
	limiter := e.limiter
	e.mu.RUnlock()

	if err := limiter.Check(); err != nil {
		var rlErr *ratelimit.RateLimitError
		if errors.As(err, &rlErr) {
			// Back off briefly and proceed; the limit is advisory
			// inside a staggered sweep.
			if serr := e.sleep(ctx, rateLimitBackoff); serr != nil {
				return false, serr
			}
		}
	}

	res, err := e.fetcher.FetchPrice(ctx, p.URL)
	if err != nil {
		p.RecordFailure(failureStatus(err), err, e.now())
		e.retries.Record(ctx, p.URL, err)
		e.log.WithError(err).WithField("url", p.URL).Debug("check failed")
		return false, err
	}

	return e.applySuccess(ctx, p, res), nil
}

// applySuccess merges the extraction, fires alerts, and sends the
// gated generic notification on a change.
func (e *Engine) applySuccess(ctx context.Context, p *tracker.Product, res *extract.Result) bool {
	oldPrice := p.Price
	changed := p.ApplyResult(res, e.now())
	e.retries.Remove(ctx, p.URL)

	if !changed {
		return false
	}

	fired, err := e.alerts.EvaluateProduct(ctx, p.URL, p.Price)
	if err != nil {
		e.log.WithError(err).Warn("alert evaluation failed")
	}
	for _, f := range fired {
		e.notifier.Notify("Price alert", f.Evaluation.Message, f.Evaluation.Severity)
	}

	settings := e.Settings()
	gate := alert.GateSettings{
		MinChangePercent:  settings.MinChangePercent,
		NotifyOnPriceUp:   settings.NotifyOnPriceUp,
		NotifyOnPriceDown: settings.NotifyOnPriceDown,
	}
	if alert.ShouldNotify(gate, oldPrice, p.Price) {
		direction := "dropped"
		severity := alert.SeveritySuccess
		if p.Price > oldPrice {
			direction = "rose"
			severity = alert.SeverityWarning
		}
		msg := fmt.Sprintf("%s %s from %s to %s", productLabel(p), direction,
			pricing.Format(oldPrice, p.Currency), pricing.Format(p.Price, p.Currency))
		e.notifier.Notify("Price change", msg, severity)
	}

	return true
}

// CheckProduct forces a fresh check of one URL, bypassing the fetch
// cache, and persists the catalog regardless of outcome so the status
// flags survive a restart.
func (e *Engine) CheckProduct(ctx context.Context, url string) (*tracker.Product, error) {
	p, ok := e.catalog.Get(url)
	if !ok {
		return nil, &tracker.ValidationError{Field: "url", Reason: "not tracked"}
	}

	e.fetcher.InvalidateCache(url)
	res, err := e.fetcher.FetchPrice(ctx, url)
	if err != nil {
		p.RecordFailure(failureStatus(err), err, e.now())
		e.retries.Record(ctx, url, err)
		if serr := e.catalog.Save(ctx); serr != nil {
			e.log.WithError(serr).Warn("catalog persist failed after manual check")
		}
		return p, err
	}

	e.applySuccess(ctx, p, res)
	if err := e.catalog.Save(ctx); err != nil {
		e.log.WithError(err).Warn("catalog persist failed after manual check")
	}
	return p, nil
}

// Track fetches a URL for the first time and adds it to the catalog.
func (e *Engine) Track(ctx context.Context, url string) (*tracker.Product, error) {
	res, err := e.fetcher.FetchPrice(ctx, url)
	if err != nil {
		return nil, err
	}

	p := tracker.NewProduct(res)
	if p.URL == "" {
		p.URL = url
	}
	if err := e.catalog.Add(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RunRetryPass walks the retry queue oldest-first. Successes leave the
// queue; failures bump the attempt counter; entries at the ceiling are
// dropped.
func (e *Engine) RunRetryPass(ctx context.Context) RetryResult {
	settings := e.Settings()
	var result RetryResult

	for _, entry := range e.retries.List() {
		if entry.Attempts >= settings.MaxRetries {
			e.retries.Remove(ctx, entry.URL)
			result.Dropped++
			e.log.WithField("url", entry.URL).Info("retry ceiling reached, dropping")
			continue
		}

		p, tracked := e.catalog.Get(entry.URL)
		if !tracked {
			e.retries.Remove(ctx, entry.URL)
			continue
		}

		result.Retried++
		res, err := e.fetcher.FetchPrice(ctx, entry.URL)
		if err != nil {
			e.retries.Bump(ctx, entry.URL, err)
			continue
		}

		e.applySuccess(ctx, p, res)
		result.Recovered++
	}

	if result.Recovered > 0 {
		if err := e.catalog.Save(ctx); err != nil {
			e.log.WithError(err).Warn("catalog persist failed after retry pass")
		}
	}
	return result
}

// Status snapshots engine state for the control plane.
func (e *Engine) Status() Status {
	e.mu.RLock()
	limiter := e.limiter
	settings := e.settings
	e.mu.RUnlock()

	var cache storage.CacheStats
	if f, ok := e.fetcher.(*fetch.Fetcher); ok {
		cache = f.CacheStats()
	}

	e.infoMu.Lock()
	lastSweep := e.lastSweep
	lastInfo := e.lastSweepInfo
	e.infoMu.Unlock()

	return Status{
		Products:      e.catalog.Len(),
		Alerts:        len(e.alerts.List()),
		RetryQueue:    e.retries.Len(),
		Cache:         cache,
		RateLimiter:   limiter.Stats(),
		Settings:      settings,
		LastSweep:     lastSweep,
		LastSweepInfo: lastInfo,
	}
}

func (e *Engine) recordSweep(result SweepResult) {
	now := e.now()

	e.infoMu.Lock()
	e.lastSweep = &now
	e.lastSweepInfo = &result
	e.infoMu.Unlock()
}

func failureStatus(err error) string {
	var netErr *fetch.NetworkError
	if errors.As(err, &netErr) {
		return tracker.StatusFailed
	}
	return tracker.StatusError
}

func productLabel(p *tracker.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return p.URL
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
