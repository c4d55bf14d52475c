package service

import (
	"context"

	"pricewatch-go/pkg/alert"
	"pricewatch-go/pkg/monitor"
	"pricewatch-go/pkg/tracker"
)

// Service bundles the three control-plane surfaces over one engine.
type Service struct {
	Products ProductService
	Alerts   AlertService
	Monitor  MonitorService
}

func New(engine *monitor.Engine, catalog *tracker.Catalog, alerts *alert.Manager, scheduler *monitor.Scheduler) *Service {
	return &Service{
		Products: &productService{engine: engine, catalog: catalog},
		Alerts:   &alertService{manager: alerts},
		Monitor:  &monitorService{engine: engine, scheduler: scheduler},
	}
}

type productService struct {
	engine  *monitor.Engine
	catalog *tracker.Catalog
}

func (s *productService) Track(ctx context.Context, url string) (*tracker.Product, error) {
	return s.engine.Track(ctx, url)
}

func (s *productService) List() []*tracker.Product {
	return s.catalog.List()
}

func (s *productService) Get(url string) (*tracker.Product, bool) {
	return s.catalog.Get(url)
}

func (s *productService) Remove(ctx context.Context, url string) error {
	return s.catalog.Remove(ctx, url)
}

func (s *productService) Clear(ctx context.Context) error {
	return s.catalog.Clear(ctx)
}

func (s *productService) Check(ctx context.Context, url string) (*tracker.Product, error) {
	return s.engine.CheckProduct(ctx, url)
}

func (s *productService) Import(ctx context.Context, products []*tracker.Product) (int, error) {
	return s.catalog.Import(ctx, products)
}

func (s *productService) Export() []*tracker.Product {
	return s.catalog.Export()
}

type alertService struct {
	manager *alert.Manager
}

func (s *alertService) Add(ctx context.Context, a *alert.Alert) error {
	return s.manager.Add(ctx, a)
}

func (s *alertService) List() []*alert.Alert {
	return s.manager.List()
}

func (s *alertService) Get(id string) (*alert.Alert, bool) {
	return s.manager.Get(id)
}

func (s *alertService) Remove(ctx context.Context, id string) error {
	return s.manager.Remove(ctx, id)
}

func (s *alertService) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.manager.SetEnabled(ctx, id, enabled)
}

type monitorService struct {
	engine    *monitor.Engine
	scheduler *monitor.Scheduler
}

func (s *monitorService) RunSweep(ctx context.Context) (monitor.SweepResult, error) {
	return s.engine.RunSweep(ctx)
}

func (s *monitorService) RunRetryPass(ctx context.Context) monitor.RetryResult {
	return s.engine.RunRetryPass(ctx)
}

func (s *monitorService) Status() monitor.Status {
	return s.engine.Status()
}

func (s *monitorService) Settings() monitor.Settings {
	return s.engine.Settings()
}

// ApplySettings installs the settings on the engine and reschedules
// the sweep timers to pick up interval or auto-check changes. The
// scheduler keeps its own base context; the request context must not
// leak into the long-lived loops.
func (s *monitorService) ApplySettings(ctx context.Context, settings monitor.Settings) monitor.Settings {
	applied := s.engine.ApplySettings(settings)
	if s.scheduler != nil {
		s.scheduler.Reschedule()
	}
	return applied
}
