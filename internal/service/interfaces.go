package service

import (
	"context"

	"pricewatch-go/pkg/alert"
	"pricewatch-go/pkg/monitor"
	"pricewatch-go/pkg/tracker"
)

type ProductService interface {
	Track(ctx context.Context, url string) (*tracker.Product, error)
	List() []*tracker.Product
	Get(url string) (*tracker.Product, bool)
	Remove(ctx context.Context, url string) error
	Clear(ctx context.Context) error
	Check(ctx context.Context, url string) (*tracker.Product, error)
	Import(ctx context.Context, products []*tracker.Product) (int, error)
	Export() []*tracker.Product
}

type AlertService interface {
	Add(ctx context.Context, a *alert.Alert) error
	List() []*alert.Alert
	Get(id string) (*alert.Alert, bool)
	Remove(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type MonitorService interface {
	RunSweep(ctx context.Context) (monitor.SweepResult, error)
	RunRetryPass(ctx context.Context) monitor.RetryResult
	Status() monitor.Status
	Settings() monitor.Settings
	ApplySettings(ctx context.Context, s monitor.Settings) monitor.Settings
}
