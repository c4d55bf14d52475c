package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/storage"
)

const alertsKey = "price_alerts"

// Triggered pairs an alert with its evaluation for the notifier.
type Triggered struct {
	Alert      *Alert     `json:"alert"`
	Evaluation Evaluation `json:"evaluation"`
}

// Manager owns the persisted alert collection and runs evaluations
// during sweeps.
type Manager struct {
	storage storage.Storage

	mu     sync.RWMutex
	alerts []*Alert
	byID   map[string]*Alert

	now func() time.Time
	log *logger.Logger
}

func NewManager(st storage.Storage) *Manager {
	return &Manager{
		storage: st,
		byID:    make(map[string]*Alert),
		now:     time.Now,
		log:     logger.GetLogger().WithComponent("alerts"),
	}
}

// Load replaces the in-memory alerts with the persisted set.
func (m *Manager) Load(ctx context.Context) error {
	var loaded []*Alert
	found, err := m.storage.Get(ctx, alertsKey, &loaded)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = nil
	m.byID = make(map[string]*Alert)
	if found {
		for _, a := range loaded {
			if a == nil || a.ID == "" {
				continue
			}
			m.alerts = append(m.alerts, a)
			m.byID[a.ID] = a
		}
	}

	m.log.WithField("alerts", len(m.alerts)).Info("alerts loaded")
	return nil
}

// Add validates and persists a new alert, assigning an ID when the
// caller left it empty.
func (m *Manager) Add(ctx context.Context, a *Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if a.ID == "" {
		a.ID = fmt.Sprintf("alert_%d_%d", m.now().UnixMilli(), len(m.alerts))
	}
	if _, exists := m.byID[a.ID]; exists {
		m.mu.Unlock()
		return &ValidationError{Field: "id", Reason: "already exists"}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.alerts = append(m.alerts, a)
	m.byID[a.ID] = a
	m.mu.Unlock()

	return m.save(ctx)
}

// Remove deletes an alert by ID. Unknown IDs are a no-op.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, exists := m.byID[id]; !exists {
		m.mu.Unlock()
		return nil
	}
	delete(m.byID, id)
	for i, a := range m.alerts {
		if a.ID == id {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return m.save(ctx)
}

// SetEnabled flips one alert on or off.
func (m *Manager) SetEnabled(ctx context.Context, id string, enabled bool) error {
	m.mu.Lock()
	a, exists := m.byID[id]
	if !exists {
		m.mu.Unlock()
		return &ValidationError{Field: "id", Reason: "not found"}
	}
	a.Enabled = enabled
	m.mu.Unlock()

	return m.save(ctx)
}

func (m *Manager) Get(id string) (*Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	return a, ok
}

func (m *Manager) List() []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// ForProduct returns the alerts attached to one tracked URL.
func (m *Manager) ForProduct(url string) []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Alert
	for _, a := range m.alerts {
		if a.ProductURL == url {
			out = append(out, a)
		}
	}
	return out
}

// EvaluateProduct runs every alert on a product against the current
// price, stamps LastChecked and TriggeredAt, persists once, and
// returns the triggered set. Alerts are never auto-deleted.
func (m *Manager) EvaluateProduct(ctx context.Context, url string, current float64) ([]Triggered, error) {
	now := m.now()

	m.mu.Lock()
	var fired []Triggered
	touched := false
	for _, a := range m.alerts {
		if a.ProductURL != url {
			continue
		}
		a.LastChecked = &now
		touched = true

		ev := Evaluate(a, current)
		if ev.Triggered {
			triggeredAt := now
			a.TriggeredAt = &triggeredAt
			fired = append(fired, Triggered{Alert: a, Evaluation: ev})
		}
	}
	m.mu.Unlock()

	if !touched {
		return nil, nil
	}
	if err := m.save(ctx); err != nil {
		// A persistence hiccup must not swallow the evaluations.
		m.log.WithError(err).Warn("alert state persist failed")
	}
	return fired, nil
}

func (m *Manager) save(ctx context.Context) error {
	m.mu.RLock()
	snapshot := make([]*Alert, len(m.alerts))
	copy(snapshot, m.alerts)
	m.mu.RUnlock()

	return m.storage.Set(ctx, alertsKey, snapshot)
}
