package alert

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pricewatch-go/pkg/pricing"
)

// Alert types.
const (
	TypeTargetPrice    = "target_price"
	TypePercentageDrop = "percentage_drop"
	TypePercentageRise = "percentage_rise"
	TypeAnyChange      = "any_change"
)

// Severities attached to evaluations and notifications.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeveritySuccess = "success"
)

// anyChangeEpsilon is the absolute delta below which any_change alerts
// treat two prices as equal.
const anyChangeEpsilon = 0.01

// ValidationError reports a malformed alert payload, surfaced
// synchronously on creation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Alert is one user-created price condition on a tracked product. The
// evaluator mutates only TriggeredAt and LastChecked.
type Alert struct {
	ID            string     `json:"id"`
	ProductURL    string     `json:"product_url"`
	Type          string     `json:"type"`
	TargetPrice   float64    `json:"target_price,omitempty"`
	TargetPercent float64    `json:"target_percent,omitempty"`
	BasePrice     float64    `json:"base_price"`
	Currency      string     `json:"currency"`
	Enabled       bool       `json:"enabled"`
	CreatedAt     time.Time  `json:"created_at"`
	TriggeredAt   *time.Time `json:"triggered_at,omitempty"`
	LastChecked   *time.Time `json:"last_checked,omitempty"`
}

// Evaluation is the outcome of checking one alert against a price.
type Evaluation struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

func (a *Alert) Validate() error {
	if strings.TrimSpace(a.ProductURL) == "" {
		return &ValidationError{Field: "product_url", Reason: "must not be empty"}
	}
	switch a.Type {
	case TypeTargetPrice:
		if a.TargetPrice <= 0 || math.IsNaN(a.TargetPrice) || math.IsInf(a.TargetPrice, 0) {
			return &ValidationError{Field: "target_price", Reason: "must be a positive finite number"}
		}
	case TypePercentageDrop, TypePercentageRise:
		if a.TargetPercent <= 0 || a.TargetPercent > 100 {
			return &ValidationError{Field: "target_percent", Reason: "must be in (0, 100]"}
		}
		if a.BasePrice <= 0 {
			return &ValidationError{Field: "base_price", Reason: "must be positive"}
		}
	case TypeAnyChange:
		if a.BasePrice <= 0 {
			return &ValidationError{Field: "base_price", Reason: "must be positive"}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown alert type %q", a.Type)}
	}
	if a.Currency != "" && !pricing.IsValidCode(a.Currency) {
		return &ValidationError{Field: "currency", Reason: "unknown ISO code"}
	}
	return nil
}

// Evaluate checks one alert against the current price. Disabled alerts
// never trigger. The function is pure; persistence of TriggeredAt is
// the Manager's job.
func Evaluate(a *Alert, current float64) Evaluation {
	if !a.Enabled {
		return Evaluation{}
	}

	switch a.Type {
	case TypeTargetPrice:
		if current <= a.TargetPrice {
			return Evaluation{
				Triggered: true,
				Message: fmt.Sprintf("Price reached %s, at or below your target %s",
					pricing.Format(current, a.Currency), pricing.Format(a.TargetPrice, a.Currency)),
				Severity: SeveritySuccess,
			}
		}

	case TypePercentageDrop:
		drop := (a.BasePrice - current) / a.BasePrice * 100
		if drop >= a.TargetPercent {
			return Evaluation{
				Triggered: true,
				Message: fmt.Sprintf("Price dropped %.1f%% to %s (was %s)",
					drop, pricing.Format(current, a.Currency), pricing.Format(a.BasePrice, a.Currency)),
				Severity: SeveritySuccess,
			}
		}

	case TypePercentageRise:
		rise := (current - a.BasePrice) / a.BasePrice * 100
		if rise >= a.TargetPercent {
			return Evaluation{
				Triggered: true,
				Message: fmt.Sprintf("Price rose %.1f%% to %s (was %s)",
					rise, pricing.Format(current, a.Currency), pricing.Format(a.BasePrice, a.Currency)),
				Severity: SeverityWarning,
			}
		}

	case TypeAnyChange:
		if math.Abs(current-a.BasePrice) > anyChangeEpsilon {
			if current < a.BasePrice {
				return Evaluation{
					Triggered: true,
					Message: fmt.Sprintf("Price changed: %s down to %s",
						pricing.Format(a.BasePrice, a.Currency), pricing.Format(current, a.Currency)),
					Severity: SeveritySuccess,
				}
			}
			return Evaluation{
				Triggered: true,
				Message: fmt.Sprintf("Price changed: %s up to %s",
					pricing.Format(a.BasePrice, a.Currency), pricing.Format(current, a.Currency)),
				Severity: SeverityWarning,
			}
		}
	}

	return Evaluation{}
}

// GateSettings controls the generic price-change notification that
// fires outside explicit alerts.
type GateSettings struct {
	MinChangePercent  float64
	NotifyOnPriceUp   bool
	NotifyOnPriceDown bool
}

// ShouldNotify decides whether a generic change notification passes
// the global gates. Explicit alert types are never gated by it.
func ShouldNotify(s GateSettings, oldPrice, newPrice float64) bool {
	if oldPrice <= 0 {
		return false
	}
	changePct := math.Abs(newPrice-oldPrice) / oldPrice * 100
	if changePct < s.MinChangePercent {
		return false
	}
	if newPrice > oldPrice {
		return s.NotifyOnPriceUp
	}
	return s.NotifyOnPriceDown
}
