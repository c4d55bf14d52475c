package tracker

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"pricewatch-go/pkg/extract"
)

// Check statuses recorded on a product after each sweep item.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// historyCap bounds per-product price history, oldest entries evicted.
const historyCap = 30

// minChange is the absolute price delta below which two observations
// count as the same price.
const minChange = 0.01

// ValidationError reports a malformed product payload. It is surfaced
// synchronously to the caller, not retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PricePoint is one superseded price with the time it was replaced.
type PricePoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

// Product is one tracked product page. Price always holds the most
// recent observed value; a change moves the old value into
// PreviousPrice and onto the history.
type Product struct {
	URL                  string       `json:"url"`
	Name                 string       `json:"name"`
	Price                float64      `json:"price"`
	PreviousPrice        *float64     `json:"previous_price,omitempty"`
	InitialPrice         float64      `json:"initial_price"`
	Currency             string       `json:"currency"`
	PriceHistory         []PricePoint `json:"price_history,omitempty"`
	LastCheck            *time.Time   `json:"last_check,omitempty"`
	LastCheckStatus      string       `json:"last_check_status,omitempty"`
	LastError            string       `json:"last_error,omitempty"`
	Confidence           float64      `json:"confidence"`
	CustomSelectorDomain string       `json:"custom_selector_domain,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// NewProduct builds a product from its first successful extraction.
func NewProduct(res *extract.Result) *Product {
	return &Product{
		URL:             res.URL,
		Name:            res.Name,
		Price:           res.Price,
		InitialPrice:    res.Price,
		Currency:        res.Currency,
		LastCheck:       timePtr(res.Timestamp),
		LastCheckStatus: StatusSuccess,
		Confidence:      res.Confidence,
		CreatedAt:       res.Timestamp,
	}
}

// Validate rejects payloads that cannot be tracked. Import and manual
// add both run through it.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be a positive finite number"}
	}
	return nil
}

// ApplyResult merges a fresh extraction into the product and reports
// whether the price changed. On change the old price moves to
// PreviousPrice and joins the history before being overwritten.
func (p *Product) ApplyResult(res *extract.Result, at time.Time) bool {
	changed := math.Abs(res.Price-p.Price) > minChange

	if changed {
		old := p.Price
		p.pushHistory(PricePoint{Price: old, Date: at})
		p.PreviousPrice = &old
		p.Price = res.Price
	}

	if res.Name != "" && p.Name == "" {
		p.Name = res.Name
	}
	if res.Currency != "" {
		p.Currency = res.Currency
	}
	p.Confidence = res.Confidence
	p.LastCheck = timePtr(at)
	p.LastCheckStatus = StatusSuccess
	p.LastError = ""

	return changed
}

// RecordFailure marks a failed check without touching price state.
func (p *Product) RecordFailure(status string, err error, at time.Time) {
	p.LastCheck = timePtr(at)
	p.LastCheckStatus = status
	if err != nil {
		p.LastError = err.Error()
	}
}

// ChangePercent returns the relative move from PreviousPrice to Price,
// negative for drops. Zero when no previous price exists.
func (p *Product) ChangePercent() float64 {
	if p.PreviousPrice == nil || *p.PreviousPrice == 0 {
		return 0
	}
	return (p.Price - *p.PreviousPrice) / *p.PreviousPrice * 100
}

func (p *Product) pushHistory(pt PricePoint) {
	p.PriceHistory = append(p.PriceHistory, pt)
	if len(p.PriceHistory) > historyCap {
		p.PriceHistory = p.PriceHistory[len(p.PriceHistory)-historyCap:]
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
