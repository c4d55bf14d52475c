package extract

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/pricing"
	"pricewatch-go/pkg/storage"
)

// CustomSelector is a user-picked price selector for one domain,
// produced by the external element-picker tool. The engine only reads
// this map, never writes it.
type CustomSelector struct {
	Selector    string    `json:"selector"`
	ExampleText string    `json:"example_text,omitempty"`
	LastSaved   time.Time `json:"last_saved"`
}

const customSelectorsKey = "custom_selectors"

// SelectorStore caches the {domain → selector} mapping from storage.
type SelectorStore struct {
	storage  storage.Storage
	mu       sync.RWMutex
	byDomain map[string]CustomSelector
	log      *logger.Logger
}

func NewSelectorStore(st storage.Storage) *SelectorStore {
	return &SelectorStore{
		storage:  st,
		byDomain: make(map[string]CustomSelector),
		log:      logger.GetLogger().WithComponent("selector_store"),
	}
}

// Refresh re-reads the selector map. A missing key leaves the map
// empty, which is the normal state before any selector was picked.
func (ss *SelectorStore) Refresh(ctx context.Context) error {
	var loaded map[string]CustomSelector
	found, err := ss.storage.Get(ctx, customSelectorsKey, &loaded)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	if found {
		ss.byDomain = loaded
	} else {
		ss.byDomain = make(map[string]CustomSelector)
	}
	ss.mu.Unlock()

	ss.log.WithField("domains", len(loaded)).Debug("custom selectors loaded")
	return nil
}

func (ss *SelectorStore) ForDomain(domain string) (CustomSelector, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	sel, ok := ss.byDomain[strings.TrimPrefix(domain, "www.")]
	return sel, ok
}

// customSelectorStrategy tries the user-picked selector ahead of the
// site rule table. Both remain candidates: a failed custom selector
// falls through to the rules rather than overriding them.
type customSelectorStrategy struct {
	store *SelectorStore
}

func (customSelectorStrategy) Name() string { return "custom_selector" }

func (cs customSelectorStrategy) Extract(doc *goquery.Document, pageURL string) *Result {
	if cs.store == nil {
		return nil
	}
	sel, ok := cs.store.ForDomain(domainOf(pageURL))
	if !ok || sel.Selector == "" {
		return nil
	}

	raw := strings.TrimSpace(doc.Find(sel.Selector).First().Text())
	parsed := pricing.Parse(raw)
	if parsed == nil {
		return nil
	}

	currency := parsed.Currency
	if !parsed.HasCurrency {
		currency = pricing.DefaultCurrencyForHost(hostOf(pageURL))
	}

	return &Result{
		Name:       pageName(doc),
		Price:      parsed.Amount,
		Currency:   currency,
		Image:      pageImage(doc),
		Confidence: ConfidenceCustom,
	}
}
