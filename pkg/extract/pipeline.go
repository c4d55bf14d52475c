package extract

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/pricing"
	"pricewatch-go/pkg/storage"
)

// freshnessTTL absorbs rapid repeat extractions of the same page
// within one lifecycle. This is distinct from the network fetch cache,
// which holds results for minutes.
const freshnessTTL = 10 * time.Second

// Pipeline runs the extraction strategies in fixed priority order and
// returns the first usable price.
type Pipeline struct {
	strategies []Strategy
	fresh      *storage.TTLCache
	log        *logger.Logger
}

// NewPipeline wires the strategy cascade. selectors may be nil when no
// element-picker mapping exists.
func NewPipeline(selectors *SelectorStore) *Pipeline {
	return &Pipeline{
		strategies: []Strategy{
			customSelectorStrategy{store: selectors},
			siteRuleStrategy{},
			structuredDataStrategy{},
			metaTagStrategy{},
			heuristicStrategy{},
		},
		fresh: storage.NewTTLCache(64, freshnessTTL),
		log:   logger.GetLogger().WithComponent("extract_pipeline"),
	}
}

// Extract tries each strategy until one yields a valid price. Returns
// an ExtractionError listing the strategies tried when all fail.
func (p *Pipeline) Extract(doc *goquery.Document, pageURL string) (*Result, error) {
	key := pageURL + "|" + pageTitle(doc)
	if v, ok := p.fresh.Get(key); ok {
		return v.(*Result), nil
	}

	tried := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		tried = append(tried, s.Name())

		r := s.Extract(doc, pageURL)
		if r == nil || r.Price <= 0 {
			continue
		}

		r.URL = pageURL
		r.Site = hostOf(pageURL)
		r.Timestamp = time.Now()
		if r.Name == "" {
			r.Name = pageName(doc)
		}
		if r.Currency == "" {
			r.Currency = pricing.DefaultCurrencyForHost(r.Site)
		}

		p.log.WithFields(map[string]interface{}{
			"strategy":   s.Name(),
			"price":      r.Price,
			"currency":   r.Currency,
			"confidence": r.Confidence,
		}).Debug("extraction succeeded")

		p.fresh.Set(key, r)
		return r, nil
	}

	return nil, &ExtractionError{URL: pageURL, Tried: tried}
}
