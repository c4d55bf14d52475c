package extract

import (
	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/pricing"
)

// heuristicStrategy is the last resort: scan the page for price-looking
// text, rank the candidates by visual/semantic signals, take the top.
type heuristicStrategy struct{}

func (heuristicStrategy) Name() string { return "heuristic" }

func (heuristicStrategy) Extract(doc *goquery.Document, pageURL string) *Result {
	candidates := Scan(doc)
	if len(candidates) == 0 {
		return nil
	}

	top := Rank(candidates)[0]

	currency := top.Currency
	if !top.HasCurrency {
		currency = pricing.DefaultCurrencyForHost(hostOf(pageURL))
	}

	return &Result{
		Name:       pageName(doc),
		Price:      top.Price,
		Currency:   currency,
		Image:      pageImage(doc),
		Confidence: ConfidenceHeuristic,
	}
}
