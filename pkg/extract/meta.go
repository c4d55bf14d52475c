package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/pricing"
)

// metaTagStrategy reads OpenGraph-style price/title/image meta fields,
// with a secondary fallback to generic product-price meta fields.
type metaTagStrategy struct{}

func (metaTagStrategy) Name() string { return "meta_tags" }

func (metaTagStrategy) Extract(doc *goquery.Document, pageURL string) *Result {
	raw := metaContent(doc,
		`meta[property="og:price:amount"]`,
		`meta[property="product:price:amount"]`,
	)
	if raw == "" {
		// generic product-price fallback
		raw = metaContent(doc,
			`meta[itemprop="price"]`,
			`meta[name="price"]`,
		)
	}
	if raw == "" {
		return nil
	}

	price, ok := parseMetaPrice(raw)
	if !ok {
		return nil
	}

	currency := strings.ToUpper(metaContent(doc,
		`meta[property="og:price:currency"]`,
		`meta[property="product:price:currency"]`,
		`meta[itemprop="priceCurrency"]`,
	))
	if currency == "" {
		currency = pricing.DefaultCurrencyForHost(hostOf(pageURL))
	}

	name := metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`)
	if name == "" {
		name = pageName(doc)
	}

	return &Result{
		Name:       name,
		Price:      price,
		Currency:   currency,
		Image:      pageImage(doc),
		Confidence: ConfidenceMetaTags,
	}
}

// parseMetaPrice handles the plain decimal most meta fields carry, and
// falls back to the locale-aware normalizer for anything dressed up.
func parseMetaPrice(raw string) (float64, bool) {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, n > 0
	}
	if parsed := pricing.Parse(raw); parsed != nil {
		return parsed.Amount, true
	}
	return 0, false
}
