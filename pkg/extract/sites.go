package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/pricing"
)

// SiteRule is a declarative per-domain extraction rule: ordered
// selector lists for price, name and image. PriceAttr, when set, reads
// the price from an attribute instead of the element text.
type SiteRule struct {
	PriceSelectors []string
	PriceAttr      string
	NameSelectors  []string
	ImageSelectors []string
}

// siteRules covers retailers whose markup is known and stable enough
// to trust at the highest confidence band.
var siteRules = map[string]SiteRule{
	"amazon.com": {
		PriceSelectors: []string{".a-price .a-offscreen", "#priceblock_ourprice", "#priceblock_dealprice", "#corePrice_feature_div .a-price .a-offscreen"},
		NameSelectors:  []string{"#productTitle"},
		ImageSelectors: []string{"#landingImage", "#imgBlkFront"},
	},
	"amazon.de": {
		PriceSelectors: []string{".a-price .a-offscreen", "#priceblock_ourprice"},
		NameSelectors:  []string{"#productTitle"},
		ImageSelectors: []string{"#landingImage"},
	},
	"amazon.com.tr": {
		PriceSelectors: []string{".a-price .a-offscreen", "#priceblock_ourprice"},
		NameSelectors:  []string{"#productTitle"},
		ImageSelectors: []string{"#landingImage"},
	},
	"ebay.com": {
		PriceSelectors: []string{".x-price-primary .ux-textspans", "#prcIsum", "#mm-saleDscPrc"},
		NameSelectors:  []string{".x-item-title__mainTitle", "#itemTitle"},
		ImageSelectors: []string{"#icImg", ".ux-image-carousel-item img"},
	},
	"etsy.com": {
		PriceSelectors: []string{`[data-selector="price-only"] .currency-value`, ".wt-text-title-larger"},
		NameSelectors:  []string{`h1[data-buy-box-listing-title="true"]`},
		ImageSelectors: []string{".carousel-image img"},
	},
	"hepsiburada.com": {
		PriceSelectors: []string{`[data-test-id="price-current-price"]`, ".price-value", "#offering-price"},
		NameSelectors:  []string{"#product-name", "h1.product-name"},
		ImageSelectors: []string{"#img-container img"},
	},
	"trendyol.com": {
		PriceSelectors: []string{".prc-dsc", ".prc-slg", ".product-price-container .prc-box-dscntd"},
		NameSelectors:  []string{"h1.pr-new-br", ".pr-in-br"},
		ImageSelectors: []string{".base-product-image img"},
	},
	"n11.com": {
		PriceSelectors: []string{".newPrice ins", ".priceContainer ins"},
		NameSelectors:  []string{"h1.proName"},
		ImageSelectors: []string{".imgObj img"},
	},
}

// RuleForDomain looks up a site rule for a host, matching the bare
// domain and registrable-suffix forms.
func RuleForDomain(domain string) (SiteRule, bool) {
	if rule, ok := siteRules[domain]; ok {
		return rule, true
	}
	for key, rule := range siteRules {
		if strings.HasSuffix(domain, "."+key) {
			return rule, true
		}
	}
	return SiteRule{}, false
}

type siteRuleStrategy struct{}

func (siteRuleStrategy) Name() string { return "site_rule" }

func (siteRuleStrategy) Extract(doc *goquery.Document, pageURL string) *Result {
	rule, ok := RuleForDomain(domainOf(pageURL))
	if !ok {
		return nil
	}

	var parsed *pricing.Parsed
	for _, sel := range rule.PriceSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		raw := strings.TrimSpace(node.Text())
		if rule.PriceAttr != "" {
			if v, ok := node.Attr(rule.PriceAttr); ok {
				raw = strings.TrimSpace(v)
			}
		}
		if parsed = pricing.Parse(raw); parsed != nil {
			break
		}
	}
	if parsed == nil {
		return nil
	}

	var name string
	for _, sel := range rule.NameSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			name = t
			break
		}
	}

	var image string
	for _, sel := range rule.ImageSelectors {
		if src, ok := doc.Find(sel).First().Attr("src"); ok {
			image = strings.TrimSpace(src)
			break
		}
	}

	currency := parsed.Currency
	if !parsed.HasCurrency {
		currency = pricing.DefaultCurrencyForHost(hostOf(pageURL))
	}

	return &Result{
		Name:       name,
		Price:      parsed.Amount,
		Currency:   currency,
		Image:      image,
		Confidence: ConfidenceSiteRule,
	}
}
