package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/pricing"
)

// structuredDataStrategy reads embedded JSON-LD product records. The
// first record typed as a Product with a parseable offer price wins.
type structuredDataStrategy struct{}

func (structuredDataStrategy) Name() string { return "structured_data" }

func (structuredDataStrategy) Extract(doc *goquery.Document, pageURL string) *Result {
	var out *Result
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v interface{}
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		if r := productRecord(v); r != nil {
			out = r
			return false
		}
		return true
	})

	if out == nil {
		return nil
	}
	if out.Currency == "" {
		out.Currency = pricing.DefaultCurrencyForHost(hostOf(pageURL))
	}
	out.Confidence = ConfidenceStructured
	return out
}

// productRecord walks a decoded JSON-LD value looking for a Product.
// Handles top-level arrays and @graph containers.
func productRecord(v interface{}) *Result {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if r := productRecord(item); r != nil {
				return r
			}
		}
	case map[string]interface{}:
		if isProductType(t["@type"]) {
			if r := resultFromProduct(t); r != nil {
				return r
			}
		}
		if graph, ok := t["@graph"]; ok {
			return productRecord(graph)
		}
	}
	return nil
}

func isProductType(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func resultFromProduct(product map[string]interface{}) *Result {
	offer := firstOffer(product["offers"])
	if offer == nil {
		return nil
	}

	price, ok := numericValue(offer["price"])
	if !ok {
		price, ok = numericValue(offer["lowPrice"])
	}
	if !ok || price <= 0 {
		return nil
	}

	currency, _ := offer["priceCurrency"].(string)
	name, _ := product["name"].(string)

	return &Result{
		Name:     strings.TrimSpace(name),
		Price:    price,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
		Image:    imageValue(product["image"]),
	}
}

func firstOffer(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case []interface{}:
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				return m
			}
		}
	}
	return nil
}

// numericValue accepts JSON numbers and the string forms retailers
// actually emit ("129.99", "1.299,00").
func numericValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, t > 0
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, n > 0
		}
		if parsed := pricing.Parse(s); parsed != nil {
			return parsed.Amount, true
		}
	}
	return 0, false
}

func imageValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	case map[string]interface{}:
		if s, ok := t["url"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
