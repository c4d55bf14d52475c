package pricing

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// symbolCodes maps currency symbols seen in page text to ISO codes.
var symbolCodes = map[string]string{
	"₺": "TRY",
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
}

// tldCurrencies maps a URL's top-level domain to a default currency,
// used by the heuristic strategy when no symbol was found on the page.
var tldCurrencies = map[string]string{
	"tr":  "TRY",
	"uk":  "GBP",
	"de":  "EUR",
	"fr":  "EUR",
	"es":  "EUR",
	"it":  "EUR",
	"nl":  "EUR",
	"be":  "EUR",
	"at":  "EUR",
	"ie":  "EUR",
	"fi":  "EUR",
	"us":  "USD",
	"com": "USD",
	"ca":  "CAD",
	"au":  "AUD",
	"jp":  "JPY",
}

// approxRates holds USD per one unit of each currency. These are
// declared approximate and exist only for display-level conversion,
// never for stored price values.
var approxRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"TRY": 0.031,
	"CAD": 0.74,
	"AUD": 0.66,
	"JPY": 0.0067,
}

// CodeForSymbol returns the ISO code for a currency symbol, or "".
func CodeForSymbol(symbol string) string {
	return symbolCodes[symbol]
}

// DefaultCurrencyForHost infers a currency from the host's TLD.
// Unknown TLDs default to USD.
func DefaultCurrencyForHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	idx := strings.LastIndexByte(host, '.')
	if idx < 0 || idx == len(host)-1 {
		return "USD"
	}
	if code, ok := tldCurrencies[host[idx+1:]]; ok {
		return code
	}
	return "USD"
}

// IsValidCode reports whether code is a well-formed ISO 4217 code.
func IsValidCode(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

// Convert translates an amount between currencies using the
// approximate-rate table. The result is label-quality only.
func Convert(amount float64, from, to string) (float64, error) {
	fromRate, ok := approxRates[strings.ToUpper(from)]
	if !ok {
		return 0, fmt.Errorf("no approximate rate for %q", from)
	}
	toRate, ok := approxRates[strings.ToUpper(to)]
	if !ok {
		return 0, fmt.Errorf("no approximate rate for %q", to)
	}
	return amount * fromRate / toRate, nil
}

// Format renders an amount with its currency symbol for notification
// text, e.g. "€1,299.50".
func Format(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%.2f %s", amount, code)
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.NarrowSymbol(unit.Amount(amount)))
}
