package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the result of normalizing a raw price fragment.
type Parsed struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	HasCurrency bool    `json:"has_currency"`
}

type numberStyle int

const (
	styleTR numberStyle = iota // "." groups thousands, "," is the decimal mark
	styleUS                    // "," groups thousands, "." is the decimal mark
	styleEU                    // ambiguous, the rightmost separator wins as decimal
)

type pattern struct {
	re       *regexp.Regexp
	currency string
	style    numberStyle
	bare     bool
}

const (
	// Grouped shapes are tried before the ungrouped \d{4,} alternative
	// so "1,299" is read as one grouped number, not "1" next to "299".
	// Amounts over 999 are often printed without separators, so the
	// ungrouped alternative is required for currency-bearing inputs.
	trNumber = `(?:\d{1,3}(?:\.\d{3})*|\d{4,})(?:,\d{1,2})?`
	usNumber = `(?:\d{1,3}(?:,\d{3})*|\d{4,})(?:\.\d{1,2})?`
	euNumber = `\d(?:[\d.,]*\d)?`

	// Inputs longer than this are never prices; the scanner rejects
	// anything over 30 chars before calling Parse, this is a backstop.
	maxInputLen = 64
)

// Ordered most specific first: currency-bearing patterns per locale
// family, then bare-number fallbacks with the lowest trust. The first
// pattern that matches and yields a valid amount wins.
var patterns = []pattern{
	// Turkish: 1.299,00 TL / ₺1.299,00 / 1299 TRY
	{re: regexp.MustCompile(`(?i)(?:₺|TRY|TL)\s*(` + trNumber + `)(?:[^\d.,]|$)`), currency: "TRY", style: styleTR},
	{re: regexp.MustCompile(`(?i)(?:^|[^\d.,])(` + trNumber + `)\s*(?:₺|TRY|TL)`), currency: "TRY", style: styleTR},

	// US dollar: $1,299.50 / 1,299.50 USD
	{re: regexp.MustCompile(`(?i)(?:\$|USD)\s*(` + usNumber + `)(?:[^\d.,]|$)`), currency: "USD", style: styleUS},
	{re: regexp.MustCompile(`(?i)(?:^|[^\d.,])(` + usNumber + `)\s*(?:USD|\$)`), currency: "USD", style: styleUS},

	// British pound: £1,299.50 / 1,299.50 GBP
	{re: regexp.MustCompile(`(?i)(?:£|GBP)\s*(` + usNumber + `)(?:[^\d.,]|$)`), currency: "GBP", style: styleUS},
	{re: regexp.MustCompile(`(?i)(?:^|[^\d.,])(` + usNumber + `)\s*(?:GBP|£)`), currency: "GBP", style: styleUS},

	// Euro: both separator conventions appear in the wild, so the
	// number shape is permissive and resolved by the rightmost rule.
	{re: regexp.MustCompile(`(?i)(?:€|EUR)\s*(` + euNumber + `)(?:[^\d.,]|$)`), currency: "EUR", style: styleEU},
	{re: regexp.MustCompile(`(?i)(?:^|[^\d.,])(` + euNumber + `)\s*(?:EUR|€)`), currency: "EUR", style: styleEU},

	// Bare numbers, no currency token. Callers must supply a default
	// currency for these. TR grouping is tried first because its shape
	// is the more specific one (requires TR separators).
	{re: regexp.MustCompile(`^(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+,\d{1,2})$`), style: styleTR, bare: true},
	{re: regexp.MustCompile(`^(` + usNumber + `|\d+(?:\.\d{1,2})?)$`), style: styleUS, bare: true},
}

// Parse normalizes a trimmed text fragment into an amount and currency.
// Returns nil when no pattern yields a positive finite amount.
// The function is pure: no state, no I/O.
func Parse(text string) *Parsed {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxInputLen {
		return nil
	}

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, ok := normalizeNumber(m[1], p.style)
		if !ok {
			continue
		}
		return &Parsed{
			Amount:      amount,
			Currency:    p.currency,
			HasCurrency: !p.bare,
		}
	}
	return nil
}

// normalizeNumber strips group separators, converts the decimal mark to
// "." and parses. Amounts that are NaN, infinite or <= 0 are rejected.
func normalizeNumber(raw string, style numberStyle) (float64, bool) {
	var s string
	switch style {
	case styleTR:
		s = strings.ReplaceAll(raw, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case styleUS:
		s = strings.ReplaceAll(raw, ",", "")
	case styleEU:
		s = resolveAmbiguous(raw)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// resolveAmbiguous applies the rightmost-separator rule: when a number
// carries both "," and ".", whichever appears last is the decimal mark
// and the other is a group separator. With a single separator, a
// trailing three-digit run is read as a thousands group.
//
// This is a heuristic, not a guarantee: malformed inputs such as a
// thousands-only number with a trailing dot can still misparse. The
// rule is kept as-is on purpose.
func resolveAmbiguous(raw string) string {
	lastComma := strings.LastIndexByte(raw, ',')
	lastDot := strings.LastIndexByte(raw, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s := strings.ReplaceAll(raw, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(raw, ",", "")
	case lastComma >= 0:
		if len(raw)-lastComma-1 == 3 {
			return strings.ReplaceAll(raw, ",", "")
		}
		return strings.ReplaceAll(raw, ",", ".")
	case lastDot >= 0:
		if len(raw)-lastDot-1 == 3 {
			return strings.ReplaceAll(raw, ".", "")
		}
		return raw
	default:
		return raw
	}
}
