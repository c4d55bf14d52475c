package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/pricing"
)

// Candidate is one text node that looks like a price, with the visual
// and semantic signals the scorer weighs. Geometry comes from inline
// styles and tag defaults: the engine parses resolved markup, it does
// not run a layout engine.
type Candidate struct {
	Price       float64
	Currency    string
	HasCurrency bool
	Text        string
	FontSize    float64
	FontWeight  int
	Area        float64
	YPosition   float64
	Centered    bool
	HasKeyword  bool
	Sel         *goquery.Selection
}

var (
	priceVocab = regexp.MustCompile(`(?i)price|fiyat|amount|cost|tutar`)
	cartVocab  = regexp.MustCompile(`(?i)sepet|basket|cart`)
)

const (
	maxCandidates  = 50
	maxChildren    = 20
	minTextLen     = 2
	maxTextLen     = 30
	minPrice       = 0.01
	maxPrice       = 999999
	approxLineY    = 24 // rough vertical pixels per element in document order
	searchAttrList = "class id itemprop data-testid data-test"
)

// Scan walks the document for price-looking text. It selects
// containers whose class/id/attribute values match the price
// vocabulary, drops anything cart-flavored, and runs the normalizer on
// the container and its direct leaf children. No ranking happens here.
func Scan(doc *goquery.Document) []Candidate {
	var candidates []Candidate
	searchAttrs := strings.Fields(searchAttrList)

	doc.Find("*").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(candidates) >= maxCandidates {
			return false
		}

		var attrText strings.Builder
		for _, name := range searchAttrs {
			if v, ok := s.Attr(name); ok {
				attrText.WriteString(v)
				attrText.WriteByte(' ')
			}
		}
		if !priceVocab.MatchString(attrText.String()) {
			return true
		}

		// Cart exclusion is load-bearing: without it the scan
		// over-matches "add to cart" price badges.
		if cartVocab.MatchString(attrText.String()) || cartVocab.MatchString(s.Text()) {
			return true
		}

		y := float64(i) * approxLineY

		if c, ok := makeCandidate(s, y); ok {
			candidates = append(candidates, c)
		}

		children := s.Children()
		if children.Length() > maxChildren {
			return true
		}
		children.Each(func(_ int, child *goquery.Selection) {
			if len(candidates) >= maxCandidates {
				return
			}
			if child.Children().Length() > 0 {
				return
			}
			if attrsMatchCart(child) || cartVocab.MatchString(child.Text()) {
				return
			}
			if c, ok := makeCandidate(child, y); ok {
				candidates = append(candidates, c)
			}
		})
		return true
	})

	return candidates
}

func makeCandidate(s *goquery.Selection, y float64) (Candidate, bool) {
	if !isVisible(s) {
		return Candidate{}, false
	}

	text := strings.TrimSpace(s.Text())
	if len(text) < minTextLen || len(text) > maxTextLen {
		return Candidate{}, false
	}

	parsed := pricing.Parse(text)
	if parsed == nil || parsed.Amount < minPrice || parsed.Amount > maxPrice {
		return Candidate{}, false
	}

	style := parseInlineStyle(s)
	return Candidate{
		Price:       parsed.Amount,
		Currency:    parsed.Currency,
		HasCurrency: parsed.HasCurrency,
		Text:        text,
		FontSize:    fontSizeOf(s, style),
		FontWeight:  fontWeightOf(s, style),
		Area:        areaOf(style),
		YPosition:   y,
		Centered:    isCentered(style),
		HasKeyword:  hasPriceKeyword(s),
		Sel:         s,
	}, true
}

func attrsMatchCart(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	return cartVocab.MatchString(class) || cartVocab.MatchString(id)
}

// hasPriceKeyword checks the element and up to three ancestors for a
// price-vocabulary class or id.
func hasPriceKeyword(s *goquery.Selection) bool {
	cur := s
	for depth := 0; depth < 4 && cur.Length() > 0; depth++ {
		class, _ := cur.Attr("class")
		id, _ := cur.Attr("id")
		if priceVocab.MatchString(class) || priceVocab.MatchString(id) {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

func isVisible(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "script" || goquery.NodeName(s) == "style" ||
		goquery.NodeName(s) == "noscript" || goquery.NodeName(s) == "template" {
		return false
	}
	if _, hidden := s.Attr("hidden"); hidden {
		return false
	}
	if v, _ := s.Attr("aria-hidden"); v == "true" {
		return false
	}
	if v, _ := s.Attr("type"); v == "hidden" {
		return false
	}
	style, _ := s.Attr("style")
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}

func parseInlineStyle(s *goquery.Selection) map[string]string {
	style, ok := s.Attr("style")
	if !ok {
		return nil
	}
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		props[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	return props
}

var tagFontSizes = map[string]float64{
	"h1": 32, "h2": 24, "h3": 19, "h4": 16, "h5": 13, "h6": 11,
	"small": 13, "sup": 12, "sub": 12,
}

func fontSizeOf(s *goquery.Selection, style map[string]string) float64 {
	if v, ok := style["font-size"]; ok {
		if px, ok := cssLengthPx(v); ok {
			return px
		}
	}
	if size, ok := tagFontSizes[goquery.NodeName(s)]; ok {
		return size
	}
	return 16
}

var boldTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"strong": true, "b": true, "th": true,
}

func fontWeightOf(s *goquery.Selection, style map[string]string) int {
	if v, ok := style["font-weight"]; ok {
		switch v {
		case "bold", "bolder":
			return 700
		case "normal":
			return 400
		default:
			if w, err := strconv.Atoi(v); err == nil {
				return w
			}
		}
	}
	if boldTags[goquery.NodeName(s)] {
		return 700
	}
	return 400
}

func areaOf(style map[string]string) float64 {
	w, okW := cssLengthPx(style["width"])
	h, okH := cssLengthPx(style["height"])
	if okW && okH {
		return w * h
	}
	return 0
}

func isCentered(style map[string]string) bool {
	if style["text-align"] == "center" {
		return true
	}
	return strings.Contains(style["margin"], "auto")
}

func cssLengthPx(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasSuffix(v, "px"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
		return n, err == nil
	case strings.HasSuffix(v, "rem"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(v, "rem"), 64)
		return n * 16, err == nil
	case strings.HasSuffix(v, "em"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64)
		return n * 16, err == nil
	case strings.HasSuffix(v, "%"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		return n / 100 * 16, err == nil
	}
	return 0, false
}
