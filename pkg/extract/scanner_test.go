package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse test markup: %v", err)
	}
	return doc
}

func TestScan_FindsPriceCandidates(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<h1>Some Product With A Long Name</h1>
		<div class="product-price">$129.99</div>
		<span id="fiyat">149,90 TL</span>
	</body></html>`)

	candidates := Scan(doc)
	if len(candidates) < 2 {
		t.Fatalf("expected at least 2 candidates, got %d", len(candidates))
	}

	prices := map[float64]bool{}
	for _, c := range candidates {
		prices[c.Price] = true
	}
	if !prices[129.99] {
		t.Error("expected the class-matched USD candidate")
	}
	if !prices[149.90] {
		t.Error("expected the id-matched TRY candidate")
	}
}

func TestScan_CartExclusion(t *testing.T) {
	// Any container whose class, id, or text matches basket vocabulary
	// must never produce output, even with a well-formed price inside.
	docs := []string{
		`<div class="cart-price">$19.99</div>`,
		`<div class="price" id="basket-total">$19.99</div>`,
		`<div class="sepet-fiyat">19,99 TL</div>`,
		`<div class="price">add to cart $19.99</div>`,
	}
	for _, html := range docs {
		doc := parseHTML(t, `<html><body>`+html+`</body></html>`)
		if got := Scan(doc); len(got) != 0 {
			t.Errorf("markup %q produced %d candidates, want 0", html, len(got))
		}
	}
}

func TestScan_RejectsHiddenAndOutOfRange(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<div class="price" style="display: none">$19.99</div>
		<div class="price" hidden>$29.99</div>
		<div class="amount">$1,299,999.00</div>
		<div class="cost">$0.001</div>
	</body></html>`)

	if got := Scan(doc); len(got) != 0 {
		t.Errorf("expected no candidates, got %d: %+v", len(got), got)
	}
}

func TestScan_TextLengthBounds(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<div class="price">this overly descriptive promotional banner mentions $19.99 somewhere in it</div>
	</body></html>`)

	if got := Scan(doc); len(got) != 0 {
		t.Errorf("text over 30 chars must be rejected, got %d candidates", len(got))
	}
}

func TestScan_StopsAtCandidateCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<html><body>`)
	for i := 0; i < 80; i++ {
		sb.WriteString(`<div class="price">$19.99</div>`)
	}
	sb.WriteString(`</body></html>`)

	got := Scan(parseHTML(t, sb.String()))
	if len(got) > 50 {
		t.Errorf("scanner returned %d candidates, cap is 50", len(got))
	}
}

func TestScan_StyleSignals(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<div class="price" style="font-size: 28px; font-weight: 700; width: 100px; height: 100px">$99.00</div>
	</body></html>`)

	got := Scan(doc)
	if len(got) == 0 {
		t.Fatal("expected a candidate")
	}
	c := got[0]
	if c.FontSize != 28 {
		t.Errorf("FontSize = %v, want 28", c.FontSize)
	}
	if c.FontWeight != 700 {
		t.Errorf("FontWeight = %v, want 700", c.FontWeight)
	}
	if c.Area != 10000 {
		t.Errorf("Area = %v, want 10000", c.Area)
	}
	if !c.HasCurrency {
		t.Error("expected HasCurrency for an explicit $ symbol")
	}
	if !c.HasKeyword {
		t.Error("expected HasKeyword from the price class")
	}
}
