package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Confidence bands, fixed per strategy. Higher bands are tried first,
// with the custom per-domain selector slotted ahead of the site rules.
const (
	ConfidenceSiteRule   = 0.95
	ConfidenceCustom     = 0.90
	ConfidenceStructured = 0.85
	ConfidenceMetaTags   = 0.75
	ConfidenceHeuristic  = 0.60
)

// Result is a single extraction outcome. It is transient: the tracker
// merges it into the persisted product record.
type Result struct {
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	Image      string    `json:"image,omitempty"`
	Site       string    `json:"site"`
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// Strategy is one extraction method. Extract returns nil (not an
// error) when the strategy simply has nothing usable on this page;
// errors are reserved for malformed input.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, pageURL string) *Result
}

// ExtractionError means every strategy came up empty for a page.
type ExtractionError struct {
	URL   string
	Tried []string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no strategy produced a valid price for %s (tried %s)",
		e.URL, strings.Join(e.Tried, ", "))
}
