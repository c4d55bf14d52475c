package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// domainOf strips a leading www. so selector and rule tables key on
// the bare registrable name.
func domainOf(pageURL string) string {
	return strings.TrimPrefix(hostOf(pageURL), "www.")
}

func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// pageName derives a product name: the first h1 of plausible length,
// else the page title split on common separators.
func pageName(doc *goquery.Document) string {
	var name string
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if len(t) >= 15 && len(t) <= 300 {
			name = t
			return false
		}
		return true
	})
	if name != "" {
		return name
	}

	title := pageTitle(doc)
	for _, sep := range []string{" | ", " - ", " – ", " :: "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}
	return strings.TrimSpace(title)
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func pageImage(doc *goquery.Document) string {
	if img := metaContent(doc, `meta[property="og:image"]`, `meta[name="twitter:image"]`); img != "" {
		return img
	}
	if src, ok := doc.Find("img[src]").First().Attr("src"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}
