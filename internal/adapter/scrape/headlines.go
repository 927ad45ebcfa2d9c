package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	minLinkText  = 20
	minTitleText = 15
)

// Headline is one candidate title pulled from a page.
type Headline struct {
	Title string
	URL   string
}

// ExtractHeadlines returns up to limit distinct headlines from html. Section
// headings come first, followed by long link texts. When keywords is non-empty
// only titles containing one of them are kept. Relative links are resolved
// against sourceURL.
func ExtractHeadlines(html, sourceURL string, limit int, keywords []string) []Headline {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(sourceURL)

	var candidates []Headline
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, Headline{Title: squash(s.Text()), URL: sourceURL})
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := squash(s.Text())
		if len(text) < minLinkText {
			return
		}
		href, _ := s.Attr("href")
		candidates = append(candidates, Headline{Title: text, URL: resolve(base, href, sourceURL)})
	})

	seen := make(map[string]bool)
	out := make([]Headline, 0, limit)
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		if len(c.Title) < minTitleText {
			continue
		}
		lower := strings.ToLower(c.Title)
		if seen[lower] || !matchesAny(lower, keywords) {
			continue
		}
		seen[lower] = true
		out = append(out, c)
	}
	return out
}

func matchesAny(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href, fallback string) string {
	if base == nil {
		return fallback
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return fallback
	}
	return base.ResolveReference(ref).String()
}
