package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/blacker-cz/mangascraper"
)

// link is an absolute locator found in a document with its label.
type link struct {
	URL  string
	Text string
}

// lazyAttrs are tried, in order, when no attribute is configured.
var lazyAttrs = []string{"href", "data-src", "data-lazy-src", "data-original", "src"}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "failed to parse HTML: %v", err)
	}
	return doc, nil
}

// selectLinks returns the locators of all elements matching selector in
// document order, deduplicated. attr names the attribute to read; when empty
// the first non-empty of lazyAttrs is used.
func selectLinks(doc *goquery.Document, base *url.URL, selector, attr string) []link {
	var links []link
	seen := make(map[string]bool)

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		value := attrValue(sel, attr)
		if value == "" || isNonHTTPLink(value) {
			return
		}

		resolved := resolveURL(base, value)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true

		links = append(links, link{URL: resolved, Text: label(sel)})
	})

	return links
}

// nextURL returns the resolved href of the first element matching selector,
// or "" if there is none.
func nextURL(doc *goquery.Document, base *url.URL, selector string) string {
	if selector == "" {
		return ""
	}
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok || isNonHTTPLink(href) {
		return ""
	}
	return resolveURL(base, href)
}

func attrValue(sel *goquery.Selection, attr string) string {
	if attr != "" {
		return strings.TrimSpace(sel.AttrOr(attr, ""))
	}
	for _, a := range lazyAttrs {
		if v := strings.TrimSpace(sel.AttrOr(a, "")); v != "" {
			return v
		}
	}
	return ""
}

// label is the element's text, falling back to its title attribute and then
// to the alt text of the element or a nested image.
func label(sel *goquery.Selection) string {
	if text := strings.Join(strings.Fields(sel.Text()), " "); text != "" {
		return text
	}
	if title := strings.TrimSpace(sel.AttrOr("title", "")); title != "" {
		return title
	}
	if alt := strings.TrimSpace(sel.AttrOr("alt", "")); alt != "" {
		return alt
	}
	return strings.TrimSpace(sel.Find("img").First().AttrOr("alt", ""))
}

// resolveURL resolves a relative URL against a base URL.
// Returns empty string if the href cannot be parsed or if the resolved URL
// is the base page itself. Fragments are stripped.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""

	result := resolved.String()
	self := *base
	self.Fragment = ""
	if result == self.String() {
		return ""
	}
	return result
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
