package rss

import (
	"html"
	"regexp"
	"strings"
)

var (
	itemRe    = regexp.MustCompile(`(?s)<item(?:\s[^>]*)?>(.*?)</item>`)
	titleRe   = regexp.MustCompile(`(?s)<title(?:\s[^>]*)?>(.*?)</title>`)
	linkRe    = regexp.MustCompile(`(?s)<link(?:\s[^>]*)?>(.*?)</link>`)
	descRe    = regexp.MustCompile(`(?s)<description(?:\s[^>]*)?>(.*?)</description>`)
	pubDateRe = regexp.MustCompile(`(?s)<pubDate(?:\s[^>]*)?>(.*?)</pubDate>`)

	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	cdataRe  = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
)

// Item is one entry of a feed.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
}

// Parse extracts items from an RSS 2.0 document. It is deliberately lenient:
// anything that does not look like an item is ignored.
func Parse(doc string) []Item {
	items := []Item{}
	for _, m := range itemRe.FindAllStringSubmatch(doc, -1) {
		body := m[1]
		items = append(items, Item{
			Title:       stripHTML(field(titleRe, body)),
			Link:        strings.TrimSpace(unwrapCDATA(field(linkRe, body))),
			Description: stripHTML(field(descRe, body)),
			PubDate:     strings.TrimSpace(field(pubDateRe, body)),
		})
	}
	return items
}

func field(re *regexp.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

func unwrapCDATA(s string) string {
	return cdataRe.ReplaceAllString(s, "$1")
}

// stripHTML removes script blocks and tags from feed text and decodes entities.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = unwrapCDATA(s)
	s = html.UnescapeString(s)
	s = scriptRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
