// Package scraper handles lightweight web scraping and browser cookie
// extraction for fetch jobs.
package scraper

import (
	"context"
	"strings"

	"github.com/gocolly/colly"

	"fetcharr/internal/utils/logging"
)

// Previewer scrapes OpenGraph page metadata. Used as a metadata fallback
// when the fetch engine cannot resolve an info document for a URL.
type Previewer struct{}

// NewPreviewer returns a page metadata scraper.
func NewPreviewer() *Previewer {
	return &Previewer{}
}

// Preview fetches the page at rawURL and returns its OpenGraph fields
// (title, thumbnail, uploader/site name, description). Returns an empty map
// when nothing useful was found.
func (p *Previewer) Preview(ctx context.Context, rawURL string) map[string]any {
	fields := make(map[string]any)

	c := colly.NewCollector()

	c.OnHTML(`meta[property^="og:"]`, func(e *colly.HTMLElement) {
		content := strings.TrimSpace(e.Attr("content"))
		if content == "" {
			return
		}
		switch e.Attr("property") {
		case "og:title":
			fields["title"] = content
		case "og:image":
			fields["thumbnail"] = upgradeToHTTPS(content)
		case "og:site_name":
			fields["uploader"] = content
		case "og:description":
			fields["description"] = content
		case "og:url":
			fields["webpage_url"] = content
		}
	})

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if _, ok := fields["title"]; !ok {
			if t := strings.TrimSpace(e.Text); t != "" {
				fields["title"] = t
			}
		}
	})

	if err := c.Visit(rawURL); err != nil {
		logging.D(2, "Preview scrape failed for %s: %v", rawURL, err)
		return nil
	}
	c.Wait()

	return fields
}

// upgradeToHTTPS prefers https thumbnails when the page serves http ones.
func upgradeToHTTPS(u string) string {
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}
	return u
}
