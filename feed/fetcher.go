// Package feed turns RSS/Atom items into journal entries, for people who
// kept a diary on a blog or another service that exports a feed.
package feed

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/robertmeta/journal-cli/model"
)

// Fetcher handles fetching and parsing RSS/Atom feeds.
type Fetcher struct {
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFetcher creates a new Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

// Fetch retrieves a feed from a URL and converts its items.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.Entry, error) {
	parsedFeed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed from %s: %w", url, err)
	}

	return f.convert(parsedFeed), nil
}

// Parse converts feed content held in a string.
func (f *Fetcher) Parse(content string) ([]model.Entry, error) {
	if content == "" {
		return nil, fmt.Errorf("feed content is empty")
	}

	parsedFeed, err := f.parser.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return f.convert(parsedFeed), nil
}

// convert maps every item, oldest first, so the journal keeps
// chronological insertion order. Undated items go last.
func (f *Fetcher) convert(gf *gofeed.Feed) []model.Entry {
	items := make([]*gofeed.Item, len(gf.Items))
	copy(items, gf.Items)

	sortItems(items)

	entries := make([]model.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, f.convertItem(item))
	}
	return entries
}

// convertItem converts a gofeed.Item to a journal entry. The title becomes
// the first line of the text, the first category becomes the mood.
func (f *Fetcher) convertItem(item *gofeed.Item) model.Entry {
	now := f.now()

	published := now
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	// Prefer full content over description
	body := item.Content
	if body == "" {
		body = item.Description
	}

	var parts []string
	if title := strings.TrimSpace(item.Title); title != "" {
		parts = append(parts, title)
	}
	if text := StripHTML(body); text != "" {
		parts = append(parts, text)
	}

	var mood string
	if len(item.Categories) > 0 {
		mood = item.Categories[0]
	}

	return model.NewEntry(
		published.Format(model.DateLayout),
		mood,
		"",
		strings.Join(parts, "\n\n"),
		now,
	)
}

// sortItems orders dated items oldest first. Undated items follow, in
// feed order.
func sortItems(items []*gofeed.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := itemTime(items[i]), itemTime(items[j])
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.Before(*tj)
		}
	})
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

var (
	tagPattern       = regexp.MustCompile(`(?s)<[^>]*>`)
	blockTagPattern  = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6])\s*/?\s*>`)
	blankLinePattern = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces an HTML fragment to plain text, keeping paragraph
// breaks.
func StripHTML(s string) string {
	s = blockTagPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLinePattern.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
