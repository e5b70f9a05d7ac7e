package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       cleanText(feed.Title),
		Link:        strings.TrimSpace(feed.Link),
		Description: cleanText(feed.Description),
		Language:    feed.Language,
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.normalizeItem(item))
	}

	return metadata, entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		Title: cleanText(item.Title),
		Link:  strings.TrimSpace(item.Link),
	}

	if item.PublishedParsed != nil {
		entry.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		entry.PublishedAt = item.UpdatedParsed.UTC()
	}

	return entry
}

// cleanText drops markup and entities from a title and collapses whitespace.
func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
