package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/routing"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator("https://news.example.com/", "1.2.3")

	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pane := routing.Pane{ID: "risk_events", Title: "Risk & Events"}
	items := []database.NewsItem{
		{
			ID:          "item-1",
			Headline:    "US sanctions <and> Fed meeting today",
			Source:      "Reuters",
			URL:         "https://example.com/a?x=1&y=2",
			PublishedAt: published,
			Region:      taxonomy.RegionAmericas,
			Themes:      []taxonomy.Theme{taxonomy.ThemeMonetaryPolicy, taxonomy.ThemeGeopolitics},
		},
	}

	rss, err := generator.Run(pane, items, time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectations := []string{
		`<title>Risk &amp; Events</title>`,
		`<atom:link href="https://news.example.com/panes/risk_events/feed.xml" rel="self"`,
		`<generator>News-Comb/1.2.3</generator>`,
		`<guid isPermaLink="false">item-1</guid>`,
		`<title>US sanctions &lt;and&gt; Fed meeting today</title>`,
		`<link>https://example.com/a?x=1&amp;y=2</link>`,
		`<pubDate>` + published.Format(time.RFC1123Z) + `</pubDate>`,
		`<category>AMERICAS</category>`,
		`<category>GEOPOLITICS</category>`,
	}
	for _, want := range expectations {
		if !strings.Contains(rss, want) {
			t.Errorf("Expected RSS to contain %q", want)
		}
	}
}

func TestGenerateRSSEmpty(t *testing.T) {
	generator := NewGenerator("http://localhost:8080", "dev")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rss, err := generator.Run(routing.Pane{ID: "europe"}, nil, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if !strings.Contains(rss, "<title>europe</title>") {
		t.Error("Expected pane id as title fallback")
	}
	if !strings.Contains(rss, now.Format(time.RFC1123Z)) {
		t.Error("Expected lastBuildDate to use now")
	}
}
