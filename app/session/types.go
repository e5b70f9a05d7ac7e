// Package session keeps one pane's live view for one viewer in sync with the
// news table.
package session

import (
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

const (
	MaxItems     = 10
	LoadWindow   = 24 * time.Hour
	LoadLimit    = 100
	GapLimit     = 50
	GapCooldown  = 60 * time.Second
	NewHighlight = 10 * time.Second
	GapHighlight = 30 * time.Second
)

type State string

const (
	StateLoading  State = "loading"
	StateLive     State = "live"
	StateFailed   State = "failed"
	StateNotFound State = "not_found"
	StateClosed   State = "closed"
)

type Highlight string

const (
	HighlightNone     Highlight = "none"
	HighlightRealtime Highlight = "realtime"
	HighlightGap      Highlight = "gap"
)

// DisplayItem is one row of a pane view.
type DisplayItem struct {
	ID             string         `json:"id"`
	Headline       string         `json:"headline"`
	Source         string         `json:"source"`
	URL            string         `json:"url"`
	PublishedAt    time.Time      `json:"publishedAt"`
	Tags           []taxonomy.Tag `json:"tags"`
	IsRead         bool           `json:"isRead"`
	IsSaved        bool           `json:"isSaved"`
	Highlight      Highlight      `json:"highlight"`
	HighlightUntil *time.Time     `json:"highlightUntil,omitempty"`
}

// View is a point-in-time copy of a session. Items is nil when Error is set.
type View struct {
	PaneID string        `json:"paneId"`
	State  State         `json:"state"`
	Error  string        `json:"error,omitempty"`
	Items  []DisplayItem `json:"items"`
}

type entry struct {
	item      database.NewsItem
	read      bool
	saved     bool
	highlight Highlight
	until     time.Time
}

func (e entry) display(now time.Time) DisplayItem {
	d := DisplayItem{
		ID:          e.item.ID,
		Headline:    e.item.Headline,
		Source:      e.item.Source,
		URL:         e.item.URL,
		PublishedAt: e.item.PublishedAt,
		Tags:        e.item.Tags().List(),
		IsRead:      e.read,
		IsSaved:     e.saved,
		Highlight:   HighlightNone,
	}
	if e.highlight != HighlightNone && e.highlight != "" && now.Before(e.until) {
		until := e.until
		d.Highlight = e.highlight
		d.HighlightUntil = &until
	}
	return d
}
