package database

import (
	"time"

	"github.com/lysyi3m/news-comb/app/taxonomy"
)

// NewsItem is a classified headline. Tags are fixed at ingestion time.
type NewsItem struct {
	ID           string            `json:"id"`
	SourceID     string            `json:"source_id,omitempty"`
	Headline     string            `json:"headline"`
	Source       string            `json:"source"`
	URL          string            `json:"url"`
	PublishedAt  time.Time         `json:"published_at"`
	Region       taxonomy.Region   `json:"region"`
	Markets      []taxonomy.Market `json:"markets"`
	Themes       []taxonomy.Theme  `json:"themes"`
	Hash         string            `json:"hash"`
	RulesVersion int               `json:"rules_version"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (n NewsItem) Tags() taxonomy.Tags {
	return taxonomy.Tags{Region: n.Region, Markets: n.Markets, Themes: n.Themes}
}

type RSSSource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Region    string    `json:"region"` // hint only, never used for classification
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type IngestionStatus string

const (
	IngestionSuccess IngestionStatus = "success"
	IngestionFailed  IngestionStatus = "failed"
)

// IngestionLog is an audit row. FeedID is nil for archival runs.
type IngestionLog struct {
	ID           int64           `json:"id"`
	FeedID       *string         `json:"feed_id"`
	Status       IngestionStatus `json:"status"`
	ItemsFetched int             `json:"items_fetched"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

const (
	StatusLive    = "live"
	StatusPartial = "partial"
)

type SystemStatus struct {
	Status     string
	LastIngest *time.Time
	UpdatedAt  time.Time
}

// UserItemChange is the change-feed record for read and saved marks.
type UserItemChange struct {
	UserID     string `json:"user_id"`
	NewsItemID string `json:"news_item_id"`
}
