package api

import (
	"context"
	"time"

	"github.com/lysyi3m/news-comb/app/archive"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/routing"
	"github.com/lysyi3m/news-comb/app/session"
	"github.com/lysyi3m/news-comb/app/sound"
)

type GeneratorInterface interface {
	Run(pane routing.Pane, items []database.NewsItem, now time.Time) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Ingester interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

type Archiver interface {
	Run(ctx context.Context, now time.Time) (*archive.Result, error)
}

type NewsReader interface {
	Get(ctx context.Context, id string) (*database.NewsItem, error)
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]database.NewsItem, error)
	ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]database.NewsItem, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

type StatusReader interface {
	Get(ctx context.Context) (*database.SystemStatus, error)
}

// MarkStore persists one kind of per-user item mark (read or saved).
type MarkStore interface {
	Mark(ctx context.Context, userID string, itemIDs ...string) (int, error)
	Unmark(ctx context.Context, userID, itemID string) (bool, error)
}

// StatsReader backs /stats.
type StatsReader interface {
	SourceCount(ctx context.Context) (int, error)
	ArchivedCount(ctx context.Context) (int, error)
	RecentLogs(ctx context.Context, limit int) ([]database.IngestionLog, error)
	SchemaVersion() uint
}

type SoundSettings interface {
	Load(ctx context.Context, userID string) (sound.Preferences, error)
	Update(ctx context.Context, userID string, patch sound.Patch) (sound.Preferences, error)
}

type PaneStore interface {
	Snapshot() *routing.Snapshot
	Update(ctx context.Context, id string, title string, rules routing.Rules) (routing.Pane, error)
}

type Sessions interface {
	Open(ctx context.Context, userID, paneID string) (*session.Controller, error)
	Get(sessionID, userID string) (*session.Controller, error)
	Close(sessionID string)
	Count() int
	Alerts(ctx context.Context, userID string) (<-chan sound.Alert, func())
}

type Subscriber interface {
	Subscribe(topics ...realtime.Topic) *realtime.Subscription
}

var (
	_ Sessions    = (*session.Manager)(nil)
	_ PaneStore   = (*routing.Store)(nil)
	_ MarkStore   = (*database.UserStateRepo)(nil)
	_ NewsReader  = (*database.NewsRepo)(nil)
	_ Subscriber  = (*realtime.Hub)(nil)
	_ StatsReader = (*database.Stats)(nil)
)

// Services groups the handler dependencies.
type Services struct {
	Ingester  Ingester
	Archiver  Archiver
	News      NewsReader
	Status    StatusReader
	Read      MarkStore
	Saved     MarkStore
	Sound     SoundSettings
	Panes     PaneStore
	Sessions  Sessions
	Hub       Subscriber
	Generator GeneratorInterface
	Stats     StatsReader
	Configs   *feed.ConfigCache
}

type Handler struct {
	svc       Services
	keepalive time.Duration
	now       func() time.Time
}

type updatePaneRequest struct {
	Title string        `json:"title"`
	Rules routing.Rules `json:"rules"`
}

type markManyRequest struct {
	IDs []string `json:"ids"`
}

const (
	snapshotWindow   = 24 * time.Hour
	snapshotLimit    = 100
	snapshotSend     = 20
	keepaliveEvery   = 30 * time.Second
	feedWindow       = 24 * time.Hour
	feedCandidateCap = 100
	recentLogLimit   = 20
	userIDKey        = "userID"
)
