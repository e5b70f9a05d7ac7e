package database

import (
	"context"
	"time"
)

type NewsRepository interface {
	Insert(ctx context.Context, item *NewsItem) (bool, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*NewsItem, error)
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]NewsItem, error)
	ListPublishedAfter(ctx context.Context, after time.Time, limit int) ([]NewsItem, error)
	ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]NewsItem, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

type SourceRepository interface {
	ListActive(ctx context.Context) ([]RSSSource, error)
	Upsert(ctx context.Context, source RSSSource) (*RSSSource, error)
	Count(ctx context.Context) (int, error)
}

type LogRepository interface {
	Append(ctx context.Context, entry IngestionLog) error
	ListRecent(ctx context.Context, limit int) ([]IngestionLog, error)
}

type ArchiveRepository interface {
	ListPublishedBefore(ctx context.Context, cutoff time.Time) ([]NewsItem, error)
	Move(ctx context.Context, items []NewsItem, archivedAt time.Time) (int, error)
	CountArchived(ctx context.Context) (int, error)
}

type UserStateRepository interface {
	Mark(ctx context.Context, userID string, itemIDs ...string) (int, error)
	Unmark(ctx context.Context, userID, itemID string) (bool, error)
	Set(ctx context.Context, userID string, itemIDs []string) (map[string]bool, error)
}

type StatusRepository interface {
	Get(ctx context.Context) (*SystemStatus, error)
	Set(ctx context.Context, status string, lastIngest time.Time) error
}

var (
	_ NewsRepository      = (*NewsRepo)(nil)
	_ SourceRepository    = (*SourceRepo)(nil)
	_ LogRepository       = (*LogRepo)(nil)
	_ ArchiveRepository   = (*ArchiveRepo)(nil)
	_ UserStateRepository = (*UserStateRepo)(nil)
	_ StatusRepository    = (*StatusRepo)(nil)
)
