package database

import "context"

// Stats serves the operational counters behind /stats.
type Stats struct {
	db      *DB
	sources *SourceRepo
	archive *ArchiveRepo
	logs    *LogRepo
}

func NewStats(db *DB) *Stats {
	return &Stats{
		db:      db,
		sources: NewSourceRepository(db),
		archive: NewArchiveRepository(db),
		logs:    NewLogRepository(db),
	}
}

func (s *Stats) SourceCount(ctx context.Context) (int, error) {
	return s.sources.Count(ctx)
}

func (s *Stats) ArchivedCount(ctx context.Context) (int, error) {
	return s.archive.CountArchived(ctx)
}

func (s *Stats) RecentLogs(ctx context.Context, limit int) ([]IngestionLog, error) {
	return s.logs.ListRecent(ctx, limit)
}

func (s *Stats) SchemaVersion() uint {
	return s.db.SchemaVersion()
}
