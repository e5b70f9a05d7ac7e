package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/realtime"
)

var _ ArchiveRepository = (*ArchiveRepo)(nil)

type ArchiveRepo struct {
	db *DB
}

func NewArchiveRepository(db *DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// ListPublishedBefore snapshots the items strictly older than cutoff.
func (r *ArchiveRepo) ListPublishedBefore(ctx context.Context, cutoff time.Time) ([]NewsItem, error) {
	rows, err := query(ctx, r.db.conn, sq.Select(newsColumns...).From("news_items").
		Where(sq.Lt{"published_at": toMillis(cutoff)}).
		OrderBy("published_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("failed to select items to archive: %w", err)
	}
	defer rows.Close()
	return scanNewsItems(rows)
}

// Move copies the given items into news_archive and deletes exactly those ids
// from news_items in one transaction. It also writes the archival audit row.
func (r *ArchiveRepo) Move(ctx context.Context, items []NewsItem, archivedAt time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	copyStmt, copyArgs, err := sq.Select("id", "source_id", "headline", "source", "url", "published_at",
		"region", "markets", "themes", "hash", "rules_version", "created_at", "?").
		From("news_items").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build archive copy: %w", err)
	}
	copyArgs = append([]any{toMillis(archivedAt)}, copyArgs...)

	_, err = tx.ExecContext(ctx, `INSERT INTO news_archive (
			id, source_id, headline, source, url, published_at,
			region, markets, themes, hash, rules_version, created_at, archived_at
		) `+copyStmt+` ON CONFLICT (id) DO NOTHING`, copyArgs...)
	if err != nil {
		return 0, fmt.Errorf("failed to copy items to archive: %w", err)
	}

	res, err := exec(ctx, tx, sq.Delete("news_items").Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived items: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	if err := appendLog(ctx, tx, IngestionLog{
		Status:       IngestionSuccess,
		ItemsFetched: int(deleted),
		CreatedAt:    archivedAt,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	for _, item := range items {
		r.db.publish(realtime.TableNewsItems, realtime.EventDelete, item)
	}

	return int(deleted), nil
}

func (r *ArchiveRepo) CountArchived(ctx context.Context) (int, error) {
	return count(ctx, r.db.conn, sq.Select("COUNT(*)").From("news_archive"))
}
