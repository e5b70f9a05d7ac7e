package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ LogRepository = (*LogRepo)(nil)

type LogRepo struct {
	db *DB
}

func NewLogRepository(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Append(ctx context.Context, entry IngestionLog) error {
	return appendLog(ctx, r.db.conn, entry)
}

func appendLog(ctx context.Context, q queryer, entry IngestionLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var feedID any
	if entry.FeedID != nil {
		feedID = *entry.FeedID
	}

	_, err := exec(ctx, q, sq.Insert("ingestion_logs").
		Columns("feed_id", "status", "items_fetched", "error_message", "created_at").
		Values(feedID, string(entry.Status), entry.ItemsFetched, entry.ErrorMessage, toMillis(entry.CreatedAt)))
	if err != nil {
		return fmt.Errorf("failed to append ingestion log: %w", err)
	}
	return nil
}

func (r *LogRepo) ListRecent(ctx context.Context, limit int) ([]IngestionLog, error) {
	rows, err := query(ctx, r.db.conn, sq.Select("id", "feed_id", "status", "items_fetched", "error_message", "created_at").
		From("ingestion_logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}
	defer rows.Close()

	logs := []IngestionLog{}
	for rows.Next() {
		var (
			entry     IngestionLog
			feedID    sql.NullString
			status    string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &feedID, &status, &entry.ItemsFetched, &entry.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion log row: %w", err)
		}
		if feedID.Valid {
			entry.FeedID = &feedID.String
		}
		entry.Status = IngestionStatus(status)
		entry.CreatedAt = fromMillis(createdAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingestion log rows: %w", err)
	}
	return logs, nil
}
