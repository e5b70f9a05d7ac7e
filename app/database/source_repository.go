package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var _ SourceRepository = (*SourceRepo)(nil)

type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) ListActive(ctx context.Context) ([]RSSSource, error) {
	rows, err := query(ctx, r.db.conn, sq.Select("id", "name", "url", "region", "active", "created_at", "updated_at").
		From("rss_sources").
		Where(sq.Eq{"active": 1}).
		OrderBy("name"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := []RSSSource{}
	for rows.Next() {
		var (
			src                  RSSSource
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Region, &src.Active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		src.CreatedAt = fromMillis(createdAt)
		src.UpdatedAt = fromMillis(updatedAt)
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}
	return sources, nil
}

// Upsert registers a source keyed by URL. Existing rows keep their id.
func (r *SourceRepo) Upsert(ctx context.Context, source RSSSource) (*RSSSource, error) {
	now := time.Now().UTC()
	if source.ID == "" {
		source.ID = uuid.NewString()
	}

	stmt, args, err := sq.Insert("rss_sources").
		Columns("id", "name", "url", "region", "active", "created_at", "updated_at").
		Values(source.ID, source.Name, source.URL, source.Region, source.Active, toMillis(now), toMillis(now)).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			active = excluded.active,
			updated_at = excluded.updated_at
		RETURNING id, created_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build upsert: %w", err)
	}

	var createdAt int64
	if err := r.db.conn.QueryRowContext(ctx, stmt, args...).Scan(&source.ID, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to upsert source %s: %w", source.Name, err)
	}
	source.CreatedAt = fromMillis(createdAt)
	source.UpdatedAt = fromMillis(toMillis(now))

	return &source, nil
}

func (r *SourceRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db.conn, sq.Select("COUNT(*)").From("rss_sources"))
}
