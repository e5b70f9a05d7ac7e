package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ StatusRepository = (*StatusRepo)(nil)

type StatusRepo struct {
	db *DB
}

func NewStatusRepository(db *DB) *StatusRepo {
	return &StatusRepo{db: db}
}

func (r *StatusRepo) Get(ctx context.Context) (*SystemStatus, error) {
	stmt, args, err := sq.Select("status", "last_ingest", "updated_at").From("system_status").Where(sq.Eq{"id": 1}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		status     SystemStatus
		lastIngest sql.NullInt64
		updatedAt  int64
	)
	err = r.db.conn.QueryRowContext(ctx, stmt, args...).Scan(&status.Status, &lastIngest, &updatedAt)
	if err == sql.ErrNoRows {
		return &SystemStatus{Status: StatusLive}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read system status: %w", err)
	}

	if lastIngest.Valid {
		t := fromMillis(lastIngest.Int64)
		status.LastIngest = &t
	}
	status.UpdatedAt = fromMillis(updatedAt)
	return &status, nil
}

func (r *StatusRepo) Set(ctx context.Context, status string, lastIngest time.Time) error {
	_, err := exec(ctx, r.db.conn, sq.Insert("system_status").
		Columns("id", "status", "last_ingest", "updated_at").
		Values(1, status, toMillis(lastIngest), toMillis(time.Now())).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			last_ingest = excluded.last_ingest,
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("failed to update system status: %w", err)
	}
	return nil
}
