package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/realtime"
)

var (
	_ UserStateRepository = (*UserStateRepo)(nil)
)

// UserStateRepo manages one per-user membership set: read items or saved
// items. Both tables share the same shape.
type UserStateRepo struct {
	db    *DB
	table realtime.Table
}

func NewReadRepository(db *DB) *UserStateRepo {
	return &UserStateRepo{db: db, table: realtime.TableUserReadItems}
}

func NewSavedRepository(db *DB) *UserStateRepo {
	return &UserStateRepo{db: db, table: realtime.TableUserSavedItems}
}

// Mark adds items to the set, ignoring ones already present. It returns how
// many rows were added; each is published as an insert.
func (r *UserStateRepo) Mark(ctx context.Context, userID string, itemIDs ...string) (int, error) {
	now := toMillis(time.Now())
	added := 0

	for _, id := range itemIDs {
		res, err := exec(ctx, r.db.conn, sq.Insert(string(r.table)).
			Columns("user_id", "news_item_id", "created_at").
			Values(userID, id, now).
			Suffix("ON CONFLICT (user_id, news_item_id) DO NOTHING"))
		if err != nil {
			return added, fmt.Errorf("failed to mark %s: %w", r.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("failed to read mark result: %w", err)
		}
		if n > 0 {
			added++
			r.db.publish(r.table, realtime.EventInsert, UserItemChange{UserID: userID, NewsItemID: id})
		}
	}

	return added, nil
}

// Unmark removes an item from the set and reports whether it was present.
func (r *UserStateRepo) Unmark(ctx context.Context, userID, itemID string) (bool, error) {
	res, err := exec(ctx, r.db.conn, sq.Delete(string(r.table)).
		Where(sq.Eq{"user_id": userID, "news_item_id": itemID}))
	if err != nil {
		return false, fmt.Errorf("failed to unmark %s: %w", r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read unmark result: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	r.db.publish(r.table, realtime.EventDelete, UserItemChange{UserID: userID, NewsItemID: itemID})
	return true, nil
}

// Set returns which of itemIDs are in the user's set.
func (r *UserStateRepo) Set(ctx context.Context, userID string, itemIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	rows, err := query(ctx, r.db.conn, sq.Select("news_item_id").From(string(r.table)).
		Where(sq.Eq{"user_id": userID, "news_item_id": itemIDs}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", r.table, err)
	}
	return result, nil
}
