package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

var _ NewsRepository = (*NewsRepo)(nil)

var newsColumns = []string{
	"id", "COALESCE(source_id, '')", "headline", "source", "url", "published_at",
	"region", "markets", "themes", "hash", "rules_version", "created_at",
}

type NewsRepo struct {
	db *DB
}

func NewNewsRepository(db *DB) *NewsRepo {
	return &NewsRepo{db: db}
}

// Insert stores a new item. It reports false without error when an item with
// the same hash already exists. A successful insert is published on the
// change feed.
func (r *NewsRepo) Insert(ctx context.Context, item *NewsItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	markets, err := json.Marshal(nonNil(item.Markets))
	if err != nil {
		return false, fmt.Errorf("failed to encode markets: %w", err)
	}
	themes, err := json.Marshal(nonNil(item.Themes))
	if err != nil {
		return false, fmt.Errorf("failed to encode themes: %w", err)
	}

	var sourceID any
	if item.SourceID != "" {
		sourceID = item.SourceID
	}

	res, err := exec(ctx, r.db.conn, sq.Insert("news_items").
		Columns("id", "source_id", "headline", "source", "url", "published_at",
			"region", "markets", "themes", "hash", "rules_version", "created_at").
		Values(item.ID, sourceID, item.Headline, item.Source, item.URL, toMillis(item.PublishedAt),
			string(item.Region), string(markets), string(themes), item.Hash, item.RulesVersion,
			toMillis(item.CreatedAt)).
		Suffix("ON CONFLICT (hash) DO NOTHING"))
	if err != nil {
		return false, fmt.Errorf("failed to insert news item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.db.publish(realtime.TableNewsItems, realtime.EventInsert, *item)
	return true, nil
}

// ExistsByHash also looks in news_archive, so a feed that keeps carrying an
// archived story does not bring it back.
func (r *NewsRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	rows, err := query(ctx, r.db.conn, sq.Select("1").Where(sq.Or{
		sq.Expr("EXISTS (SELECT 1 FROM news_items WHERE hash = ?)", hash),
		sq.Expr("EXISTS (SELECT 1 FROM news_archive WHERE hash = ?)", hash),
	}))
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	defer rows.Close()

	exists := rows.Next()
	return exists, rows.Err()
}

// Get returns nil, nil when the item does not exist.
func (r *NewsRepo) Get(ctx context.Context, id string) (*NewsItem, error) {
	items, err := r.list(ctx, sq.Select(newsColumns...).From("news_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ListPublishedSince returns items with publishedAt >= since, newest first.
func (r *NewsRepo) ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]NewsItem, error) {
	return r.list(ctx, sq.Select(newsColumns...).From("news_items").
		Where(sq.GtOrEq{"published_at": toMillis(since)}).
		OrderBy("published_at DESC", "id").
		Limit(uint64(limit)))
}

// ListPublishedAfter returns items with publishedAt strictly after the
// watermark, newest first.
func (r *NewsRepo) ListPublishedAfter(ctx context.Context, after time.Time, limit int) ([]NewsItem, error) {
	return r.list(ctx, sq.Select(newsColumns...).From("news_items").
		Where(sq.Gt{"published_at": toMillis(after)}).
		OrderBy("published_at DESC", "id").
		Limit(uint64(limit)))
}

// ListCreatedSince returns items ingested at or after since, newest first.
func (r *NewsRepo) ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]NewsItem, error) {
	return r.list(ctx, sq.Select(newsColumns...).From("news_items").
		Where(sq.GtOrEq{"created_at": toMillis(since)}).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)))
}

func (r *NewsRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return count(ctx, r.db.conn, sq.Select("COUNT(*)").From("news_items").Where(sq.GtOrEq{"created_at": toMillis(since)}))
}

func (r *NewsRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db.conn, sq.Select("COUNT(*)").From("news_items"))
}

func (r *NewsRepo) list(ctx context.Context, b sq.SelectBuilder) ([]NewsItem, error) {
	rows, err := query(ctx, r.db.conn, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query news items: %w", err)
	}
	defer rows.Close()
	return scanNewsItems(rows)
}

func scanNewsItems(rows *sql.Rows) ([]NewsItem, error) {
	items := []NewsItem{}
	for rows.Next() {
		var (
			item                   NewsItem
			region                 string
			markets, themes        string
			publishedAt, createdAt int64
		)
		err := rows.Scan(&item.ID, &item.SourceID, &item.Headline, &item.Source, &item.URL, &publishedAt,
			&region, &markets, &themes, &item.Hash, &item.RulesVersion, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item row: %w", err)
		}
		if err := json.Unmarshal([]byte(markets), &item.Markets); err != nil {
			return nil, fmt.Errorf("failed to decode markets for %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(themes), &item.Themes); err != nil {
			return nil, fmt.Errorf("failed to decode themes for %s: %w", item.ID, err)
		}
		item.Region = taxonomy.Region(region)
		item.PublishedAt = fromMillis(publishedAt)
		item.CreatedAt = fromMillis(createdAt)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news item rows: %w", err)
	}
	return items, nil
}

func count(ctx context.Context, q queryer, b sq.SelectBuilder) (int, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var n int
	if err := q.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
