package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/routing"
)

var _ routing.PaneRepository = (*PaneRepo)(nil)

type PaneRepo struct {
	db *DB
}

func NewPaneRepository(db *DB) *PaneRepo {
	return &PaneRepo{db: db}
}

func (r *PaneRepo) ListPanes(ctx context.Context) ([]routing.Pane, error) {
	rows, err := query(ctx, r.db.conn, sq.Select("id", "title", "regions", "markets", "themes", "keywords", "filter_mode").
		From("panes").
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("failed to list panes: %w", err)
	}
	defer rows.Close()

	panes := []routing.Pane{}
	for rows.Next() {
		var (
			pane                               routing.Pane
			regions, markets, themes, keywords string
			mode                               string
		)
		if err := rows.Scan(&pane.ID, &pane.Title, &regions, &markets, &themes, &keywords, &mode); err != nil {
			return nil, fmt.Errorf("failed to scan pane row: %w", err)
		}
		for _, field := range []struct {
			raw string
			dst *[]string
		}{
			{regions, &pane.Rules.Regions},
			{markets, &pane.Rules.Markets},
			{themes, &pane.Rules.Themes},
			{keywords, &pane.Rules.Keywords},
		} {
			if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
				return nil, fmt.Errorf("failed to decode rules for pane %s: %w", pane.ID, err)
			}
		}
		pane.Rules.FilterMode = routing.FilterMode(mode)
		panes = append(panes, pane)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pane rows: %w", err)
	}
	return panes, nil
}

// UpsertPane stores a pane and publishes the new definition.
func (r *PaneRepo) UpsertPane(ctx context.Context, pane routing.Pane) error {
	encoded := make([]string, 0, 4)
	for _, list := range [][]string{pane.Rules.Regions, pane.Rules.Markets, pane.Rules.Themes, pane.Rules.Keywords} {
		b, err := json.Marshal(nonNil(list))
		if err != nil {
			return fmt.Errorf("failed to encode rules for pane %s: %w", pane.ID, err)
		}
		encoded = append(encoded, string(b))
	}

	mode := pane.Rules.FilterMode
	if mode == "" {
		mode = routing.FilterModeHybrid
	}

	_, err := exec(ctx, r.db.conn, sq.Insert("panes").
		Columns("id", "title", "regions", "markets", "themes", "keywords", "filter_mode", "updated_at").
		Values(pane.ID, pane.Title, encoded[0], encoded[1], encoded[2], encoded[3], string(mode), toMillis(time.Now())).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			regions = excluded.regions,
			markets = excluded.markets,
			themes = excluded.themes,
			keywords = excluded.keywords,
			filter_mode = excluded.filter_mode,
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("failed to upsert pane %s: %w", pane.ID, err)
	}

	r.db.publish(realtime.TablePanes, realtime.EventUpdate, pane)
	return nil
}

func (r *PaneRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db.conn, sq.Select("COUNT(*)").From("panes"))
}
