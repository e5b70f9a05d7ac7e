package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/sound"
)

var _ sound.Store = (*SoundRepo)(nil)

type SoundRepo struct {
	db *DB
}

func NewSoundRepository(db *DB) *SoundRepo {
	return &SoundRepo{db: db}
}

func (r *SoundRepo) GetSoundSettings(ctx context.Context, userID string) (*sound.Preferences, error) {
	stmt, args, err := sq.Select("enabled", "volume", "sound_tags", "tag_settings").
		From("sound_settings").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		prefs             sound.Preferences
		tags, tagSettings string
	)
	err = r.db.conn.QueryRowContext(ctx, stmt, args...).Scan(&prefs.Enabled, &prefs.Volume, &tags, &tagSettings)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sound settings: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &prefs.SoundTags); err != nil {
		return nil, fmt.Errorf("failed to decode sound tags: %w", err)
	}
	if err := json.Unmarshal([]byte(tagSettings), &prefs.TagSettings); err != nil {
		return nil, fmt.Errorf("failed to decode tag settings: %w", err)
	}
	return &prefs, nil
}

func (r *SoundRepo) SaveSoundSettings(ctx context.Context, userID string, prefs sound.Preferences) error {
	tags, err := json.Marshal(nonNil(prefs.SoundTags))
	if err != nil {
		return fmt.Errorf("failed to encode sound tags: %w", err)
	}
	settings := prefs.TagSettings
	if settings == nil {
		settings = map[string]bool{}
	}
	tagSettings, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode tag settings: %w", err)
	}

	_, err = exec(ctx, r.db.conn, sq.Insert("sound_settings").
		Columns("user_id", "enabled", "volume", "sound_tags", "tag_settings", "updated_at").
		Values(userID, prefs.Enabled, prefs.Volume, string(tags), string(tagSettings), toMillis(time.Now())).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			enabled = excluded.enabled,
			volume = excluded.volume,
			sound_tags = excluded.sound_tags,
			tag_settings = excluded.tag_settings,
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("failed to save sound settings: %w", err)
	}
	return nil
}
