package sound

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

// Store persists preferences. GetSoundSettings returns nil, nil when the user
// has none yet.
type Store interface {
	GetSoundSettings(ctx context.Context, userID string) (*Preferences, error)
	SaveSoundSettings(ctx context.Context, userID string, prefs Preferences) error
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Enabled     *bool
	Volume      *float64
	SoundTags   []string
	TagSettings map[string]bool
}

// ParsePatch validates a JSON settings payload. Any invalid field rejects the
// whole payload.
func ParsePatch(body []byte) (Patch, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Patch{}, apperr.Validation("invalid JSON body")
	}

	var patch Patch

	if v, ok := raw["enabled"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return Patch{}, apperr.Validation("enabled must be a boolean")
		}
		patch.Enabled = &b
	}

	if v, ok := raw["volume"]; ok {
		f, isNum := v.(float64)
		if !isNum || f < 0 || f > 1 {
			return Patch{}, apperr.Validation("volume must be a number between 0 and 1")
		}
		patch.Volume = &f
	}

	if v, ok := raw["sound_tags"]; ok {
		list, isList := v.([]any)
		if !isList {
			return Patch{}, apperr.Validation("sound_tags must be an array")
		}
		tags := make([]string, 0, len(list))
		for _, item := range list {
			tag, isString := item.(string)
			if !isString || !taxonomy.ValidSoundTheme(tag) {
				return Patch{}, apperr.Validation("Invalid theme tag: %v", item)
			}
			tags = append(tags, tag)
		}
		patch.SoundTags = tags
	}

	if v, ok := raw["tag_settings"]; ok {
		obj, isObj := v.(map[string]any)
		if !isObj {
			return Patch{}, apperr.Validation("tag_settings must be an object")
		}
		settings := make(map[string]bool, len(obj))
		for key, val := range obj {
			enabled, isBool := val.(bool)
			if !isBool {
				return Patch{}, apperr.Validation("tag_settings.%s must be a boolean", key)
			}
			normalized, valid := themeSettingsKey(key)
			if !valid {
				return Patch{}, apperr.Validation("Invalid theme tag: %s", key)
			}
			settings[normalized] = enabled
		}
		patch.TagSettings = settings
	}

	return patch, nil
}

func themeSettingsKey(key string) (string, bool) {
	normalized := taxonomy.SettingsKey(key)
	for _, th := range append(slices.Clone(taxonomy.Themes), taxonomy.ThemeEnergy) {
		if taxonomy.SettingsKey(string(th)) == normalized {
			return normalized, true
		}
	}
	return "", false
}

func (p Patch) apply(prefs Preferences) Preferences {
	if p.Enabled != nil {
		prefs.Enabled = *p.Enabled
	}
	if p.Volume != nil {
		prefs.Volume = *p.Volume
	}
	if p.SoundTags != nil {
		prefs.SoundTags = slices.Clone(p.SoundTags)
	}
	if p.TagSettings != nil {
		merged := maps.Clone(prefs.TagSettings)
		if merged == nil {
			merged = make(map[string]bool, len(p.TagSettings))
		}
		maps.Copy(merged, p.TagSettings)
		prefs.TagSettings = merged
	}
	return prefs
}

// Service loads preferences once per user and writes through on change.
type Service struct {
	store Store

	mu    sync.RWMutex
	cache map[string]Preferences
}

func NewService(store Store) *Service {
	return &Service{store: store, cache: make(map[string]Preferences)}
}

// Load returns the user's preferences, creating defaults on first use.
func (s *Service) Load(ctx context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	prefs, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return prefs, nil
	}

	stored, err := s.store.GetSoundSettings(ctx, userID)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to load sound settings: %w", err)
	}

	if stored == nil {
		defaults := DefaultPreferences()
		if err := s.store.SaveSoundSettings(ctx, userID, defaults); err != nil {
			return Preferences{}, fmt.Errorf("failed to create default sound settings: %w", err)
		}
		stored = &defaults
	}
	if stored.TagSettings == nil {
		stored.TagSettings = map[string]bool{}
	}

	s.mu.Lock()
	s.cache[userID] = *stored
	s.mu.Unlock()

	return *stored, nil
}

// Update applies a validated patch and persists the result.
func (s *Service) Update(ctx context.Context, userID string, patch Patch) (Preferences, error) {
	current, err := s.Load(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}

	updated := patch.apply(current)
	if err := s.store.SaveSoundSettings(ctx, userID, updated); err != nil {
		return Preferences{}, fmt.Errorf("failed to save sound settings: %w", err)
	}

	s.mu.Lock()
	s.cache[userID] = updated
	s.mu.Unlock()

	return updated, nil
}

// Current returns cached preferences without touching the store. A user whose
// settings were never loaded is muted until Load succeeds.
func (s *Service) Current(userID string) Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prefs, ok := s.cache[userID]; ok {
		return prefs
	}
	muted := DefaultPreferences()
	muted.Enabled = false
	return muted
}
