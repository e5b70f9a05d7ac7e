// Package sound decides when a news arrival should produce an audible alert.
package sound

import (
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

// Preferences are a user's sound settings.
type Preferences struct {
	Enabled bool    `json:"enabled"`
	Volume  float64 `json:"volume"`
	// SoundTags are the themes a client highlights in its settings screen.
	SoundTags []string `json:"sound_tags"`
	// TagSettings holds explicit per-tag overrides keyed by
	// taxonomy.SettingsKey. A missing key means enabled.
	TagSettings map[string]bool `json:"tag_settings"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Enabled: true,
		Volume:  0.7,
		SoundTags: []string{
			string(taxonomy.ThemeMonetaryPolicy),
			string(taxonomy.ThemeGeopolitics),
			string(taxonomy.ThemeRiskEvent),
		},
		TagSettings: map[string]bool{},
	}
}

// ShouldAlert reports whether any sound-eligible tag is not explicitly
// disabled. The master switch overrides everything.
func ShouldAlert(tags []taxonomy.Tag, prefs Preferences) bool {
	if !prefs.Enabled {
		return false
	}
	for _, tag := range tags {
		if !tag.SoundEnabled {
			continue
		}
		enabled, set := prefs.TagSettings[tag.SettingsKey()]
		if !set || enabled {
			return true
		}
	}
	return false
}
