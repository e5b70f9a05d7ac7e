package feed

import (
	"time"

	"github.com/lysyi3m/news-comb/app/routing"
)

// Feed processing types

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Entry is one parsed feed entry. PublishedAt is zero when the feed carried
// no usable date.
type Entry struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

// Configuration types

// Config describes one RSS source, loaded from sources/<name>.yml.
type Config struct {
	Name        string         // Derived from filename (without .yml extension)
	DisplayName string         `yaml:"name"`
	URL         string         `yaml:"url"`
	Region      string         `yaml:"region"`
	Settings    ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
}

// Title is the publisher name stored on items from this source.
func (c *Config) Title() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

type paneFile struct {
	Panes []routing.Pane `yaml:"panes"`
}
