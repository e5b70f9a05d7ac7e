package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/news-comb/app/routing"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

const (
	sourcesDir = "sources"
	panesFile  = "panes.yml"

	defaultSourceTimeout = 30
)

// ConfigCache holds the seed configuration read from the config directory:
// one YAML file per source under sources/ and the default panes in panes.yml.
// Run replaces the whole set or, on any error, leaves the previous one.
type ConfigCache struct {
	configDir string

	mu      sync.RWMutex
	sources []*Config // sorted by Name
	panes   []routing.Pane
}

func NewConfigCache(configDir string) *ConfigCache {
	return &ConfigCache{configDir: configDir}
}

func (cc *ConfigCache) Run() error {
	sources, err := readSources(filepath.Join(cc.configDir, sourcesDir))
	if err != nil {
		return err
	}
	panes, err := readPanes(filepath.Join(cc.configDir, panesFile))
	if err != nil {
		return err
	}

	cc.mu.Lock()
	cc.sources = sources
	cc.panes = panes
	cc.mu.Unlock()

	slog.Debug("Seed configuration loaded", "dir", cc.configDir, "sources", len(sources), "panes", len(panes))
	return nil
}

func readSources(dir string) ([]*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	sources := make([]*Config, 0, len(files))
	byURL := make(map[string]string, len(files))
	for _, file := range files {
		config, err := readSource(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		if other, dup := byURL[config.URL]; dup {
			return nil, fmt.Errorf("sources %s and %s share url %s", other, config.Name, config.URL)
		}
		byURL[config.URL] = config.Name
		sources = append(sources, config)
	}
	slices.SortFunc(sources, compareName)
	return sources, nil
}

func readSource(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	config := &Config{Settings: ConfigSettings{Enabled: true}}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.Name = strings.TrimSuffix(filepath.Base(file), ".yml")
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = defaultSourceTimeout
	}

	switch {
	case config.URL == "":
		return nil, errors.New("source URL is required")
	case !strings.HasPrefix(config.URL, "http://") && !strings.HasPrefix(config.URL, "https://"):
		return nil, fmt.Errorf("source URL must be http or https: %s", config.URL)
	case config.Settings.Timeout < 0:
		return nil, errors.New("timeout must be non-negative")
	case config.Region != "" && !taxonomy.ValidRegion(config.Region):
		return nil, fmt.Errorf("invalid region hint: %s", config.Region)
	}
	return config, nil
}

func readPanes(path string) ([]routing.Pane, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var parsed paneFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(parsed.Panes))
	for i := range parsed.Panes {
		pane := &parsed.Panes[i]
		if pane.ID == "" {
			return nil, fmt.Errorf("pane at index %d has no id", i)
		}
		if seen[pane.ID] {
			return nil, fmt.Errorf("duplicate pane id %q", pane.ID)
		}
		seen[pane.ID] = true
		if err := pane.Rules.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pane %s: %w", pane.ID, err)
		}
	}
	return parsed.Panes, nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	i, found := slices.BinarySearchFunc(cc.sources, &Config{Name: name}, compareName)
	if !found {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return cc.sources[i], nil
}

// GetConfigs returns all source configs ordered by name.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return slices.Clone(cc.sources)
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.sources)
}

func (cc *ConfigCache) GetPanes() []routing.Pane {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return slices.Clone(cc.panes)
}

func compareName(a, b *Config) int {
	return strings.Compare(a.Name, b.Name)
}
