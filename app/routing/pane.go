// Package routing decides which single pane owns a news item and holds the
// pane rule set every routing decision reads from.
package routing

import (
	"slices"
	"strings"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

type FilterMode string

const (
	FilterModeHybrid       FilterMode = "hybrid"
	FilterModeKeywordsOnly FilterMode = "keywords-only"
)

const (
	MaxKeywords     = 20
	UnknownPriority = 99
)

// priorities ranks panes by id, lower wins. The rank is fixed here and never
// persisted with the pane rules.
var priorities = map[string]int{
	"risk_events":  1,
	"corporate":    2,
	"macro_policy": 3,
	"americas":     4,
	"europe":       4,
	"asia_pacific": 4,
}

// Priority returns the routing rank for a pane id.
func Priority(paneID string) int {
	if p, ok := priorities[paneID]; ok {
		return p
	}
	return UnknownPriority
}

type Rules struct {
	Regions    []string   `json:"regions" yaml:"regions"`
	Markets    []string   `json:"markets" yaml:"markets"`
	Themes     []string   `json:"themes" yaml:"themes"`
	Keywords   []string   `json:"keywords" yaml:"keywords"`
	FilterMode FilterMode `json:"filterMode" yaml:"filter_mode"`
}

type Pane struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Rules Rules  `json:"rules" yaml:"rules"`
}

func (p Pane) Priority() int {
	return Priority(p.ID)
}

func (p Pane) clone() Pane {
	p.Rules.Regions = slices.Clone(p.Rules.Regions)
	p.Rules.Markets = slices.Clone(p.Rules.Markets)
	p.Rules.Themes = slices.Clone(p.Rules.Themes)
	p.Rules.Keywords = slices.Clone(p.Rules.Keywords)
	return p
}

// Validate checks rules as submitted from settings. It trims keywords and
// fills in the default filter mode.
func (r *Rules) Validate() error {
	if r.FilterMode == "" {
		r.FilterMode = FilterModeHybrid
	}
	if r.FilterMode != FilterModeHybrid && r.FilterMode != FilterModeKeywordsOnly {
		return apperr.Validation("filterMode must be %q or %q", FilterModeHybrid, FilterModeKeywordsOnly)
	}

	for _, v := range r.Regions {
		if !taxonomy.ValidRegion(v) {
			return apperr.Validation("Invalid region tag: %s", v)
		}
	}
	for _, v := range r.Markets {
		if !taxonomy.ValidMarket(v) {
			return apperr.Validation("Invalid market tag: %s", v)
		}
	}
	for _, v := range r.Themes {
		if !taxonomy.ValidTheme(v) {
			return apperr.Validation("Invalid theme tag: %s", v)
		}
	}

	if len(r.Keywords) > MaxKeywords {
		return apperr.Validation("at most %d keywords per pane", MaxKeywords)
	}
	seen := make(map[string]bool, len(r.Keywords))
	keywords := make([]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			return apperr.Validation("keywords must not be empty")
		}
		key := strings.ToLower(kw)
		if seen[key] {
			return apperr.Validation("duplicate keyword: %s", kw)
		}
		seen[key] = true
		keywords = append(keywords, kw)
	}
	r.Keywords = keywords

	return nil
}
