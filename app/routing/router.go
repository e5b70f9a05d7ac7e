package routing

import (
	"slices"
	"strings"

	"github.com/lysyi3m/news-comb/app/taxonomy"
)

// Item is the routing view of a classified news item.
type Item struct {
	Headline string
	Source   string
	Tags     taxonomy.Tags
}

func (i Item) text() string {
	return strings.ToLower(i.Headline + " " + i.Source)
}

// Route returns the single pane that owns the item. A pane is a candidate only
// when its tag rules match and at least one of its keywords hits; the lowest
// priority rank wins, then the higher keyword score, then the smaller pane id.
func Route(item Item, panes []Pane) (string, bool) {
	text := item.text()

	var (
		best      string
		bestRank  int
		bestScore int
		found     bool
	)

	for _, p := range panes {
		if !matchesTags(item.Tags, p.Rules) {
			continue
		}
		score := keywordScore(text, p.Rules.Keywords)
		if score == 0 {
			continue
		}

		rank := p.Priority()
		switch {
		case !found,
			rank < bestRank,
			rank == bestRank && score > bestScore,
			rank == bestRank && score == bestScore && p.ID < best:
			best, bestRank, bestScore, found = p.ID, rank, score, true
		}
	}

	return best, found
}

// matchesTags is an OR across categories; an empty list in a category counts
// as a match for that category.
func matchesTags(tags taxonomy.Tags, rules Rules) bool {
	regionOK := len(rules.Regions) == 0 || slices.Contains(rules.Regions, string(tags.Region))
	marketOK := len(rules.Markets) == 0 || intersects(rules.Markets, tags.Markets)
	themeOK := len(rules.Themes) == 0 || intersects(rules.Themes, tags.Themes)
	return regionOK || marketOK || themeOK
}

func intersects[T ~string](want []string, have []T) bool {
	for _, h := range have {
		if slices.Contains(want, string(h)) {
			return true
		}
	}
	return false
}

func keywordScore(text string, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			score++
		}
	}
	return score
}
