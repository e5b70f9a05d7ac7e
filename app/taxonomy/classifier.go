package taxonomy

import "strings"

// MaxPerCategory caps how many market and theme tags an item carries.
const MaxPerCategory = 2

// Classify assigns tags to a headline. It never fails: unmatched text yields
// GLOBAL with no markets or themes. Markets and themes are first-found in
// rule order, not ranked.
func Classify(headline, source string) Tags {
	text := strings.ToLower(headline + " " + source)

	return Tags{
		Region:  firstMatch(regionRules, text, RegionGlobal),
		Markets: collect(marketRules, text, MaxPerCategory),
		Themes:  collect(themeRules, text, MaxPerCategory),
	}
}

func firstMatch[T ~string](rules []rule[T], text string, fallback T) T {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.tag
		}
	}
	return fallback
}

func collect[T ~string](rules []rule[T], text string, limit int) []T {
	found := make([]T, 0, limit)
	for _, r := range rules {
		if len(found) == limit {
			break
		}
		if r.pattern.MatchString(text) {
			found = append(found, r.tag)
		}
	}
	return found
}
