package routing

// Filter is the per-pane display filter. It is independent of Route: it
// answers whether an item belongs in a pane's view under the pane's filter
// mode, without considering other panes.
func Filter(item Item, rules Rules) bool {
	text := item.text()
	hasKeywords := len(rules.Keywords) > 0
	keywordHit := keywordScore(text, rules.Keywords) > 0

	if rules.FilterMode == FilterModeKeywordsOnly {
		return keywordHit
	}

	// A pane without tag rules matches every item here.
	if !matchesTags(item.Tags, rules) {
		return false
	}
	return !hasKeywords || keywordHit
}
