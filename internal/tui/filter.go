package tui

import (
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/watchparty/internal/domain"
)

// rowItem is one entry in a home row
type rowItem struct {
	Ref            domain.ContentRef
	Record         *domain.HistoryRecord // set for Continue Watching entries
	MatchedIndexes []int                 // title positions matched by the filter
}

// rowSource implements fuzzy.Source over item titles
type rowSource []rowItem

func (s rowSource) String(i int) string { return s[i].Ref.DisplayTitle() }

func (s rowSource) Len() int { return len(s) }

// filterItems returns the items matching query, best match first.
// An empty query returns items unchanged.
func filterItems(query string, items []rowItem) []rowItem {
	if query == "" {
		return items
	}
	matches := fuzzy.FindFrom(query, rowSource(items))
	out := make([]rowItem, len(matches))
	for i, match := range matches {
		out[i] = items[match.Index]
		out[i].MatchedIndexes = match.MatchedIndexes
	}
	return out
}

func historyItems(history []domain.HistoryRecord) []rowItem {
	items := make([]rowItem, len(history))
	for i := range history {
		rec := history[i]
		items[i] = rowItem{Ref: rec.ContentRef, Record: &rec}
	}
	return items
}

func watchlistItems(watchlist []domain.ContentRef) []rowItem {
	items := make([]rowItem, len(watchlist))
	for i, ref := range watchlist {
		items[i] = rowItem{Ref: ref}
	}
	return items
}
