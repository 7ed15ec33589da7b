// Package search finds titles the user already tracks, across the
// watchlist and watch history.
package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/watchparty/internal/domain"
)

// Entry is one tracked title
type Entry struct {
	Item        domain.ContentRef
	InWatchlist bool
	Record      *domain.HistoryRecord // nil when never watched
}

// Result is a matched entry. Lower scores are better.
type Result struct {
	Entry
	Score int
}

// Entries builds the unique set of tracked titles: history in recency order,
// then watchlist items that have no history.
func Entries(watchlist []domain.ContentRef, history []domain.HistoryRecord) []Entry {
	onList := make(map[domain.ContentID]bool, len(watchlist))
	for _, item := range watchlist {
		onList[item.ID] = true
	}

	entries := make([]Entry, 0, len(watchlist)+len(history))
	seen := make(map[domain.ContentID]bool, len(watchlist)+len(history))
	for i := range history {
		rec := history[i]
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		entries = append(entries, Entry{Item: rec.ContentRef, InWatchlist: onList[rec.ID], Record: &rec})
	}
	for _, item := range watchlist {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		entries = append(entries, Entry{Item: item, InWatchlist: true})
	}
	return entries
}

// Find ranks entries whose title fuzzily matches query.
// An empty query matches nothing.
func Find(query string, entries []Entry) []Result {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(entries) == 0 {
		return nil
	}

	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = strings.ToLower(e.Item.DisplayTitle())
	}

	var results []Result
	for _, rank := range fuzzy.RankFindFold(query, titles) {
		results = append(results, Result{
			Entry: entries[rank.OriginalIndex],
			Score: matchScore(rank.Target, query, rank.Distance),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return len(results[i].Item.DisplayTitle()) < len(results[j].Item.DisplayTitle())
	})
	return results
}

// matchScore ranks exact, then prefix, then substring, then subsequence matches
func matchScore(title, query string, distance int) int {
	switch {
	case title == query:
		return 0
	case strings.HasPrefix(title, query):
		return 10
	case strings.Contains(title, query):
		return 50
	default:
		return 100 + distance
	}
}
