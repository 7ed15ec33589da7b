package watchstate

import (
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
)

// DefaultHistoryLimit caps the number of history records kept
const DefaultHistoryLimit = 50

// NewRecord builds a history record for item stamped at now.
// A missing progress, or a season/episode below 1, falls back to 1;
// an explicit 0 is treated the same as unset.
func NewRecord(item domain.ContentRef, progress *domain.Progress, now time.Time) domain.HistoryRecord {
	season, episode := 1, 1
	if progress != nil {
		if progress.Season > 0 {
			season = progress.Season
		}
		if progress.Episode > 0 {
			episode = progress.Episode
		}
	}
	return domain.HistoryRecord{
		ContentRef:  item,
		LastSeason:  season,
		LastEpisode: episode,
		LastUpdated: now,
	}
}

// Upsert puts rec at the front of history, dropping any older record with the
// same ID, and truncates the result to limit entries.
func Upsert(history []domain.HistoryRecord, rec domain.HistoryRecord, limit int) []domain.HistoryRecord {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	out := make([]domain.HistoryRecord, 0, min(len(history)+1, limit))
	out = append(out, rec)
	for _, existing := range history {
		if len(out) >= limit {
			break
		}
		if existing.ID == rec.ID {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// capHistory truncates without copying when already within limit
func capHistory(history []domain.HistoryRecord, limit int) []domain.HistoryRecord {
	if limit > 0 && len(history) > limit {
		return history[:limit]
	}
	return history
}
