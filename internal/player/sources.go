// Package player builds embed URLs for the streaming sources and opens
// them in a browser.
package player

import (
	"fmt"
	"net/url"

	"github.com/mmcdole/watchparty/internal/domain"
)

// DefaultSource is used when no source is configured
const DefaultSource = "vidsrc.xyz"

// Source is one embed provider
type Source struct {
	ID   string
	Name string
	url  func(kind domain.MediaType, id domain.ContentID, season, episode int) string
}

// Sources lists the providers in display order
var Sources = []Source{
	{
		ID:   "vidsrc.xyz",
		Name: "Server 1 (HD)",
		url: func(kind domain.MediaType, id domain.ContentID, season, episode int) string {
			return queryStyle("https://vidsrc.xyz/embed", kind, id, season, episode)
		},
	},
	{
		ID:   "vidsrc.me",
		Name: "Server 2 (Fast)",
		url: func(kind domain.MediaType, id domain.ContentID, season, episode int) string {
			return queryStyle("https://vidsrc.me/embed", kind, id, season, episode)
		},
	},
	{
		ID:   "vidsrc.to",
		Name: "Server 3 (Stable)",
		url: func(kind domain.MediaType, id domain.ContentID, season, episode int) string {
			if kind == domain.MediaTypeTV {
				return fmt.Sprintf("https://vidsrc.to/embed/tv/%s/%d/%d", url.PathEscape(string(id)), season, episode)
			}
			return fmt.Sprintf("https://vidsrc.to/embed/movie/%s", url.PathEscape(string(id)))
		},
	},
}

func queryStyle(base string, kind domain.MediaType, id domain.ContentID, season, episode int) string {
	q := url.Values{}
	q.Set("tmdb", string(id))
	if kind != domain.MediaTypeTV {
		return base + "/movie?" + q.Encode()
	}
	q.Set("season", fmt.Sprint(season))
	q.Set("episode", fmt.Sprint(episode))
	return base + "/tv?" + q.Encode()
}

// LookupSource finds a provider by ID
func LookupSource(id string) (Source, bool) {
	for _, s := range Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// EmbedURL returns the player URL for item at the given progress.
// Movies ignore progress. Season and episode below 1 are treated as 1.
func EmbedURL(sourceID string, item domain.ContentRef, progress domain.Progress) (string, error) {
	if sourceID == "" {
		sourceID = DefaultSource
	}
	src, ok := LookupSource(sourceID)
	if !ok {
		return "", fmt.Errorf("unknown source %q", sourceID)
	}
	if item.ID == "" {
		return "", fmt.Errorf("content has no id")
	}
	return src.url(item.Kind(), item.ID, max(progress.Season, 1), max(progress.Episode, 1)), nil
}
