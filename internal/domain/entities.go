package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MediaType distinguishes movies from TV shows
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// ContentID identifies a content item. Catalog IDs arrive as JSON numbers or
// strings; both forms normalize to the same ContentID.
type ContentID string

// UnmarshalJSON accepts a JSON number, string, or null
func (id *ContentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ContentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("content id: %w", err)
	}
	*id = ContentID(n.String())
	return nil
}

// MarshalJSON writes canonical integer IDs as numbers and everything else
// as strings. "007", "+5" and "-0" stay strings; they are not JSON numbers.
func (id ContentID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// ContentRef is an opaque catalog payload tracked by the watchlist and history.
// Only ID matters for identity; the display fields are passthrough, and any
// JSON field not modelled here is kept in Extra so it survives a round trip.
type ContentRef struct {
	ID           ContentID
	MediaType    MediaType
	Title        string // movies
	Name         string // tv shows
	PosterPath   string
	BackdropPath string

	Extra map[string]json.RawMessage
}

// Key returns the identity used for set membership
func (c ContentRef) Key() ContentID { return c.ID }

// DisplayTitle returns the title for movies or the name for shows
func (c ContentRef) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	if c.Name != "" {
		return c.Name
	}
	return string(c.ID)
}

// Kind returns the media type, treating items with only a name as TV
func (c ContentRef) Kind() MediaType {
	if c.MediaType != "" {
		return c.MediaType
	}
	if c.Title == "" && c.Name != "" {
		return MediaTypeTV
	}
	return MediaTypeMovie
}

var contentKnownKeys = []string{"id", "media_type", "title", "name", "poster_path", "backdrop_path"}

func (c ContentRef) fields() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(c.Extra)+len(contentKnownKeys))
	for k, v := range c.Extra {
		out[k] = v
	}
	id, err := c.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out["id"] = id
	putString(out, "media_type", string(c.MediaType))
	putString(out, "title", c.Title)
	putString(out, "name", c.Name)
	putString(out, "poster_path", c.PosterPath)
	putString(out, "backdrop_path", c.BackdropPath)
	return out, nil
}

func putString(m map[string]json.RawMessage, key, value string) {
	if value == "" {
		return
	}
	b, _ := json.Marshal(value)
	m[key] = b
}

func takeString(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func contentFromFields(m map[string]json.RawMessage) (ContentRef, error) {
	var c ContentRef
	if raw, ok := m["id"]; ok {
		if err := c.ID.UnmarshalJSON(raw); err != nil {
			return ContentRef{}, err
		}
		delete(m, "id")
	}
	c.MediaType = MediaType(takeString(m, "media_type"))
	c.Title = takeString(m, "title")
	c.Name = takeString(m, "name")
	c.PosterPath = takeString(m, "poster_path")
	c.BackdropPath = takeString(m, "backdrop_path")
	if len(m) > 0 {
		c.Extra = m
	}
	return c, nil
}

// MarshalJSON flattens the known fields and Extra into one object
func (c ContentRef) MarshalJSON() ([]byte, error) {
	m, err := c.fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the known fields and keeps the rest in Extra
func (c *ContentRef) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	ref, err := contentFromFields(m)
	if err != nil {
		return err
	}
	*c = ref
	return nil
}

// Progress is the season/episode position supplied when recording a view
type Progress struct {
	Season  int
	Episode int
}

// HistoryRecord is a ContentRef stamped with the last watched position.
// On the wire the progress fields sit beside the content fields, with
// lastUpdated in Unix milliseconds.
type HistoryRecord struct {
	ContentRef
	LastSeason  int
	LastEpisode int
	LastUpdated time.Time
}

// MarshalJSON writes the record as a flat object
func (r HistoryRecord) MarshalJSON() ([]byte, error) {
	m, err := r.ContentRef.fields()
	if err != nil {
		return nil, err
	}
	m["lastSeason"] = json.RawMessage(strconv.Itoa(r.LastSeason))
	m["lastEpisode"] = json.RawMessage(strconv.Itoa(r.LastEpisode))
	m["lastUpdated"] = json.RawMessage(strconv.FormatInt(r.LastUpdated.UnixMilli(), 10))
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat record object
func (r *HistoryRecord) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var rec HistoryRecord
	if err := takeInt(m, "lastSeason", &rec.LastSeason); err != nil {
		return err
	}
	if err := takeInt(m, "lastEpisode", &rec.LastEpisode); err != nil {
		return err
	}
	var ms int64
	if err := takeInt64(m, "lastUpdated", &ms); err != nil {
		return err
	}
	if ms > 0 {
		rec.LastUpdated = time.UnixMilli(ms)
	}

	ref, err := contentFromFields(m)
	if err != nil {
		return err
	}
	rec.ContentRef = ref
	*r = rec
	return nil
}

func takeInt(m map[string]json.RawMessage, key string, dst *int) error {
	var v int64
	if err := takeInt64(m, key, &v); err != nil {
		return err
	}
	*dst = int(v)
	return nil
}

func takeInt64(m map[string]json.RawMessage, key string, dst *int64) error {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	delete(m, key)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v = int64(f)
	}
	*dst = v
	return nil
}

// Snapshot is the full watch state written to the local and remote stores
type Snapshot struct {
	Watchlist []ContentRef    `json:"watchlist"`
	History   []HistoryRecord `json:"history"`
}

// RemoteSnapshot is what the remote store returns. Either field may be absent
// (nil), in which case the corresponding collection is left alone on merge.
type RemoteSnapshot struct {
	Watchlist []ContentRef    `json:"watchlist,omitempty"`
	History   []HistoryRecord `json:"history,omitempty"`
}

// Session is the authentication identity. The zero value is anonymous.
type Session struct {
	UserID string
	Email  string
}

// Anonymous returns the signed-out session
func Anonymous() Session { return Session{} }

// IsAuthenticated reports whether remote I/O should be attempted
func (s Session) IsAuthenticated() bool { return s.UserID != "" }

func (s Session) String() string {
	if !s.IsAuthenticated() {
		return "anonymous"
	}
	return "authenticated(" + s.UserID + ")"
}

// Credentials is the persisted form of an authenticated session
type Credentials struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// Session returns the identity these credentials belong to
func (c Credentials) Session() Session {
	return Session{UserID: c.UserID, Email: c.Email}
}

// Profile is the account's public profile row
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate holds the profile fields to change. Empty fields are left alone.
type ProfileUpdate struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
