package store

import (
	"testing"
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Watchlist: []domain.ContentRef{
			{ID: "5", Title: "Heat", MediaType: domain.MediaTypeMovie},
			{ID: "1396", Name: "Breaking Bad", MediaType: domain.MediaTypeTV},
		},
		History: []domain.HistoryRecord{
			{
				ContentRef:  domain.ContentRef{ID: "1396", Name: "Breaking Bad"},
				LastSeason:  2,
				LastEpisode: 4,
				LastUpdated: time.UnixMilli(1700000000000),
			},
		},
	}
}

func TestStoreMissingKeysReportNotOK(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.GetWatchlist()
	assert.False(t, ok)
	_, ok = s.GetHistory()
	assert.False(t, ok)
}

func TestStoreSnapshotSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(sampleSnapshot()))
	require.NoError(t, s.Close())

	s, err = New(dir)
	require.NoError(t, err)
	defer s.Close()

	watchlist, ok := s.GetWatchlist()
	require.True(t, ok)
	require.Len(t, watchlist, 2)
	assert.Equal(t, domain.ContentID("5"), watchlist[0].ID)
	assert.Equal(t, "Breaking Bad", watchlist[1].DisplayTitle())

	history, ok := s.GetHistory()
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].LastSeason)
	assert.Equal(t, 4, history[0].LastEpisode)
	assert.Equal(t, int64(1700000000000), history[0].LastUpdated.UnixMilli())
}

func TestStoreCorruptValueIsNotOK(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.putRaw(KeyWatchlist, []byte("{not json")))
	require.NoError(t, s.putRaw(KeyHistory, []byte(`"a string"`)))

	_, ok := s.GetWatchlist()
	assert.False(t, ok)
	_, ok = s.GetHistory()
	assert.False(t, ok)
}

func TestStoreNilCollectionsSaveAsEmptyArrays(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	require.NoError(t, s.SaveSnapshot(domain.Snapshot{}))

	watchlist, ok := s.GetWatchlist()
	require.True(t, ok)
	assert.Empty(t, watchlist)
	assert.Equal(t, "[]", string(s.cache[string(bucketWatchState)+":"+KeyWatchlist]))
}

func TestStoreCredentials(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	_, ok := s.GetCredentials()
	assert.False(t, ok)

	creds := &domain.Credentials{UserID: "u-1", Email: "a@example.com", AccessToken: "tok"}
	require.NoError(t, s.SaveCredentials(creds))
	require.NoError(t, s.Close())

	s, err = New(dir)
	require.NoError(t, err)
	defer s.Close()

	got, ok := s.GetCredentials()
	require.True(t, ok)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, domain.Session{UserID: "u-1", Email: "a@example.com"}, got.Session())

	require.NoError(t, s.ClearCredentials())
	_, ok = s.GetCredentials()
	assert.False(t, ok)
}

func TestStoreClear(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveSnapshot(sampleSnapshot()))
	require.NoError(t, s.SaveCredentials(&domain.Credentials{UserID: "u-1"}))
	require.NoError(t, s.Clear())

	_, ok := s.GetWatchlist()
	assert.False(t, ok)
	_, ok = s.GetCredentials()
	assert.False(t, ok)
}
