package player

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/watchparty/internal/domain"
)

func TestEmbedURL(t *testing.T) {
	heat := domain.ContentRef{ID: "949", MediaType: domain.MediaTypeMovie, Title: "Heat"}
	dark := domain.ContentRef{ID: "70523", MediaType: domain.MediaTypeTV, Name: "Dark"}
	at := domain.Progress{Season: 2, Episode: 5}

	tests := []struct {
		source string
		item   domain.ContentRef
		want   string
	}{
		{"", heat, "https://vidsrc.xyz/embed/movie?tmdb=949"},
		{"vidsrc.xyz", dark, "https://vidsrc.xyz/embed/tv?episode=5&season=2&tmdb=70523"},
		{"vidsrc.me", heat, "https://vidsrc.me/embed/movie?tmdb=949"},
		{"vidsrc.me", dark, "https://vidsrc.me/embed/tv?episode=5&season=2&tmdb=70523"},
		{"vidsrc.to", heat, "https://vidsrc.to/embed/movie/949"},
		{"vidsrc.to", dark, "https://vidsrc.to/embed/tv/70523/2/5"},
	}
	for _, tt := range tests {
		t.Run(tt.source+"/"+string(tt.item.Kind()), func(t *testing.T) {
			got, err := EmbedURL(tt.source, tt.item, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbedURL_ClampsProgress(t *testing.T) {
	dark := domain.ContentRef{ID: "70523", Name: "Dark"}
	got, err := EmbedURL("vidsrc.to", dark, domain.Progress{})
	require.NoError(t, err)
	assert.Equal(t, "https://vidsrc.to/embed/tv/70523/1/1", got)
}

func TestEmbedURL_Errors(t *testing.T) {
	_, err := EmbedURL("nope", domain.ContentRef{ID: "1"}, domain.Progress{})
	assert.Error(t, err)

	_, err = EmbedURL("", domain.ContentRef{}, domain.Progress{})
	assert.Error(t, err)
}

type startCall struct {
	name string
	args []string
}

func recordingLauncher(command, goos string, inPath bool) (*Launcher, *[]startCall) {
	var calls []startCall
	l := NewLauncher(command, nil)
	l.goos = goos
	l.start = func(name string, args ...string) error {
		calls = append(calls, startCall{name: name, args: args})
		return nil
	}
	l.lookup = func(name string) (string, error) {
		if inPath {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	return l, &calls
}

func TestLaunch_Default(t *testing.T) {
	tests := []struct {
		goos string
		want startCall
	}{
		{"linux", startCall{"xdg-open", []string{"https://x"}}},
		{"darwin", startCall{"open", []string{"https://x"}}},
		{"windows", startCall{"cmd", []string{"/c", "start", "", "https://x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			l, calls := recordingLauncher("", tt.goos, true)
			require.NoError(t, l.Launch("https://x"))
			assert.Equal(t, []startCall{tt.want}, *calls)
		})
	}
}

func TestLaunch_Configured(t *testing.T) {
	l, calls := recordingLauncher("chromium --app", "linux", true)
	require.NoError(t, l.Launch("https://x"))
	assert.Equal(t, []startCall{{"chromium", []string{"--app", "https://x"}}}, *calls)
}

func TestLaunch_ConfiguredMacApp(t *testing.T) {
	l, calls := recordingLauncher("Firefox --private-window", "darwin", false)
	require.NoError(t, l.Launch("https://x"))
	assert.Equal(t, []startCall{{"open", []string{"-a", "Firefox", "--args", "--private-window", "https://x"}}}, *calls)
}
