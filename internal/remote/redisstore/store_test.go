package redisstore

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/watchparty/internal/domain"
)

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "watchparty:user_data:user-1", buildKey("user-1"))
}

func unreachableStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, nil)
}

func TestUnreachableServer(t *testing.T) {
	s := unreachableStore(t)
	ctx := context.Background()

	_, err := s.FetchUserData(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	err = s.UpdateUserData(ctx, "user-1", domain.Snapshot{})
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestDial_BadURL(t *testing.T) {
	_, err := Dial(context.Background(), "not a url")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRemoteUnavailable)
}

// memoryHook answers GET and SET from a map so no server is needed
type memoryHook struct {
	mu   sync.Mutex
	data map[string]string
}

func (h *memoryHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("dial disabled in tests")
	}
}

func (h *memoryHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()

		args := cmd.Args()
		switch cmd.Name() {
		case "get":
			val, ok := h.data[fmt.Sprint(args[1])]
			if !ok {
				cmd.SetErr(redis.Nil)
				return redis.Nil
			}
			cmd.(*redis.StringCmd).SetVal(val)
		case "set":
			switch v := args[2].(type) {
			case []byte:
				h.data[fmt.Sprint(args[1])] = string(v)
			default:
				h.data[fmt.Sprint(args[1])] = fmt.Sprint(v)
			}
			cmd.(*redis.StatusCmd).SetVal("OK")
		default:
			err := fmt.Errorf("unexpected command %q", cmd.Name())
			cmd.SetErr(err)
			return err
		}
		return nil
	}
}

func (h *memoryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func memoryStore(t *testing.T) (*Store, *memoryHook) {
	t.Helper()
	hook := &memoryHook{data: map[string]string{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })
	return New(client, nil), hook
}

func TestFetchUserData_Missing(t *testing.T) {
	s, _ := memoryStore(t)

	_, err := s.FetchUserData(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateUserData_WritesEmptyCollections(t *testing.T) {
	s, hook := memoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateUserData(ctx, "user-1", domain.Snapshot{}))
	assert.JSONEq(t, `{"watchlist":[],"history":[]}`, hook.data["watchparty:user_data:user-1"])

	got, err := s.FetchUserData(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, got.Watchlist)
	assert.Empty(t, got.Watchlist)
	assert.NotNil(t, got.History)
	assert.Empty(t, got.History)
}

func TestUserDataRoundTrip(t *testing.T) {
	s, _ := memoryStore(t)
	ctx := context.Background()

	snap := domain.Snapshot{
		Watchlist: []domain.ContentRef{{ID: "603", Title: "The Matrix", MediaType: domain.MediaTypeMovie}},
		History: []domain.HistoryRecord{{
			ContentRef:  domain.ContentRef{ID: "1399", Name: "Game of Thrones", MediaType: domain.MediaTypeTV},
			LastSeason:  2,
			LastEpisode: 3,
			LastUpdated: time.UnixMilli(1700000000000),
		}},
	}
	require.NoError(t, s.UpdateUserData(ctx, "user-1", snap))

	got, err := s.FetchUserData(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Watchlist, 1)
	assert.Equal(t, domain.ContentID("603"), got.Watchlist[0].ID)
	assert.Equal(t, "The Matrix", got.Watchlist[0].Title)
	require.Len(t, got.History, 1)
	assert.Equal(t, domain.ContentID("1399"), got.History[0].ID)
	assert.Equal(t, 2, got.History[0].LastSeason)
	assert.Equal(t, 3, got.History[0].LastEpisode)
	assert.Equal(t, int64(1700000000000), got.History[0].LastUpdated.UnixMilli())
}

func TestFetchUserData_AbsentFieldsStayNil(t *testing.T) {
	s, hook := memoryStore(t)
	hook.data["watchparty:user_data:user-1"] = `{"watchlist":[{"id":7,"title":"Seven"}]}`
	hook.data["watchparty:user_data:user-2"] = `{}`

	got, err := s.FetchUserData(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got.Watchlist, 1)
	assert.Equal(t, domain.ContentID("7"), got.Watchlist[0].ID)
	assert.Nil(t, got.History)

	got, err = s.FetchUserData(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Nil(t, got.Watchlist)
	assert.Nil(t, got.History)
}

func TestFetchUserData_BadDocument(t *testing.T) {
	s, hook := memoryStore(t)
	hook.data["watchparty:user_data:user-1"] = `not json`

	_, err := s.FetchUserData(context.Background(), "user-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrRemoteUnavailable)
}
