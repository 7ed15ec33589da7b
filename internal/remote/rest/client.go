// Package rest talks to the hosted PostgREST endpoint that stores each
// account's watch state and profile.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	userDataPath = "/rest/v1/user_data"
	profilesPath = "/rest/v1/profiles"
)

// TokenFunc returns the bearer token for the signed-in user
type TokenFunc func(ctx context.Context) (string, error)

// Client implements domain.RemoteStore and domain.ProfileRepository
type Client struct {
	baseURL    string
	anonKey    string
	token      TokenFunc
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a REST client. With a nil token func requests are
// authorized with the anon key alone.
func NewClient(baseURL, anonKey string, token TokenFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
}

type userDataRow struct {
	Watchlist []domain.ContentRef    `json:"watchlist"`
	History   []domain.HistoryRecord `json:"history"`
}

type userDataUpdate struct {
	Watchlist []domain.ContentRef    `json:"watchlist"`
	History   []domain.HistoryRecord `json:"history"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// FetchUserData reads the user_data row for userID
func (c *Client) FetchUserData(ctx context.Context, userID string) (*domain.RemoteSnapshot, error) {
	query := url.Values{}
	query.Set("id", "eq."+userID)
	query.Set("select", "watchlist,history")

	body, err := c.doRequest(ctx, http.MethodGet, userDataPath, query, nil)
	if err != nil {
		return nil, err
	}

	var rows []userDataRow
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, fmt.Errorf("failed to parse user data: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}

	return &domain.RemoteSnapshot{
		Watchlist: rows[0].Watchlist,
		History:   rows[0].History,
	}, nil
}

// UpdateUserData overwrites both collections on the user's row
func (c *Client) UpdateUserData(ctx context.Context, userID string, snap domain.Snapshot) error {
	update := userDataUpdate{
		Watchlist: snap.Watchlist,
		History:   snap.History,
		UpdatedAt: time.Now().UTC(),
	}
	if update.Watchlist == nil {
		update.Watchlist = []domain.ContentRef{}
	}
	if update.History == nil {
		update.History = []domain.HistoryRecord{}
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode user data: %w", err)
	}

	query := url.Values{}
	query.Set("id", "eq."+userID)
	_, err = c.doRequest(ctx, http.MethodPatch, userDataPath, query, payload)
	return err
}

// FetchProfile reads the public profile row for userID
func (c *Client) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := url.Values{}
	query.Set("id", "eq."+userID)
	query.Set("select", "id,display_name,avatar_url,updated_at")

	body, err := c.doRequest(ctx, http.MethodGet, profilesPath, query, nil)
	if err != nil {
		return nil, err
	}

	var rows []domain.Profile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}

type profileUpdate struct {
	domain.ProfileUpdate
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateProfile patches the profile row for userID
func (c *Client) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	payload, err := json.Marshal(profileUpdate{ProfileUpdate: update, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	query := url.Values{}
	query.Set("id", "eq."+userID)
	_, err = c.doRequest(ctx, http.MethodPatch, profilesPath, query, payload)
	return err
}

// doRequest performs an authorized request against the REST endpoint.
// 5xx responses are retried with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	bearer := c.anonKey
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		bearer = tok
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "path", path)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("apikey", c.anonKey)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Prefer", "return=minimal")
		}

		c.logger.Debug("rest request", "method", method, "path", path, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.logger.Error("rest request failed", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: status %d", domain.ErrUnauthorized, resp.StatusCode)
		}

		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = fmt.Errorf("%w: server error %d - %s", domain.ErrRemoteUnavailable, resp.StatusCode, string(body))
			c.logger.Warn("rest server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Error("rest request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("rest request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}
