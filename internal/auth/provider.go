// Package auth signs users in against the hosted auth service and reports
// identity transitions to the rest of the app.
package auth

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
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mmcdole/watchparty/internal/domain"
)

const (
	tokenPath   = "/auth/v1/token"
	signupPath  = "/auth/v1/signup"
	recoverPath = "/auth/v1/recover"
	userPath    = "/auth/v1/user"
)

// Config describes the auth endpoint
type Config struct {
	URL        string // service base URL; endpoints live under /auth/v1
	AnonKey    string // sent as the apikey header on every request
	HTTPClient *http.Client
}

// Provider holds the current credentials and implements domain.SessionSource.
// Credentials are persisted so a restart resumes the same session.
type Provider struct {
	baseURL string
	client  *http.Client
	store   domain.SessionStore
	logger  *slog.Logger

	mu     sync.Mutex
	creds  *domain.Credentials
	subs   map[int]func(domain.Session)
	nextID int
}

// NewProvider loads any saved credentials from store
func NewProvider(cfg Config, store domain.SessionStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	client := *base
	client.Transport = &apiKeyTransport{key: cfg.AnonKey, next: base.Transport}

	p := &Provider{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  &client,
		store:   store,
		logger:  logger,
		subs:    make(map[int]func(domain.Session)),
	}

	if store != nil {
		if creds, ok := store.GetCredentials(); ok && creds != nil && creds.UserID != "" {
			p.creds = creds
			logger.Debug("restored session", "userID", creds.UserID)
		}
	}
	return p
}

// Current returns the signed-in identity, or anonymous
func (p *Provider) Current(ctx context.Context) (domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.creds == nil {
		return domain.Anonymous(), nil
	}
	return p.creds.Session(), nil
}

// Subscribe registers fn for every later sign-in or sign-out
func (p *Provider) Subscribe(fn func(domain.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// SignIn exchanges email and password for a token and makes that user current
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	var resp tokenResponse
	err := p.do(ctx, http.MethodPost, tokenPath, url.Values{"grant_type": {"password"}}, "",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return domain.Anonymous(), err
	}

	creds, err := resp.credentials()
	if err != nil {
		return domain.Anonymous(), err
	}
	return p.adopt(creds), nil
}

// SignUp registers a new account. When the service signs the user straight
// in, that session becomes current. When it wants the address confirmed
// first, SignUp returns the anonymous session and a nil error.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (domain.Session, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     map[string]string{"display_name": displayName},
	}
	var resp tokenResponse
	if err := p.do(ctx, http.MethodPost, signupPath, nil, "", body, &resp); err != nil {
		return domain.Anonymous(), err
	}
	if resp.AccessToken == "" {
		p.logger.Info("sign up awaiting confirmation", "email", email)
		return domain.Anonymous(), nil
	}

	creds, err := resp.credentials()
	if err != nil {
		return domain.Anonymous(), err
	}
	return p.adopt(creds), nil
}

// ResetPassword asks the service to email a recovery link
func (p *Provider) ResetPassword(ctx context.Context, email string) error {
	if err := p.do(ctx, http.MethodPost, recoverPath, nil, "", map[string]string{"email": email}, nil); err != nil {
		return err
	}
	p.logger.Info("password reset requested", "email", email)
	return nil
}

// UpdatePassword changes the signed-in user's password
func (p *Provider) UpdatePassword(ctx context.Context, newPassword string) error {
	token, err := p.AccessToken(ctx)
	if err != nil {
		return err
	}
	if err := p.do(ctx, http.MethodPut, userPath, nil, token, map[string]string{"password": newPassword}, nil); err != nil {
		return err
	}
	p.logger.Info("password updated")
	return nil
}

func (p *Provider) adopt(creds *domain.Credentials) domain.Session {
	if p.store != nil {
		if err := p.store.SaveCredentials(creds); err != nil {
			p.logger.Error("failed to persist session", "error", err)
		}
	}

	p.mu.Lock()
	p.creds = creds
	p.mu.Unlock()

	p.logger.Info("signed in", "userID", creds.UserID)
	sess := creds.Session()
	p.notify(sess)
	return sess
}

// SignOut forgets the credentials and notifies subscribers
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.creds != nil
	p.creds = nil
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.ClearCredentials(); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}
	if !wasSignedIn {
		return nil
	}

	p.logger.Info("signed out")
	p.notify(domain.Anonymous())
	return nil
}

// AccessToken returns a valid bearer token, refreshing it if it has expired.
// A refreshed token is persisted.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	creds := p.creds
	p.mu.Unlock()

	if creds == nil {
		return "", domain.ErrNotAuthenticated
	}

	current := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	}
	src := oauth2.ReuseTokenSource(current, &refresher{p: p, ctx: ctx, refreshToken: creds.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	if tok.AccessToken == creds.AccessToken {
		return tok.AccessToken, nil
	}

	refreshed := *creds
	refreshed.AccessToken = tok.AccessToken
	refreshed.TokenType = tok.TokenType
	refreshed.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}

	p.mu.Lock()
	if p.creds != nil && p.creds.UserID == refreshed.UserID {
		p.creds = &refreshed
	}
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.SaveCredentials(&refreshed); err != nil {
			p.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	p.logger.Debug("refreshed access token", "userID", refreshed.UserID, "expiry", refreshed.Expiry)
	return tok.AccessToken, nil
}

func (p *Provider) notify(sess domain.Session) {
	p.mu.Lock()
	subs := make([]func(domain.Session), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(sess)
	}
}

// refresher trades a refresh token for a new access token when the
// current one has expired
type refresher struct {
	p            *Provider
	ctx          context.Context
	refreshToken string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	var resp tokenResponse
	err := r.p.do(r.ctx, http.MethodPost, tokenPath, url.Values{"grant_type": {"refresh_token"}}, "",
		map[string]string{"refresh_token": r.refreshToken}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.token(), nil
}

// tokenResponse is the session the auth service returns from the token and
// signup endpoints
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (r tokenResponse) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

func (r tokenResponse) credentials() (*domain.Credentials, error) {
	if r.User.ID == "" {
		return nil, errors.New("token response has no user id")
	}
	tok := r.token()
	return &domain.Credentials{
		UserID:       r.User.ID,
		Email:        r.User.Email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

// apiError is the error body the auth service returns. Older deployments
// use error/error_description, newer ones msg/error_code.
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) describe(status int) string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.ErrorCode, e.Error} {
		if s != "" {
			return s
		}
	}
	return http.StatusText(status)
}

// do sends a JSON request to the auth service and decodes a JSON reply into
// out when out is non-nil
func (p *Provider) do(ctx context.Context, method, path string, query url.Values, bearer string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	return nil
}

func statusError(code int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, ae.describe(code))
	}
	return fmt.Errorf("%w: auth service returned %d", domain.ErrRemoteUnavailable, code)
}

// apiKeyTransport adds the service key to every auth request
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	if t.key == "" {
		return next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("apikey", t.key)
	return next.RoundTrip(req)
}
