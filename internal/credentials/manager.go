package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirySkew is subtracted from token lifetimes so a token nearing expiry is
// refreshed before the remote rejects it mid-batch.
const expirySkew = 60 * time.Second

// Endpoints holds the provider OAuth endpoints and application identity used
// for the delegated-access flows.
type Endpoints struct {
	TokenURL     string
	RevokeURL    string
	AuthorizeURL string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBaseURL   string
	Scopes       []string
}

// Manager drives the credential lifecycle: code exchange, refresh, revocation
// and access-token retrieval. Refresh is serialized per tenant so that any
// number of concurrent expired callers produce exactly one provider call.
type Manager struct {
	store     Store
	endpoints Endpoints
	client    *http.Client
	now       func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	cached map[string]*Credential
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.client = client
	}
}

// WithClock overrides the time source. Tests use this to force expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a credential lifecycle manager on top of the given store.
func NewManager(store Store, endpoints Endpoints, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		endpoints: endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
		cached:    make(map[string]*Credential),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// tokenResponse is the provider's token endpoint payload, shared by the
// authorization-code and refresh grants.
type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"x_refresh_token_expires_in"`
}

// AuthorizeURL builds the user-facing consent URL for the given CSRF state.
func (m *Manager) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", m.endpoints.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", m.endpoints.RedirectURI)
	q.Set("state", state)
	if len(m.endpoints.Scopes) > 0 {
		q.Set("scope", strings.Join(m.endpoints.Scopes, " "))
	}
	return m.endpoints.AuthorizeURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for a token pair and persists it
// as the tenant's active credential. A provider rejection is returned as
// *AuthExchangeError with the response body preserved.
func (m *Manager) ExchangeCode(ctx context.Context, tenantID, code string) (*Credential, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", m.endpoints.RedirectURI)

	status, body, err := m.postForm(ctx, m.endpoints.TokenURL, data)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, &AuthExchangeError{StatusCode: status, Body: string(body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	now := m.now()
	cred := &Credential{
		TenantID:         tenantID,
		AccessToken:      token.AccessToken,
		RefreshToken:     token.RefreshToken,
		AccessExpiresAt:  now.Add(time.Duration(token.ExpiresIn) * time.Second),
		RefreshExpiresAt: now.Add(time.Duration(token.RefreshTokenExpiresIn) * time.Second),
		ClientID:         m.endpoints.ClientID,
		ClientSecret:     m.endpoints.ClientSecret,
		RedirectURI:      m.endpoints.RedirectURI,
		APIBaseURL:       m.endpoints.APIBaseURL,
	}

	if err := m.store.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	m.setCached(cred)

	slog.Info("credential established",
		"tenant", tenantID,
		"access_token", redact(cred.AccessToken),
		"access_expires_at", cred.AccessExpiresAt,
	)
	return cred, nil
}

// Refresh rotates the tenant's token pair. Both tokens are replaced: the
// provider may rotate the refresh token on every grant, so the stored pair is
// always the one from the latest response. Failure is terminal for the pair.
func (m *Manager) Refresh(ctx context.Context, tenantID string) (*Credential, error) {
	cred, err := m.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if cred.RefreshToken == "" {
		return nil, &RefreshError{Err: ErrNotConnected}
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", cred.RefreshToken)

	status, body, err := m.postForm(ctx, m.endpoints.TokenURL, data)
	if err != nil {
		return nil, &RefreshError{Err: err}
	}
	if status != http.StatusOK {
		return nil, &RefreshError{StatusCode: status, Body: string(body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &RefreshError{Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	now := m.now()
	cred.AccessToken = token.AccessToken
	cred.AccessExpiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	if token.RefreshTokenExpiresIn > 0 {
		cred.RefreshExpiresAt = now.Add(time.Duration(token.RefreshTokenExpiresIn) * time.Second)
	}

	if err := m.store.UpdateTokens(ctx, cred); err != nil {
		return nil, err
	}
	m.setCached(cred)

	slog.Info("credential refreshed",
		"tenant", tenantID,
		"access_token", redact(cred.AccessToken),
		"access_expires_at", cred.AccessExpiresAt,
	)
	return cred, nil
}

// AccessToken returns a currently valid bearer token for the tenant,
// refreshing if the cached one is expired. Concurrent callers share a single
// refresh via singleflight.
func (m *Manager) AccessToken(ctx context.Context, tenantID string) (string, error) {
	if cred := m.getCached(tenantID); cred != nil && cred.AccessValid(m.now(), expirySkew) {
		return cred.AccessToken, nil
	}

	v, err, _ := m.group.Do(tenantID, func() (interface{}, error) {
		// Re-check after winning the flight: the previous winner may have
		// already refreshed while we were queued.
		if cred := m.getCached(tenantID); cred != nil && cred.AccessValid(m.now(), expirySkew) {
			return cred.AccessToken, nil
		}

		cred, err := m.load(ctx, tenantID)
		if err != nil {
			return "", err
		}
		if cred.AccessValid(m.now(), expirySkew) {
			m.setCached(cred)
			return cred.AccessToken, nil
		}

		refreshed, err := m.Refresh(ctx, tenantID)
		if err != nil {
			return "", err
		}
		return refreshed.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Revoke disconnects the tenant. The provider revocation is best-effort: the
// local credential is deactivated regardless of the HTTP outcome, and only a
// failure of that local write is returned as an error.
func (m *Manager) Revoke(ctx context.Context, tenantID string) error {
	cred, err := m.load(ctx, tenantID)
	if err == nil && cred.RefreshToken != "" {
		data := url.Values{}
		data.Set("token", cred.RefreshToken)

		status, body, postErr := m.postForm(ctx, m.endpoints.RevokeURL, data)
		if postErr != nil {
			slog.Warn("remote token revocation failed", "tenant", tenantID, "error", postErr)
		} else if status != http.StatusOK {
			slog.Warn("remote token revocation rejected",
				"tenant", tenantID,
				"status", status,
				"body", string(body),
			)
		}
	}

	m.dropCached(tenantID)
	if err := m.store.Deactivate(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}

	slog.Info("credential deactivated", "tenant", tenantID)
	return nil
}

func (m *Manager) load(ctx context.Context, tenantID string) (*Credential, error) {
	if cred := m.getCached(tenantID); cred != nil {
		return cred, nil
	}
	cred, err := m.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m.setCached(cred)
	return cred, nil
}

func (m *Manager) postForm(ctx context.Context, endpoint string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(m.endpoints.ClientID, m.endpoints.ClientSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (m *Manager) getCached(tenantID string) *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.cached[tenantID]
	if !ok {
		return nil
	}
	cp := *cred
	return &cp
}

func (m *Manager) setCached(cred *Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.cached[cred.TenantID] = &cp
}

func (m *Manager) dropCached(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cached, tenantID)
}

// redact returns a loggable form of a token: a short prefix and length, never
// the value itself.
func redact(token string) string {
	if token == "" {
		return "(empty)"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + fmt.Sprintf("(%d)", len(token))
}
