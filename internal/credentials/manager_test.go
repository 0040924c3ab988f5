package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "realm-123"

func tokenHandler(t *testing.T, calls *atomic.Int64) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "token endpoint requires basic auth")
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":               "access-" + r.PostFormValue("grant_type"),
			"refresh_token":              "refresh-rotated",
			"token_type":                 "bearer",
			"expires_in":                 3600,
			"x_refresh_token_expires_in": 8726400,
		})
	}
}

func newTestManager(t *testing.T, tokenURL, revokeURL string, opts ...ManagerOption) (*Manager, Store) {
	t.Helper()
	store := NewMemoryStore()
	endpoints := Endpoints{
		TokenURL:     tokenURL,
		RevokeURL:    revokeURL,
		AuthorizeURL: "https://auth.example.com/authorize",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://example.com/callback",
		APIBaseURL:   "https://api.example.com",
		Scopes:       []string{"com.intuit.quickbooks.accounting"},
	}
	return NewManager(store, endpoints, opts...), store
}

func seedCredential(t *testing.T, store Store, accessExpiry time.Time) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), &Credential{
		TenantID:         testTenant,
		AccessToken:      "access-old",
		RefreshToken:     "refresh-old",
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: time.Now().Add(100 * 24 * time.Hour),
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		RedirectURI:      "https://example.com/callback",
		APIBaseURL:       "https://api.example.com",
	}))
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &calls))
	defer srv.Close()

	mgr, store := newTestManager(t, srv.URL, srv.URL)

	cred, err := mgr.ExchangeCode(context.Background(), testTenant, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access-authorization_code", cred.AccessToken)
	assert.Equal(t, "refresh-rotated", cred.RefreshToken)
	assert.True(t, cred.AccessExpiresAt.After(time.Now()))

	// Persisted, not just cached
	stored, err := store.Get(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, cred.AccessToken, stored.AccessToken)
}

func TestExchangeCodeProviderRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv.URL, srv.URL)

	_, err := mgr.ExchangeCode(context.Background(), testTenant, "bad-code")
	require.Error(t, err)

	var exchErr *AuthExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, http.StatusBadRequest, exchErr.StatusCode)
	assert.Contains(t, exchErr.Body, "invalid_grant")
}

func TestRefreshRotatesPair(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &calls))
	defer srv.Close()

	mgr, store := newTestManager(t, srv.URL, srv.URL)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	cred, err := mgr.Refresh(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", cred.AccessToken)
	assert.Equal(t, "refresh-rotated", cred.RefreshToken)

	stored, err := store.Get(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "refresh-rotated", stored.RefreshToken, "rotated refresh token must be persisted")
}

func TestRefreshFailureIsTerminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer srv.Close()

	mgr, store := newTestManager(t, srv.URL, srv.URL)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	_, err := mgr.Refresh(context.Background(), testTenant)
	require.Error(t, err)

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, http.StatusUnauthorized, refreshErr.StatusCode)
}

func TestRefreshWithoutCredential(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t, "http://invalid.local", "http://invalid.local")

	_, err := mgr.Refresh(context.Background(), testTenant)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAccessTokenUsesValidCachedToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &calls))
	defer srv.Close()

	mgr, store := newTestManager(t, srv.URL, srv.URL)
	seedCredential(t, store, time.Now().Add(time.Hour))

	token, err := mgr.AccessToken(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "access-old", token)
	assert.Equal(t, int64(0), calls.Load(), "valid token must not hit the provider")
}

func TestAccessTokenSingleRefreshUnderConcurrency(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &calls))
	defer srv.Close()

	mgr, store := newTestManager(t, srv.URL, srv.URL)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	const workers = 16
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = mgr.AccessToken(context.Background(), testTenant)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-refresh_token", tokens[i])
	}
	assert.Equal(t, int64(1), calls.Load(), "concurrent expired callers must share one refresh")
}

func TestRevokeAlwaysDeactivatesLocally(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mgr, store := newTestManager(t, srv.URL, srv.URL)
	seedCredential(t, store, time.Now().Add(time.Hour))

	// Remote revocation fails, local deactivation must still happen.
	require.NoError(t, mgr.Revoke(context.Background(), testTenant))

	_, err := store.Get(context.Background(), testTenant)
	assert.ErrorIs(t, err, ErrNotConnected)

	// The cache must not resurrect the credential.
	_, err = mgr.AccessToken(context.Background(), testTenant)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t, "http://unused.local", "http://unused.local")

	raw := mgr.AuthorizeURL("csrf-state")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "csrf-state", q.Get("state"))
	assert.Equal(t, "com.intuit.quickbooks.accounting", q.Get("scope"))
	assert.Equal(t, "https://example.com/callback", q.Get("redirect_uri"))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(empty)", redact(""))
	assert.Equal(t, "****", redact("short"))
	got := redact("a-very-long-access-token-value")
	assert.NotContains(t, got, "access-token")
	assert.Contains(t, got, "a-ve")
}
