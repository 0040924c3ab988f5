// Package credentials manages the delegated-access credentials for the
// accounting platform: encrypted persistence, the OAuth exchange and refresh
// flows, and serialized refresh across concurrent callers.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/eaur/qbsync/internal/db/sqlc"
	"github.com/eaur/qbsync/internal/tokencipher"
)

// Credential is the decrypted in-memory form of a tenant's connection to the
// accounting platform. Token fields are plaintext here and only here.
type Credential struct {
	TenantID         string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	APIBaseURL       string
}

// AccessValid reports whether the access token is still usable at the given
// time, with a safety skew so tokens are refreshed before they actually lapse.
func (c *Credential) AccessValid(now time.Time, skew time.Duration) bool {
	return c.AccessToken != "" && now.Add(skew).Before(c.AccessExpiresAt)
}

// Store persists credentials. Implementations must never see plaintext
// tokens on disk.
type Store interface {
	// Get returns the active credential for the tenant, or ErrNotConnected.
	Get(ctx context.Context, tenantID string) (*Credential, error)

	// Upsert replaces the active credential for the tenant.
	Upsert(ctx context.Context, cred *Credential) error

	// UpdateTokens persists a rotated token pair for the tenant.
	UpdateTokens(ctx context.Context, cred *Credential) error

	// Deactivate clears the tokens and marks the credential inactive. The row
	// is preserved so the connection history survives.
	Deactivate(ctx context.Context, tenantID string) error
}

type dbStore struct {
	queries *sqlc.Queries
	cipher  *tokencipher.Cipher
}

// NewDBStore creates a database-backed credential store. All token columns
// are written as AES-GCM ciphertext via the given cipher.
func NewDBStore(queries *sqlc.Queries, cipher *tokencipher.Cipher) Store {
	return &dbStore{
		queries: queries,
		cipher:  cipher,
	}
}

func (s *dbStore) Get(ctx context.Context, tenantID string) (*Credential, error) {
	row, err := s.queries.GetActiveCredential(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return s.fromRow(row)
}

func (s *dbStore) Upsert(ctx context.Context, cred *Credential) error {
	accessEnc, err := s.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc, err := s.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	secretEnc, err := s.cipher.Encrypt(cred.ClientSecret)
	if err != nil {
		return fmt.Errorf("failed to encrypt client secret: %w", err)
	}

	_, err = s.queries.UpsertCredential(ctx, sqlc.UpsertCredentialParams{
		TenantID:         cred.TenantID,
		AccessTokenEnc:   textOrNull(accessEnc),
		RefreshTokenEnc:  textOrNull(refreshEnc),
		AccessExpiresAt:  timestampOrNull(cred.AccessExpiresAt),
		RefreshExpiresAt: timestampOrNull(cred.RefreshExpiresAt),
		ClientID:         cred.ClientID,
		ClientSecretEnc:  secretEnc,
		RedirectUri:      cred.RedirectURI,
		ApiBaseUrl:       cred.APIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

func (s *dbStore) UpdateTokens(ctx context.Context, cred *Credential) error {
	accessEnc, err := s.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc, err := s.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	_, err = s.queries.UpdateCredentialTokens(ctx, sqlc.UpdateCredentialTokensParams{
		TenantID:         cred.TenantID,
		AccessTokenEnc:   textOrNull(accessEnc),
		RefreshTokenEnc:  textOrNull(refreshEnc),
		AccessExpiresAt:  timestampOrNull(cred.AccessExpiresAt),
		RefreshExpiresAt: timestampOrNull(cred.RefreshExpiresAt),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotConnected
		}
		return fmt.Errorf("failed to persist rotated tokens: %w", err)
	}
	return nil
}

func (s *dbStore) Deactivate(ctx context.Context, tenantID string) error {
	affected, err := s.queries.DeactivateCredential(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	if affected == 0 {
		return ErrNotConnected
	}
	return nil
}

func (s *dbStore) fromRow(row sqlc.Credential) (*Credential, error) {
	accessToken, err := s.cipher.Decrypt(row.AccessTokenEnc.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := s.cipher.Decrypt(row.RefreshTokenEnc.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	clientSecret, err := s.cipher.Decrypt(row.ClientSecretEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
	}

	return &Credential{
		TenantID:         row.TenantID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  row.AccessExpiresAt.Time,
		RefreshExpiresAt: row.RefreshExpiresAt.Time,
		ClientID:         row.ClientID,
		ClientSecret:     clientSecret,
		RedirectURI:      row.RedirectUri,
		APIBaseURL:       row.ApiBaseUrl,
	}, nil
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func timestampOrNull(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

// memoryStore is an in-memory Store used by tests and local development.
type memoryStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

// NewMemoryStore creates an in-memory credential store.
func NewMemoryStore() Store {
	return &memoryStore{creds: make(map[string]*Credential)}
}

func (m *memoryStore) Get(_ context.Context, tenantID string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[tenantID]
	if !ok {
		return nil, ErrNotConnected
	}
	cp := *cred
	return &cp, nil
}

func (m *memoryStore) Upsert(_ context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.creds[cred.TenantID] = &cp
	return nil
}

func (m *memoryStore) UpdateTokens(_ context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.creds[cred.TenantID]
	if !ok {
		return ErrNotConnected
	}
	existing.AccessToken = cred.AccessToken
	existing.RefreshToken = cred.RefreshToken
	existing.AccessExpiresAt = cred.AccessExpiresAt
	existing.RefreshExpiresAt = cred.RefreshExpiresAt
	return nil
}

func (m *memoryStore) Deactivate(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[tenantID]; !ok {
		return ErrNotConnected
	}
	delete(m.creds, tenantID)
	return nil
}
