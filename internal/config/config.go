// Package config provides configuration loading and management for the sync server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eaur/qbsync/internal/records"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	QuickBooks QuickBooksConfig `yaml:"quickbooks"`
	Sync       SyncConfig       `yaml:"sync"`
	Server     ServerConfig     `yaml:"server,omitempty"`

	// TokenKeyFile points at the base64-encoded AES-256 key used to encrypt
	// tokens at rest. Falls back to the QBSYNC_TOKEN_KEY environment variable.
	TokenKeyFile string `yaml:"tokenKeyFile,omitempty"`
}

// QuickBooksConfig defines the accounting platform connection settings
type QuickBooksConfig struct {
	// ClientID is the OAuth application client id
	ClientID string `yaml:"clientId"`

	// ClientSecretFile is the path to a file containing the OAuth client secret.
	// This is the recommended approach for production deployments.
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`

	// RedirectURI is the registered OAuth callback URL
	RedirectURI string `yaml:"redirectUri"`

	// APIBaseURL is the base URL of the accounting API
	// (e.g. "https://sandbox-quickbooks.api.intuit.com")
	APIBaseURL string `yaml:"apiBaseUrl"`

	// TokenURL is the OAuth token endpoint used for code exchange and refresh
	TokenURL string `yaml:"tokenUrl"`

	// RevokeURL is the OAuth token revocation endpoint
	RevokeURL string `yaml:"revokeUrl"`

	// AuthorizeURL is the user-facing consent page
	AuthorizeURL string `yaml:"authorizeUrl"`

	// RealmID is the connected company identifier. It is assigned by the
	// provider during the authorization callback; background sync needs it
	// configured, the connect endpoints work without it.
	RealmID string `yaml:"realmId,omitempty"`

	// Scopes requested during authorization
	Scopes []string `yaml:"scopes,omitempty"`

	// MinorVersion is the API minor version appended to resource calls
	MinorVersion string `yaml:"minorVersion,omitempty"`

	// RequestTimeout bounds each remote call (e.g. "30s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// GetClientSecret returns the OAuth client secret using the following priority:
// 1. Read from ClientSecretFile if specified
// 2. Read from QBSYNC_CLIENT_SECRET environment variable
func (q *QuickBooksConfig) GetClientSecret() (string, error) {
	if q.ClientSecretFile != "" {
		cleanPath := filepath.Clean(q.ClientSecretFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret from file %s: %w", q.ClientSecretFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envSecret := os.Getenv("QBSYNC_CLIENT_SECRET"); envSecret != "" {
		return envSecret, nil
	}

	return "", fmt.Errorf(
		"no client secret configured: set clientSecretFile or QBSYNC_CLIENT_SECRET environment variable",
	)
}

// GetRequestTimeout parses RequestTimeout, defaulting to 30s.
func (q *QuickBooksConfig) GetRequestTimeout() time.Duration {
	if q.RequestTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(q.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SyncConfig defines batch and scheduling settings
type SyncConfig struct {
	// Entities lists the entity kinds the coordinator processes, in order
	Entities []string `yaml:"entities"`

	// BatchSize is the number of records claimed per batch
	BatchSize int `yaml:"batchSize,omitempty"`

	// MaxBatches bounds a single RunAll invocation
	MaxBatches int `yaml:"maxBatches,omitempty"`

	// Interval is the coordinator polling interval (e.g. "5m")
	Interval string `yaml:"interval"`

	// RateLimitPause is the default pause when the remote rate-limits and
	// provides no retry hint (e.g. "60s")
	RateLimitPause string `yaml:"rateLimitPause,omitempty"`

	// PushedBy is recorded on records synced by the background coordinator
	PushedBy string `yaml:"pushedBy,omitempty"`
}

// GetBatchSize returns the batch size, defaulting to 50.
func (s *SyncConfig) GetBatchSize() int {
	if s.BatchSize <= 0 {
		return 50
	}
	return s.BatchSize
}

// GetMaxBatches returns the RunAll batch bound, defaulting to 20.
func (s *SyncConfig) GetMaxBatches() int {
	if s.MaxBatches <= 0 {
		return 20
	}
	return s.MaxBatches
}

// GetInterval parses the coordinator interval.
func (s *SyncConfig) GetInterval() (time.Duration, error) {
	return time.ParseDuration(s.Interval)
}

// GetRateLimitPause parses RateLimitPause, defaulting to 60s.
func (s *SyncConfig) GetRateLimitPause() time.Duration {
	if s.RateLimitPause == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(s.RateLimitPause)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ServerConfig defines the admin HTTP listener settings
type ServerConfig struct {
	// Address is the listen address (e.g. ":8080")
	Address string `yaml:"address,omitempty"`
}

// GetAddress returns the listen address, defaulting to ":8080".
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from QBSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		password := strings.TrimSpace(string(data))
		return password, nil
	}

	if envPassword := os.Getenv("QBSYNC_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or QBSYNC_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateDatabase(&c.Database); err != nil {
		return err
	}
	if err := validateQuickBooks(&c.QuickBooks); err != nil {
		return err
	}
	return validateSync(&c.Sync)
}

func validateDatabase(d *DatabaseConfig) error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database.connMaxLifetime must be a valid duration: %w", err)
		}
	}
	return nil
}

func validateQuickBooks(q *QuickBooksConfig) error {
	if q.ClientID == "" {
		return fmt.Errorf("quickbooks.clientId is required")
	}
	if q.RedirectURI == "" {
		return fmt.Errorf("quickbooks.redirectUri is required")
	}
	for name, raw := range map[string]string{
		"quickbooks.apiBaseUrl":   q.APIBaseURL,
		"quickbooks.tokenUrl":     q.TokenURL,
		"quickbooks.revokeUrl":    q.RevokeURL,
		"quickbooks.authorizeUrl": q.AuthorizeURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%s must be a valid URL: %w", name, err)
		}
	}
	if q.RequestTimeout != "" {
		if _, err := time.ParseDuration(q.RequestTimeout); err != nil {
			return fmt.Errorf("quickbooks.requestTimeout must be a valid duration: %w", err)
		}
	}
	return nil
}

func validateSync(s *SyncConfig) error {
	if len(s.Entities) == 0 {
		return fmt.Errorf("sync.entities must list at least one entity kind")
	}
	seen := make(map[records.EntityKind]bool)
	for i, e := range s.Entities {
		kind, err := records.ParseEntityKind(e)
		if err != nil {
			return fmt.Errorf("sync.entities[%d]: %w", i, err)
		}
		if seen[kind] {
			return fmt.Errorf("sync.entities[%d]: duplicate entity kind %s", i, kind)
		}
		seen[kind] = true
	}

	if s.Interval == "" {
		return fmt.Errorf("sync.interval is required")
	}
	if _, err := time.ParseDuration(s.Interval); err != nil {
		return fmt.Errorf("sync.interval must be a valid duration (e.g., '5m', '1h'): %w", err)
	}
	if s.RateLimitPause != "" {
		if _, err := time.ParseDuration(s.RateLimitPause); err != nil {
			return fmt.Errorf("sync.rateLimitPause must be a valid duration: %w", err)
		}
	}
	return nil
}

// EntityKinds returns the parsed entity kinds from Sync.Entities. The config
// is validated at load time so parsing cannot fail here.
func (c *Config) EntityKinds() []records.EntityKind {
	kinds := make([]records.EntityKind, 0, len(c.Sync.Entities))
	for _, e := range c.Sync.Entities {
		kind, err := records.ParseEntityKind(e)
		if err != nil {
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}
