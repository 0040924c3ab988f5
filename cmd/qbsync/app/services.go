package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/eaur/qbsync/internal/config"
	"github.com/eaur/qbsync/internal/credentials"
	"github.com/eaur/qbsync/internal/db"
	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/qbclient"
	"github.com/eaur/qbsync/internal/syncengine"
	"github.com/eaur/qbsync/internal/telemetry"
	"github.com/eaur/qbsync/internal/tokencipher"
)

// services bundles the wired application dependencies shared by the serve and
// sync commands.
type services struct {
	cfg     *config.Config
	conn    *db.Connection
	manager *credentials.Manager
	engine  *syncengine.Engine
}

func (s *services) close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// buildServices loads configuration and wires the credential manager, API
// client and sync engine on top of one database connection pool.
func buildServices(ctx context.Context, configPath string) (*services, error) {
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cipher, err := tokencipher.NewFromSource(cfg.TokenKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load token key: %w", err)
	}

	conn, err := db.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	clientSecret, err := cfg.QuickBooks.GetClientSecret()
	if err != nil {
		conn.Close()
		return nil, err
	}

	manager := credentials.NewManager(
		credentials.NewDBStore(conn.Queries, cipher),
		credentials.Endpoints{
			TokenURL:     cfg.QuickBooks.TokenURL,
			RevokeURL:    cfg.QuickBooks.RevokeURL,
			AuthorizeURL: cfg.QuickBooks.AuthorizeURL,
			ClientID:     cfg.QuickBooks.ClientID,
			ClientSecret: clientSecret,
			RedirectURI:  cfg.QuickBooks.RedirectURI,
			Scopes:       cfg.QuickBooks.Scopes,
		},
	)

	client := qbclient.New(
		qbclient.NewManagerTokenSource(manager),
		cfg.QuickBooks.RealmID,
		cfg.QuickBooks.APIBaseURL,
		qbclient.WithTimeout(cfg.QuickBooks.GetRequestTimeout()),
		qbclient.WithMinorVersion(cfg.QuickBooks.MinorVersion),
	)

	metrics, err := telemetry.NewSyncMetrics(otel.GetMeterProvider())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	engineOpts := []syncengine.Option{
		syncengine.WithAuditSink(syncengine.NewDBAuditSink(conn.Queries)),
		syncengine.WithMetrics(metrics),
		syncengine.WithRateLimitPause(cfg.Sync.GetRateLimitPause()),
	}
	if cfg.Sync.PushedBy != "" {
		engineOpts = append(engineOpts, syncengine.WithPushedBy(cfg.Sync.PushedBy))
	}

	engine := syncengine.New(
		syncengine.NewDBRecordStore(conn.Queries),
		enrich.NewCache(enrich.NewDBReader(conn.Queries)),
		syncengine.NewPusher(client),
		engineOpts...,
	)

	return &services{
		cfg:     cfg,
		conn:    conn,
		manager: manager,
		engine:  engine,
	}, nil
}
