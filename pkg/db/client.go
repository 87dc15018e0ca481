package db

import (
	"context"
	"fmt"
	"time"

	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultConnectTimeout = 5 * time.Second

// Client owns the gorm connection behind the postgres cart and coupon stores.
type Client struct {
	conn *gorm.DB
}

// New connects to postgres. The simple protocol keeps it usable behind
// pgbouncer in transaction mode.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	return Open(ctx, postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), cfg, logg)
}

// Open connects through any dialector and pings before returning, so a bad
// DSN fails at boot rather than on the first cart write. Tests pass sqlite.
func Open(ctx context.Context, dialector gorm.Dialector, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", dialector.Name(), err)
	}
	client := &Client{conn: conn}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	for _, apply := range []struct {
		set bool
		fn  func()
	}{
		{cfg.MaxOpenConns > 0, func() { sqlDB.SetMaxOpenConns(cfg.MaxOpenConns) }},
		{cfg.MaxIdleConns > 0, func() { sqlDB.SetMaxIdleConns(cfg.MaxIdleConns) }},
		{cfg.ConnMaxLifetime > 0, func() { sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime) }},
		{cfg.ConnMaxIdleTime > 0, func() { sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime) }},
	} {
		if apply.set {
			apply.fn()
		}
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging %s: %w", dialector.Name(), err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"dialect":        dialector.Name(),
		"max_open_conns": cfg.MaxOpenConns,
	}), "db.connected")
	return client, nil
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Ping satisfies the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StatsCollector exports connection pool stats labelled with dbName.
func (c *Client) StatsCollector(dbName string) (prometheus.Collector, error) {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return nil, err
	}
	return collectors.NewDBStatsCollector(sqlDB, dbName), nil
}

// Upsert inserts value or, when a row with the same key columns exists,
// overwrites updateColumns on it.
func (c *Client) Upsert(ctx context.Context, value any, keyColumns []string, updateColumns []string) error {
	conflict := clause.OnConflict{DoUpdates: clause.AssignmentColumns(updateColumns)}
	for _, col := range keyColumns {
		conflict.Columns = append(conflict.Columns, clause.Column{Name: col})
	}
	return c.conn.WithContext(ctx).Clauses(conflict).Create(value).Error
}
