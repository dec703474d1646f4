package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"template-engine/internal/common/config"
	"template-engine/internal/storage/postgres"

	_ "github.com/lib/pq"
)

// PostgresClient owns the pool behind the template store.
type PostgresClient struct {
	DB *sql.DB
}

// OpenPostgres opens the pool and checks the server answers. The pool is
// released again when the first ping fails.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return connectPostgres(ctx, db, cfg)
}

func connectPostgres(ctx context.Context, db *sql.DB, cfg config.PostgresConfig) (*PostgresClient, error) {
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	c := &PostgresClient{DB: db}
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return c, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// TemplateStore returns the store on this pool with its table in place.
func (c *PostgresClient) TemplateStore(ctx context.Context) (*postgres.TemplateStore, error) {
	store := postgres.NewTemplateStore(c.DB)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
