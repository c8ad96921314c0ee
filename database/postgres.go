// Package database holds the two connection pools the Loader opens: the
// core database (Postgres, via pgx/v5) and the staging database (MySQL, via
// go-sql-driver/mysql, reflecting Ensembl's historically MySQL-based
// staging schema).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// CoreConfig holds the core (production) Postgres connection configuration.
type CoreConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	HealthCheck time.Duration
}

// DefaultCoreConfig returns sensible pool defaults.
func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		Host:        "localhost",
		Port:        5432,
		Database:    "core",
		User:        "postgres",
		SSLMode:     "prefer",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		HealthCheck: time.Minute,
	}
}

func (c *CoreConfig) buildConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d search_path=public",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
		c.MaxConns, c.MinConns,
	)
}

// CorePool wraps the core database's pgx connection pool. CoreStore (C2) is
// built on top of it; every DeleteByExternalDB / UpsertXref call runs
// through a pgx.Tx the Loader opens per phase, one transaction per phase.
type CorePool struct {
	pool *pgxpool.Pool
	cfg  *CoreConfig
}

// NewCorePool opens and pings a new core connection pool.
func NewCorePool(cfg *CoreConfig) (*CorePool, error) {
	if cfg == nil {
		cfg = DefaultCoreConfig()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.buildConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse core connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLife
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	if cfg.HealthCheck > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheck
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO public")
		return err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create core connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping core database: %w", err)
	}

	return &CorePool{pool: pool, cfg: cfg}, nil
}

func (s *CorePool) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *CorePool) Pool() *pgxpool.Pool { return s.pool }

// StdlibDB exposes a database/sql.DB handle for code written against the
// standard library interface instead of pgx directly.
func (s *CorePool) StdlibDB() (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s search_path=public",
		s.cfg.Host, s.cfg.Port, s.cfg.Database, s.cfg.User, s.cfg.Password, s.cfg.SSLMode,
	)
	connConfig, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse core connection config: %w", err)
	}
	return stdlib.OpenDB(*connConfig), nil
}

func (s *CorePool) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *CorePool) Begin(ctx context.Context) (pgx.Tx, error) { return s.pool.Begin(ctx) }

func (s *CorePool) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return s.pool.QueryRow(ctx, query, args...)
}

func (s *CorePool) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	return s.pool.Query(ctx, query, args...)
}

func (s *CorePool) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	return s.pool.Exec(ctx, query, args...)
}

func (s *CorePool) Stats() *pgxpool.Stat { return s.pool.Stat() }
