package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// StagingConfig holds the staging (Ensembl xref schema) MySQL connection
// configuration.
type StagingConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultStagingConfig returns sensible pool defaults.
func DefaultStagingConfig() *StagingConfig {
	return &StagingConfig{
		Host:            "localhost",
		Port:            3306,
		Database:        "xref_staging",
		User:            "root",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

func (c *StagingConfig) buildDSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=false",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// StagingPool wraps the staging database's *sql.DB handle. StagingStore (C1)
// is mostly a reader of it: the Loader writes back to staging only the
// dumped-state flag updates and process_status rows, which go through the
// same pool.
type StagingPool struct {
	db *sql.DB
}

// NewStagingPool opens and pings a new staging connection pool.
func NewStagingPool(cfg *StagingConfig) (*StagingPool, error) {
	if cfg == nil {
		cfg = DefaultStagingConfig()
	}

	db, err := sql.Open("mysql", cfg.buildDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open staging database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping staging database: %w", err)
	}

	return &StagingPool{db: db}, nil
}

func (s *StagingPool) Close() error { return s.db.Close() }

func (s *StagingPool) DB() *sql.DB { return s.db }

func (s *StagingPool) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *StagingPool) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *StagingPool) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *StagingPool) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *StagingPool) Stats() sql.DBStats { return s.db.Stats() }
