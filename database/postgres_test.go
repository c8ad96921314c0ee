package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoreConfig_BuildConnectionString(t *testing.T) {
	cfg := &CoreConfig{
		Host:     "db.internal",
		Port:     5432,
		Database: "core_human",
		User:     "loader",
		Password: "secret",
		SSLMode:  "require",
		MaxConns: 8,
		MinConns: 1,
	}

	dsn := cfg.buildConnectionString()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=core_human")
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "pool_max_conns=8")
	assert.Contains(t, dsn, "pool_min_conns=1")
}

func TestDefaultCoreConfig_HasSaneDefaults(t *testing.T) {
	cfg := DefaultCoreConfig()
	assert.Equal(t, "prefer", cfg.SSLMode)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Greater(t, cfg.MaxConns, cfg.MinConns)
}
