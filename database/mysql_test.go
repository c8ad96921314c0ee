package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagingConfig_BuildDSN(t *testing.T) {
	cfg := &StagingConfig{
		Host:     "staging.internal",
		Port:     3306,
		Database: "xref_human",
		User:     "loader",
		Password: "secret",
	}

	dsn := cfg.buildDSN()
	assert.Equal(t, "loader:secret@tcp(staging.internal:3306)/xref_human?parseTime=true&multiStatements=false", dsn)
}

func TestDefaultStagingConfig_HasSaneDefaults(t *testing.T) {
	cfg := DefaultStagingConfig()
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "xref_staging", cfg.Database)
	assert.Greater(t, cfg.MaxOpenConns, cfg.MaxIdleConns)
}
