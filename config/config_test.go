package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearDBEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"STAGING_DB_HOST", "STAGING_DB_PORT", "STAGING_DB_USER", "STAGING_DB_PASSWORD", "STAGING_DB_NAME",
		"CORE_DB_HOST", "CORE_DB_PORT", "CORE_DB_USER", "CORE_DB_PASSWORD", "CORE_DB_NAME",
		"SPECIES_ID", "VERBOSE", "DUMPCHECK", "NOFARM", "QUEUE", "EXONERATE", "LOG_LEVEL", "PHASE_TIMEOUT",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoad_DefaultsWhenEnvUnset(t *testing.T) {
	clearDBEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Staging.Host)
	assert.Equal(t, 3306, cfg.Staging.Port)
	assert.Equal(t, "xref_staging", cfg.Staging.DBName)
	assert.Equal(t, "localhost", cfg.Core.Host)
	assert.Equal(t, 5432, cfg.Core.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.PhaseTimeout)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearDBEnv(t)
	os.Setenv("STAGING_DB_HOST", "staging.internal")
	os.Setenv("SPECIES_ID", "9606")
	os.Setenv("VERBOSE", "true")
	defer clearDBEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "staging.internal", cfg.Staging.Host)
	assert.Equal(t, 9606, cfg.SpeciesID)
	assert.True(t, cfg.Verbose)
}

func TestLoad_YAMLOverlayWinsOverEnv(t *testing.T) {
	clearDBEnv(t)
	os.Setenv("STAGING_DB_HOST", "from-env")
	defer clearDBEnv(t)

	dir := t.TempDir()
	yamlPath := dir + "/overlay.yaml"
	require.NoError(t, os.WriteFile(yamlPath, []byte("staging:\n  host: from-yaml\n"), 0o644))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Staging.Host)
}

func TestLoad_MalformedYAMLReturnsValidationError(t *testing.T) {
	clearDBEnv(t)
	dir := t.TempDir()
	yamlPath := dir + "/bad.yaml"
	require.NoError(t, os.WriteFile(yamlPath, []byte("staging: [this is not a mapping"), 0o644))

	_, err := Load(yamlPath)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidate_RequiresStagingAndCoreHostAndName(t *testing.T) {
	cfg := &LoaderConfig{SpeciesID: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}

func TestValidate_RequiresPositiveSpeciesID(t *testing.T) {
	cfg := &LoaderConfig{
		Staging:   DBConfig{Host: "h", DBName: "d"},
		Core:      DBConfig{Host: "h", DBName: "d"},
		SpeciesID: 0,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "species_id")
}

func TestValidate_PassesWithCompleteConfig(t *testing.T) {
	cfg := &LoaderConfig{
		Staging:   DBConfig{Host: "h", DBName: "d"},
		Core:      DBConfig{Host: "h", DBName: "d"},
		SpeciesID: 9606,
	}
	assert.NoError(t, cfg.Validate())
}
