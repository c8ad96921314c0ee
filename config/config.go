// Package config assembles the immutable LoaderConfig value the rest of the
// module is constructed from: the same getEnv/getIntEnv/getBoolEnv helper
// shape, narrowed to the options the loader actually recognises, plus an
// optional YAML overlay file.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DBConfig is the {host, port, user, password, dbname} tuple required per
// database.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// LoaderConfig is the full set of recognised options. It is built once by
// Load and passed as a pointer to every component constructor — no component
// mutates it.
type LoaderConfig struct {
	Staging   DBConfig `yaml:"staging"`
	Core      DBConfig `yaml:"core"`
	SpeciesID int      `yaml:"species_id"`
	Verbose   bool     `yaml:"verbose"`
	DumpCheck bool     `yaml:"dumpcheck"`
	NoFarm    bool     `yaml:"nofarm"`
	Queue     string   `yaml:"queue"`
	Exonerate string   `yaml:"exonerate"`

	LogLevel     string        `yaml:"log_level"`
	PhaseTimeout time.Duration `yaml:"phase_timeout"`
}

// Load builds a LoaderConfig from environment variables, then overlays a
// YAML file at yamlPath if it is non-empty and exists.
func Load(yamlPath string) (*LoaderConfig, error) {
	cfg := &LoaderConfig{
		Staging: DBConfig{
			Host:     getEnv("STAGING_DB_HOST", "localhost"),
			Port:     getIntEnv("STAGING_DB_PORT", 3306),
			User:     getEnv("STAGING_DB_USER", "root"),
			Password: getEnv("STAGING_DB_PASSWORD", ""),
			DBName:   getEnv("STAGING_DB_NAME", "xref_staging"),
		},
		Core: DBConfig{
			Host:     getEnv("CORE_DB_HOST", "localhost"),
			Port:     getIntEnv("CORE_DB_PORT", 5432),
			User:     getEnv("CORE_DB_USER", "postgres"),
			Password: getEnv("CORE_DB_PASSWORD", ""),
			DBName:   getEnv("CORE_DB_NAME", "core"),
		},
		SpeciesID:    getIntEnv("SPECIES_ID", 0),
		Verbose:      getBoolEnv("VERBOSE", false),
		DumpCheck:    getBoolEnv("DUMPCHECK", false),
		NoFarm:       getBoolEnv("NOFARM", false),
		Queue:        getEnv("QUEUE", ""),
		Exonerate:    getEnv("EXONERATE", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PhaseTimeout: getDurationEnv("PHASE_TIMEOUT", 30*time.Minute),
	}

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &ValidationError{Field: yamlPath, Message: "invalid YAML: " + err.Error()}
			}
		}
	}

	return cfg, nil
}

// Validate checks the required fields are present; a missing required DB
// parameter is fatal before any write.
func (c *LoaderConfig) Validate() error {
	if c.Staging.Host == "" || c.Staging.DBName == "" {
		return &ValidationError{Field: "staging", Message: "host and dbname are required"}
	}
	if c.Core.Host == "" || c.Core.DBName == "" {
		return &ValidationError{Field: "core", Message: "host and dbname are required"}
	}
	if c.SpeciesID <= 0 {
		return &ValidationError{Field: "species_id", Message: "must be a positive species identifier"}
	}
	return nil
}

// ValidationError reports a missing or malformed configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
