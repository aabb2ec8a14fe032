package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	apperrors "uhnw-graph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Process state
	StateFile string // frontier {ids: {id: resolved}}
	DataFile  string // knowledge-base snapshot {persons, edges}

	// Matching
	PersonMatchThreshold  float64 // token-set score (0-100) required to merge persons
	CompanyMatchThreshold float64 // token-set score (0-100) required to merge companies
	MaxEditDistance       int     // edit-distance fallback for company near-misses

	// Ingestion
	ParseWorkers int  // parallel adapter preprocessing
	DryRun       bool // log writes instead of sending them to Neo4j
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		Neo4jURI:              getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:             getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:         getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:         getEnv("NEO4J_DATABASE", ""),
		StateFile:             getEnv("STATE_FILE", "./shared_state.json"),
		DataFile:              getEnv("DATA_FILE", "./data.json"),
		PersonMatchThreshold:  getEnvFloat("PERSON_MATCH_THRESHOLD", 93),
		CompanyMatchThreshold: getEnvFloat("COMPANY_MATCH_THRESHOLD", 93),
		MaxEditDistance:       getEnvInt("MAX_EDIT_DISTANCE", 2),
		ParseWorkers:          getEnvInt("INGEST_PARSE_WORKERS", 4),
		DryRun:                getEnvBool("DRY_RUN", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" && !c.DryRun {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	if c.StateFile == "" {
		return apperrors.NewConfigMissingRequired("STATE_FILE")
	}
	if c.PersonMatchThreshold <= 0 || c.PersonMatchThreshold > 100 {
		return apperrors.NewConfigValidationFailed("PERSON_MATCH_THRESHOLD", "must be in (0, 100]")
	}
	if c.CompanyMatchThreshold <= 0 || c.CompanyMatchThreshold > 100 {
		return apperrors.NewConfigValidationFailed("COMPANY_MATCH_THRESHOLD", "must be in (0, 100]")
	}
	if c.MaxEditDistance < 0 {
		return apperrors.NewConfigValidationFailed("MAX_EDIT_DISTANCE", "cannot be negative")
	}
	if c.ParseWorkers < 1 {
		c.ParseWorkers = 1
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
