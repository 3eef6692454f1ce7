package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Submission storage backends.
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Dataset     DatasetConfig
	Cache       CacheConfig
	Dashboard   DashboardConfig
	Submissions SubmissionsConfig
	Database    DatabaseConfig
	CORS        CORSConfig
	Metrics     MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatasetConfig locates the event file and its optional sqlite snapshot.
type DatasetConfig struct {
	Path         string
	Encoding     string
	SnapshotPath string
}

// CacheConfig tunes the dashboard result cache.
type CacheConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DashboardConfig holds pipeline tuning knobs.
type DashboardConfig struct {
	JitterRadius         float64
	USPopulation         float64
	StatePopulationsFile string
}

// SubmissionsConfig selects where manual submissions are stored.
type SubmissionsConfig struct {
	Backend string
	Path    string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom builds the configuration from v, which callers may have bound to command-line
// flags. Environment variables are layered on top of v's defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Bind environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Dataset: DatasetConfig{
			Path:         v.GetString("DATASET_PATH"),
			Encoding:     strings.ToLower(v.GetString("DATASET_ENCODING")),
			SnapshotPath: v.GetString("SNAPSHOT_PATH"),
		},
		Cache: CacheConfig{
			TTL:             v.GetDuration("CACHE_TTL"),
			CleanupInterval: v.GetDuration("CACHE_CLEANUP_INTERVAL"),
		},
		Dashboard: DashboardConfig{
			JitterRadius:         v.GetFloat64("JITTER_RADIUS"),
			USPopulation:         v.GetFloat64("US_POPULATION"),
			StatePopulationsFile: v.GetString("STATE_POPULATIONS_FILE"),
		},
		Submissions: SubmissionsConfig{
			Backend: strings.ToLower(v.GetString("SUBMISSIONS_BACKEND")),
			Path:    v.GetString("SUBMISSIONS_PATH"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SetDefaults registers the development defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATASET_PATH", "ccc-phase3-public.csv")
	v.SetDefault("DATASET_ENCODING", "latin1")
	v.SetDefault("SNAPSHOT_PATH", "")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_CLEANUP_INTERVAL", "10m")
	v.SetDefault("JITTER_RADIUS", 0.03)
	v.SetDefault("US_POPULATION", 340100000)
	v.SetDefault("STATE_POPULATIONS_FILE", "")
	v.SetDefault("SUBMISSIONS_BACKEND", BackendCSV)
	v.SetDefault("SUBMISSIONS_PATH", "manual_submissions.csv")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "dissent")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("METRICS_ENABLED", true)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate dataset config
	if c.Dataset.Path == "" {
		return fmt.Errorf("DATASET_PATH is required")
	}
	switch c.Dataset.Encoding {
	case "latin1", "utf-8":
	default:
		return fmt.Errorf("DATASET_ENCODING must be latin1 or utf-8, got %q", c.Dataset.Encoding)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive")
	}

	if c.Dashboard.JitterRadius < 0 {
		return fmt.Errorf("JITTER_RADIUS must be non-negative")
	}
	if c.Dashboard.USPopulation <= 0 {
		return fmt.Errorf("US_POPULATION must be positive")
	}

	switch c.Submissions.Backend {
	case BackendCSV:
		if c.Submissions.Path == "" {
			return fmt.Errorf("SUBMISSIONS_PATH is required for the csv backend")
		}
	case BackendPostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("SUBMISSIONS_BACKEND must be %s or %s, got %q", BackendCSV, BackendPostgres, c.Submissions.Backend)
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// Validate checks the database settings. They are only required by the postgres
// submissions backend.
func (d *DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
