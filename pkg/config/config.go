package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Registration RegistrationConfig
	Sweep        SweepConfig
	Matching     MatchingConfig
	Scheduling   SchedulingConfig
	Metrics      MetricsConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RegistrationConfig holds the policy values stamped on new registrations.
type RegistrationConfig struct {
	ExpiryHorizon time.Duration
}

// SweepConfig drives the auto-approval sweeper. StalenessHorizon is deliberately
// separate from RegistrationConfig.ExpiryHorizon; the two may differ.
type SweepConfig struct {
	Enabled          bool
	Schedule         string
	StalenessHorizon time.Duration
	LockKey          string
	LockTTL          time.Duration
}

// MatchingConfig tunes tutor suggestion ranking and caching.
type MatchingConfig struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	Limit         int
	DefaultRating float64
}

// SchedulingConfig governs appointment booking policy.
type SchedulingConfig struct {
	RejectConflicts bool
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with. All problems are
// reported together.
func (c *Config) Validate() error {
	var problems []error
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		problems = append(problems, fmt.Errorf("ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		problems = append(problems, errors.New("API_PREFIX must start with /"))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		problems = append(problems, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}
	if c.Sweep.Enabled && strings.TrimSpace(c.Sweep.Schedule) == "" {
		problems = append(problems, errors.New("SWEEP_SCHEDULE is required when the sweeper is enabled"))
	}
	if c.Redis.Enabled && c.Redis.DB < 0 {
		problems = append(problems, fmt.Errorf("REDIS_DB %d is negative", c.Redis.DB))
	}
	return errors.Join(problems...)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Registration = RegistrationConfig{
		ExpiryHorizon: parseDuration(v.GetString("REGISTRATION_EXPIRY_HORIZON"), 12*time.Hour),
	}

	cfg.Sweep = SweepConfig{
		Enabled:          v.GetBool("SWEEP_ENABLED"),
		Schedule:         v.GetString("SWEEP_SCHEDULE"),
		StalenessHorizon: parseDuration(v.GetString("SWEEP_STALENESS_HORIZON"), 24*time.Hour),
		LockKey:          v.GetString("SWEEP_LOCK_KEY"),
		LockTTL:          parseDuration(v.GetString("SWEEP_LOCK_TTL"), 4*time.Minute),
	}

	limit := v.GetInt("MATCHING_LIMIT")
	if limit <= 0 {
		limit = 20
	}
	rating := v.GetFloat64("MATCHING_DEFAULT_RATING")
	if rating <= 0 {
		rating = 4.5
	}
	cfg.Matching = MatchingConfig{
		CacheEnabled:  v.GetBool("MATCHING_CACHE_ENABLED"),
		CacheTTL:      parseDuration(v.GetString("MATCHING_CACHE_TTL"), 5*time.Minute),
		Limit:         limit,
		DefaultRating: rating,
	}

	cfg.Scheduling = SchedulingConfig{
		RejectConflicts: v.GetBool("SCHEDULING_REJECT_CONFLICTS"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutor_support")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REGISTRATION_EXPIRY_HORIZON", "12h")

	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("SWEEP_STALENESS_HORIZON", "24h")
	v.SetDefault("SWEEP_LOCK_KEY", "locks:registration-sweep")
	v.SetDefault("SWEEP_LOCK_TTL", "4m")

	v.SetDefault("MATCHING_CACHE_ENABLED", false)
	v.SetDefault("MATCHING_CACHE_TTL", "5m")
	v.SetDefault("MATCHING_LIMIT", 20)
	v.SetDefault("MATCHING_DEFAULT_RATING", 4.5)

	v.SetDefault("SCHEDULING_REJECT_CONFLICTS", false)
	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
