package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/tenant-session/internal/domain"
)

const minSecretLength = 32

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Roles    RolesConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines identity provider parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	RefreshMarginSeconds  int
	RevocationCacheSize   int
	BcryptCost            int
}

// RolesConfig controls resolution defaults and landing paths.
type RolesConfig struct {
	// UnassignedFallback is empty unless a deployment explicitly opts into
	// mapping unprovisioned principals to a concrete role.
	UnassignedFallback domain.Role
	RedirectOverrides  map[domain.Role]string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	fallback, err := parseFallback(os.Getenv("ROLE_UNASSIGNED_FALLBACK"))
	if err != nil {
		return nil, err
	}

	overrides, err := parseRedirects(os.Getenv("ROLE_REDIRECTS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "tenant-session-agent"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "tenant-session:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret-change-me-dev-secret-change-me"),
			Issuer:                getEnv("AUTH_ISSUER", "tenant-session"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 24*7),
			RefreshMarginSeconds:  getEnvAsInt("AUTH_REFRESH_MARGIN_SECONDS", 60),
			RevocationCacheSize:   getEnvAsInt("AUTH_REVOCATION_CACHE_SIZE", 1024),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Roles: RolesConfig{
			UnassignedFallback: fallback,
			RedirectOverrides:  overrides,
		},
	}

	if len(cfg.Auth.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be at least %d characters", minSecretLength)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTTL returns the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	if a.RefreshTokenTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// RefreshMargin is how long before expiry the worker refreshes tokens.
func (a AuthConfig) RefreshMargin() time.Duration {
	if a.RefreshMarginSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(a.RefreshMarginSeconds) * time.Second
}

// Redirects returns the landing table with configured overrides applied.
func (r RolesConfig) Redirects() domain.RedirectMap {
	return domain.DefaultRedirects().With(r.RedirectOverrides)
}

func parseFallback(value string) (domain.Role, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	role, err := domain.ParseRole(value)
	if err != nil {
		return "", fmt.Errorf("invalid ROLE_UNASSIGNED_FALLBACK: %w", err)
	}
	if role == domain.RoleSuperAdmin {
		return "", fmt.Errorf("invalid ROLE_UNASSIGNED_FALLBACK: %s cannot be a fallback", role)
	}
	return role, nil
}

// parseRedirects reads "role=/path,role=/path".
func parseRedirects(value string) (map[domain.Role]string, error) {
	out := map[domain.Role]string{}
	if strings.TrimSpace(value) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(value, ",") {
		name, path, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("invalid ROLE_REDIRECTS entry %q", pair)
		}
		role, err := domain.ParseRole(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("invalid ROLE_REDIRECTS entry %q: %w", pair, err)
		}
		out[role] = path
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
