package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database driver constants
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// User directory mode constants
const (
	UserDirectoryModeStatic  = "static"
	UserDirectoryModeHTTPAPI = "http_api"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Client cache type constants
const (
	ClientCacheTypeMemory     = "memory"
	ClientCacheTypeRedis      = "redis"
	ClientCacheTypeRedisAside = "redis-aside"
)

// MaxAuthCodeTTL caps how long an authorization code may stay redeemable.
const MaxAuthCodeTTL = 10 * time.Minute

// MinSigningKeyBits is the smallest RSA modulus accepted for token signing.
const MinSigningKeyBits = 2048

const defaultSessionSecret = "session-secret-change-in-production"

type Config struct {
	// Server settings
	ServerAddr    string
	BaseURL       string // also the token issuer
	TokenAudience string
	IsProduction  bool

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	DBInitTimeout  time.Duration

	// Signing keys
	SigningKeyPath      string // PEM encoded RSA private key; generated when empty
	SigningKeyBits      int
	KeyRotationInterval time.Duration // 0 disables rotation

	// Authorization codes
	AuthCodeTTL time.Duration

	// Session
	SessionSecret string
	SessionMaxAge int // seconds

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// CSRF
	CSRFExemptPaths []string // path prefixes

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	TokenRateLimit           int    // requests per minute
	LoginRateLimit           int
	AuthorizeRateLimit       int
	RateLimitCleanupInterval time.Duration

	// Redis (rate limiter and client cache)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Client cache
	ClientCacheType        string
	ClientCacheTTL         time.Duration
	ClientCacheClientTTL   time.Duration // client-side TTL for redis-aside
	ClientCacheSizePerConn int           // MB, redis-aside only
	CacheInitTimeout       time.Duration

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateInterval time.Duration

	// Audit
	EnableAuditLogging   bool
	AuditLogBufferSize   int
	AuditLogRetention    time.Duration
	AuditShutdownTimeout time.Duration

	// User directory
	UserDirectoryMode      string
	UserAPIURL             string
	UserAPITimeout         time.Duration
	UserAPIInsecureSkipTLS bool
	UserAPIAuthMode        string // "none", "simple" or "hmac"
	UserAPIAuthSecret      string
	UserAPIAuthHeader      string
	UserAPIMaxRetries      int
	UserAPIRetryDelay      time.Duration
	UserAPIMaxRetryDelay   time.Duration
	StaticUsers            []string // "username:password" pairs

	// Token lifetimes used when a client record leaves its own TTL at zero
	AccessTokenDefaultTTL  time.Duration
	RefreshTokenDefaultTTL time.Duration

	// Expired codes and refresh tokens are purged on this interval
	ExpiredRecordCleanupInterval time.Duration

	SeedDefaultClients    bool
	ServerShutdownTimeout time.Duration
	LogGrantTransitions   bool // log each grant state change
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", DatabaseDriverSQLite)
	var dsn string
	if driver == DatabaseDriverSQLite {
		dsn = getEnv("DATABASE_DSN", "grantd.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		BaseURL:       strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		TokenAudience: getEnv("TOKEN_AUDIENCE", "grantd"),
		IsProduction:  getEnv("ENVIRONMENT", "development") == "production",

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		SigningKeyPath:      getEnv("SIGNING_KEY_PATH", ""),
		SigningKeyBits:      getEnvInt("SIGNING_KEY_BITS", 2048),
		KeyRotationInterval: getEnvDuration("KEY_ROTATION_INTERVAL", 0),

		AuthCodeTTL: getEnvDuration("AUTH_CODE_TTL", 10*time.Minute),

		SessionSecret: getEnv("SESSION_SECRET", defaultSessionSecret),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 3600),

		CORSAllowedOrigins: getEnvSlice(
			"CORS_ALLOWED_ORIGINS",
			[]string{"http://localhost:3000", "http://localhost:3001"},
		),
		CORSAllowedMethods: getEnvSlice(
			"CORS_ALLOWED_METHODS",
			[]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		),
		CORSAllowedHeaders:   getEnvSlice("CORS_ALLOWED_HEADERS", []string{"*"}),
		CORSAllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getEnvInt("CORS_MAX_AGE", 3600),

		CSRFExemptPaths: getEnvSlice(
			"CSRF_EXEMPT_PATHS",
			[]string{"/oauth2/token", "/oauth2/jwks", "/api/auth/"},
		),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		TokenRateLimit:           getEnvInt("TOKEN_RATE_LIMIT", 60),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 5),
		AuthorizeRateLimit:       getEnvInt("AUTHORIZE_RATE_LIMIT", 30),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		ClientCacheType:        getEnv("CLIENT_CACHE_TYPE", ClientCacheTypeMemory),
		ClientCacheTTL:         getEnvDuration("CLIENT_CACHE_TTL", 5*time.Minute),
		ClientCacheClientTTL:   getEnvDuration("CLIENT_CACHE_CLIENT_TTL", 30*time.Second),
		ClientCacheSizePerConn: getEnvInt("CLIENT_CACHE_SIZE_PER_CONN", 16),
		CacheInitTimeout:       getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),

		EnableAuditLogging:   getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize:   getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:    getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		AuditShutdownTimeout: getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),

		UserDirectoryMode:      getEnv("USER_DIRECTORY_MODE", UserDirectoryModeStatic),
		UserAPIURL:             getEnv("USER_API_URL", ""),
		UserAPITimeout:         getEnvDuration("USER_API_TIMEOUT", 10*time.Second),
		UserAPIInsecureSkipTLS: getEnvBool("USER_API_INSECURE_SKIP_VERIFY", false),
		UserAPIAuthMode:        getEnv("USER_API_AUTH_MODE", "none"),
		UserAPIAuthSecret:      getEnv("USER_API_AUTH_SECRET", ""),
		UserAPIAuthHeader:      getEnv("USER_API_AUTH_HEADER", "X-API-Secret"),
		UserAPIMaxRetries:      getEnvInt("USER_API_MAX_RETRIES", 3),
		UserAPIRetryDelay:      getEnvDuration("USER_API_RETRY_DELAY", 1*time.Second),
		UserAPIMaxRetryDelay:   getEnvDuration("USER_API_MAX_RETRY_DELAY", 10*time.Second),
		StaticUsers:            getEnvSlice("STATIC_USERS", nil),

		AccessTokenDefaultTTL:  getEnvDuration("ACCESS_TOKEN_DEFAULT_TTL", time.Hour),
		RefreshTokenDefaultTTL: getEnvDuration("REFRESH_TOKEN_DEFAULT_TTL", 720*time.Hour),

		ExpiredRecordCleanupInterval: getEnvDuration("EXPIRED_RECORD_CLEANUP_INTERVAL", time.Hour),

		SeedDefaultClients:    getEnvBool("SEED_DEFAULT_CLIENTS", true),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		LogGrantTransitions:   getEnvBool("LOG_GRANT_TRANSITIONS", false),
	}
}

// Validate checks the loaded configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be %q or %q)",
			c.DatabaseDriver, DatabaseDriverSQLite, DatabaseDriverPostgres,
		)
	}

	if c.AuthCodeTTL <= 0 || c.AuthCodeTTL > MaxAuthCodeTTL {
		return fmt.Errorf("AUTH_CODE_TTL must be between 1s and %s", MaxAuthCodeTTL)
	}

	if c.SigningKeyBits < MinSigningKeyBits {
		return fmt.Errorf("SIGNING_KEY_BITS must be at least %d", MinSigningKeyBits)
	}

	if c.KeyRotationInterval < 0 {
		return errors.New("KEY_ROTATION_INTERVAL must not be negative")
	}

	switch c.RateLimitStore {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if c.EnableRateLimit && c.RedisAddr == "" {
			return fmt.Errorf("RATE_LIMIT_STORE=%q requires REDIS_ADDR", c.RateLimitStore)
		}
	default:
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}

	switch c.ClientCacheType {
	case ClientCacheTypeMemory:
	case ClientCacheTypeRedis, ClientCacheTypeRedisAside:
		if c.RedisAddr == "" {
			return fmt.Errorf("CLIENT_CACHE_TYPE=%q requires REDIS_ADDR", c.ClientCacheType)
		}
	default:
		return fmt.Errorf(
			"invalid CLIENT_CACHE_TYPE value: %q (must be %q, %q or %q)",
			c.ClientCacheType,
			ClientCacheTypeMemory, ClientCacheTypeRedis, ClientCacheTypeRedisAside,
		)
	}
	if c.ClientCacheTTL <= 0 {
		return errors.New("CLIENT_CACHE_TTL must be a positive duration")
	}

	switch c.UserDirectoryMode {
	case UserDirectoryModeStatic:
	case UserDirectoryModeHTTPAPI:
		if c.UserAPIURL == "" {
			return errors.New("USER_API_URL is required when USER_DIRECTORY_MODE=http_api")
		}
	default:
		return fmt.Errorf(
			"invalid USER_DIRECTORY_MODE value: %q (must be %q or %q)",
			c.UserDirectoryMode, UserDirectoryModeStatic, UserDirectoryModeHTTPAPI,
		)
	}

	if c.IsProduction && c.SessionSecret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be changed in production")
	}

	return nil
}

// Issuer returns the value placed in the iss claim of every access token.
func (c *Config) Issuer() string {
	return c.BaseURL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for part := range strings.SplitSeq(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
