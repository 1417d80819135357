package app

import (
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// If true, FLOCK_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and
	// refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("FLOCK_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("FLOCK_LOG_LEVEL", "info"),
		LogFormat: EnvString("FLOCK_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("FLOCK_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("FLOCK_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("FLOCK_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("FLOCK_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("FLOCK_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("FLOCK_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("FLOCK_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("FLOCK_DB_MIN_CONNS", 0),

		CORSAllowedOrigins:   envList("FLOCK_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("FLOCK_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("FLOCK_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("FLOCK_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("FLOCK_REQUIRE_TOKEN_HMAC", false),
	}
}

// envList parses a comma-separated env var, dropping empty entries.
func envList(key string) []string {
	raw := EnvString(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
