package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	LoginIPMax    int
	LoginIPWindow time.Duration

	LoginEmailMax    int
	LoginEmailWindow time.Duration
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:       envBool("FLOCK_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:     envInt64("FLOCK_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginIPMax:       envInt("FLOCK_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow:    envDuration("FLOCK_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		LoginEmailMax:    envInt("FLOCK_AUTH_LOGIN_EMAIL_MAX", 5),
		LoginEmailWindow: envDuration("FLOCK_AUTH_LOGIN_EMAIL_WINDOW", 15*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.LoginIPMax <= 0 {
		cfg.LoginIPMax = 20
	}
	if cfg.LoginEmailMax <= 0 {
		cfg.LoginEmailMax = 5
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
