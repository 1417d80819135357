package session

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// Access and refresh tokens are signed with distinct secrets so a token
// issued for one purpose can never be replayed as the other. Both secrets
// are required; a missing secret is a fatal configuration error at startup.
type Config struct {
	// Issuer is the value set in the "iss" claim of issued tokens.
	Issuer string

	// AccessSecret signs short-lived access tokens.
	AccessSecret []byte

	// RefreshSecret signs long-lived refresh tokens. Must differ from
	// AccessSecret.
	RefreshSecret []byte

	// AccessTokenTTL is the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens.
	RefreshTokenTTL time.Duration

	// ClockSkew is the allowed time skew during token validation.
	ClockSkew time.Duration
}

// DefaultConfig returns defaults suitable for development.
// Secrets are intentionally absent; they must come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:          "flock",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - FLOCK_ACCESS_SECRET
//   - FLOCK_REFRESH_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - FLOCK_AUTH_ISSUER
//   - FLOCK_ACCESS_TTL (default 30m)
//   - FLOCK_REFRESH_TTL (default 168h)
//   - FLOCK_AUTH_CLOCK_SKEW
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("FLOCK_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("FLOCK_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: FLOCK_ACCESS_TTL", ErrConfig)
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("FLOCK_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: FLOCK_REFRESH_TTL", ErrConfig)
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("FLOCK_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: FLOCK_AUTH_CLOCK_SKEW", ErrConfig)
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = []byte(strings.TrimSpace(os.Getenv("FLOCK_ACCESS_SECRET")))
	cfg.RefreshSecret = []byte(strings.TrimSpace(os.Getenv("FLOCK_REFRESH_SECRET")))

	return cfg, cfg.ValidateSecrets()
}

// ValidateSecrets enforces the signing-key policy: both secrets present and
// distinct. Separated out so startup code can fail fast with a clear error.
func (c Config) ValidateSecrets() error {
	if len(c.AccessSecret) == 0 {
		return fmt.Errorf("%w: FLOCK_ACCESS_SECRET is required", ErrConfig)
	}
	if len(c.RefreshSecret) == 0 {
		return fmt.Errorf("%w: FLOCK_REFRESH_SECRET is required", ErrConfig)
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	}
	return nil
}
