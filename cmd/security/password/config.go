package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, reject a small set of trivially guessable patterns.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
// Its zero value is not usable; start from DefaultConfig or FromEnv.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a baseline tuned for interactive logins.
// Parallelism follows the host CPU count, clamped to [1..4] so resource
// usage stays predictable in containers.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables, starting from defaults.
// A variable that is unset or empty after trimming whitespace keeps the
// default; only non-empty values are parsed and validated.
//
// Env surface:
//   - FLOCK_PASSWORD_MIN_LEN
//   - FLOCK_PASSWORD_MAX_LEN
//   - FLOCK_PASSWORD_REJECT_VERY_WEAK (true/false)
//   - FLOCK_ARGON2_MEMORY_KIB
//   - FLOCK_ARGON2_ITERATIONS
//   - FLOCK_ARGON2_PARALLELISM
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("FLOCK_PASSWORD_MIN_LEN")); v != "" {
		n, err := envInt(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("FLOCK_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v := strings.TrimSpace(os.Getenv("FLOCK_PASSWORD_MAX_LEN")); v != "" {
		n, err := envInt(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("FLOCK_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v := strings.TrimSpace(os.Getenv("FLOCK_PASSWORD_REJECT_VERY_WEAK")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("FLOCK_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if v := strings.TrimSpace(os.Getenv("FLOCK_ARGON2_MEMORY_KIB")); v != "" {
		u, err := envUint32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("FLOCK_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = u
	}

	if v := strings.TrimSpace(os.Getenv("FLOCK_ARGON2_ITERATIONS")); v != "" {
		u, err := envUint32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("FLOCK_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = u
	}

	if v := strings.TrimSpace(os.Getenv("FLOCK_ARGON2_PARALLELISM")); v != "" {
		u, err := envUint32(v, 1, 255)
		if err != nil {
			return Config{}, fmt.Errorf("FLOCK_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = uint8(u) // #nosec G115 -- bounded to [1..255] above.
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func envInt(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func envUint32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
