package app

import (
	"strings"
	"testing"
)

func TestValidateSecurityConfig_PolicyDisabled(t *testing.T) {
	t.Setenv("FLOCK_TOKEN_HMAC_KEY", "")

	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: false}); err != nil {
		t.Fatalf("policy off: %v", err)
	}
}

func TestValidateSecurityConfig_MissingKey(t *testing.T) {
	t.Setenv("FLOCK_TOKEN_HMAC_KEY", "")

	err := ValidateSecurityConfig(Config{RequireTokenHMAC: true})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("err = %v, want missing-key policy error", err)
	}
}

func TestValidateSecurityConfig_ShortKey(t *testing.T) {
	t.Setenv("FLOCK_TOKEN_HMAC_KEY", "short")

	err := ValidateSecurityConfig(Config{RequireTokenHMAC: true})
	if err == nil || !strings.Contains(err.Error(), "too short") {
		t.Fatalf("err = %v, want short-key policy error", err)
	}
}

func TestValidateSecurityConfig_GoodKey(t *testing.T) {
	t.Setenv("FLOCK_TOKEN_HMAC_KEY", strings.Repeat("k", 32))

	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err != nil {
		t.Fatalf("valid key: %v", err)
	}
}
