package session

import (
	"errors"
	"testing"
	"time"
)

func testCodecConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessSecret = []byte("access-secret-for-tests")
	cfg.RefreshSecret = []byte("refresh-secret-for-tests")
	return cfg
}

func TestJWTCodec_RoundTrip(t *testing.T) {
	codec, err := NewJWTCodec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		tok, err := codec.Issue(kind, "acct-1", "a@example.com", 3, now)
		if err != nil {
			t.Fatalf("Issue(%s): %v", kind, err)
		}
		claims, err := codec.Verify(kind, tok, now.Add(time.Minute))
		if err != nil {
			t.Fatalf("Verify(%s): %v", kind, err)
		}
		if claims.Subject != "acct-1" {
			t.Fatalf("Subject = %q, want acct-1", claims.Subject)
		}
		if claims.Email != "a@example.com" {
			t.Fatalf("Email = %q, want a@example.com", claims.Email)
		}
		if claims.TokenVersion != 3 {
			t.Fatalf("TokenVersion = %d, want 3", claims.TokenVersion)
		}
	}
}

func TestJWTCodec_TokensUniquePerIssue(t *testing.T) {
	codec, err := NewJWTCodec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Same account, same instant: the tokens must still differ.
	first, err := codec.Issue(KindRefresh, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := codec.Issue(KindRefresh, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first == second {
		t.Fatal("two tokens issued at the same instant are identical")
	}

	c1, err := codec.Verify(KindRefresh, first, now)
	if err != nil {
		t.Fatalf("Verify first: %v", err)
	}
	c2, err := codec.Verify(KindRefresh, second, now)
	if err != nil {
		t.Fatalf("Verify second: %v", err)
	}
	if c1.ID == "" || c2.ID == "" {
		t.Fatal("expected a token id claim on both tokens")
	}
	if c1.ID == c2.ID {
		t.Fatalf("token ids collide: %q", c1.ID)
	}
}

func TestJWTCodec_KindsNotInterchangeable(t *testing.T) {
	codec, err := NewJWTCodec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	refresh, err := codec.Issue(KindRefresh, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue refresh: %v", err)
	}
	if _, err := codec.Verify(KindAccess, refresh, now); !errors.Is(err, ErrTokenBadSignature) {
		t.Fatalf("verifying refresh token as access: err = %v, want ErrTokenBadSignature", err)
	}

	access, err := codec.Issue(KindAccess, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue access: %v", err)
	}
	if _, err := codec.Verify(KindRefresh, access, now); !errors.Is(err, ErrTokenBadSignature) {
		t.Fatalf("verifying access token as refresh: err = %v, want ErrTokenBadSignature", err)
	}
}

func TestJWTCodec_Expiry(t *testing.T) {
	cfg := testCodecConfig()
	cfg.ClockSkew = 0
	codec, err := NewJWTCodec(cfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := codec.Issue(KindAccess, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// 29 minutes in: still valid against the 30 minute lifetime.
	if _, err := codec.Verify(KindAccess, tok, now.Add(29*time.Minute)); err != nil {
		t.Fatalf("Verify at 29m: %v", err)
	}
	// 31 minutes in: expired.
	if _, err := codec.Verify(KindAccess, tok, now.Add(31*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify at 31m: err = %v, want ErrTokenExpired", err)
	}
}

func TestJWTCodec_ClockSkewLeeway(t *testing.T) {
	cfg := testCodecConfig()
	cfg.ClockSkew = 30 * time.Second
	codec, err := NewJWTCodec(cfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := codec.Issue(KindAccess, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// 10 seconds past expiry falls inside the 30 second leeway.
	if _, err := codec.Verify(KindAccess, tok, now.Add(30*time.Minute+10*time.Second)); err != nil {
		t.Fatalf("Verify inside leeway: %v", err)
	}
}

func TestJWTCodec_Malformed(t *testing.T) {
	codec, err := NewJWTCodec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Now()

	for _, tok := range []string{"", "garbage", "aa.bb.cc"} {
		if _, err := codec.Verify(KindAccess, tok, now); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): err = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestJWTCodec_TamperedSignature(t *testing.T) {
	codec, err := NewJWTCodec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	now := time.Now()

	tok, err := codec.Issue(KindAccess, "acct-1", "a@example.com", 0, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tampered := tok[:len(tok)-2] + "xx"
	if _, err := codec.Verify(KindAccess, tampered, now); err == nil {
		t.Fatal("Verify of tampered token succeeded")
	}
}
