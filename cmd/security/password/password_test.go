package password

import (
	"errors"
	"testing"
)

// testConfig keeps Argon2id cheap so the suite stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrong password entirely")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	cfg := testConfig()

	h1, err := cfg.Hash("same password twice")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	h2, err := cfg.Hash("same password twice")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if h1 == h2 {
		t.Fatalf("two hashes of the same password are identical; salt not random")
	}

	// Both must still verify.
	for _, h := range []string{h1, h2} {
		ok, err := cfg.Verify(h, "same password twice")
		if err != nil || !ok {
			t.Fatalf("Verify(%q) = (%v, %v)", h, ok, err)
		}
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	cfg := testConfig()

	cases := []string{
		"",
		"not-a-hash",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5a2V5a2V5a2V5a2V5",
	}

	for _, bad := range cases {
		if _, err := cfg.Verify(bad, "whatever"); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("Verify(%q): got %v, want ErrInvalidHash", bad, err)
		}
	}
}

func TestVerify_RefusesOversizedParams(t *testing.T) {
	cfg := testConfig()

	// Hash generated under much larger (claimed) memory than our limits allow.
	oversized := "$argon2id$v=19$m=1048576,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5"
	if _, err := cfg.Verify(oversized, "pw"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("oversized params: got %v, want ErrInvalidHash", err)
	}
}

func TestValidate_Policy(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("just right 12!"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidate_RejectVeryWeak(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.MinLength = 6
	cfg.Policy.RejectVeryWeak = true

	for _, weak := range []string{"aaaaaaaa", "12345678", "password"} {
		if err := cfg.Validate(weak); err != ErrWeakPassword {
			t.Fatalf("Validate(%q): got %v, want ErrWeakPassword", weak, err)
		}
	}

	if err := cfg.Validate("zx!9 plausible"); err != nil {
		t.Fatalf("plausible password rejected: %v", err)
	}
}
