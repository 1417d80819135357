package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"flock/cmd/identity"
	"flock/cmd/security/password"
)

// testHasher returns an Argon2id config cheap enough for unit tests.
func testHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

type fixture struct {
	svc   *Service
	store *identity.InMemoryStore
	base  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AccessSecret = []byte("access-secret-for-tests")
	cfg.RefreshSecret = []byte("refresh-secret-for-tests")
	cfg.ClockSkew = 0

	codec, err := NewJWTCodec(cfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}

	store := identity.NewInMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := NewService(cfg, store, codec, testHasher(), log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return &fixture{svc: svc, store: store, base: base}
}

// advance moves the service clock to base+d.
func (f *fixture) advance(d time.Duration) {
	at := f.base.Add(d)
	f.svc.now = func() time.Time { return at }
}

func (f *fixture) register(t *testing.T, email, pw string) Auth {
	t.Helper()
	auth, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return auth
}

func TestRegisterThenValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "ada@example.com", "correct horse battery")
	if auth.Tokens.AccessToken == "" || auth.Tokens.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if auth.Tokens.AccessToken == auth.Tokens.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	id, err := f.svc.ValidateAccess(ctx, auth.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id.AccountID != auth.Account.ID {
		t.Fatalf("AccountID = %q, want %q", id.AccountID, auth.Account.ID)
	}
	if id.Email != "ada@example.com" {
		t.Fatalf("Email = %q", id.Email)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "ada@example.com", "correct horse battery")
	_, err := f.svc.Register(ctx, RegisterInput{Email: "Ada@Example.com", Password: "another password"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, email := range []string{"", "   ", "no-at-sign"} {
		if _, err := f.svc.Register(ctx, RegisterInput{Email: email, Password: "some password"}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Register(%q): err = %v, want ErrInvalidInput", email, err)
		}
	}
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "ada@example.com", "correct horse battery")

	_, errWrongPw := f.svc.Login(ctx, "ada@example.com", "wrong password")
	_, errNoAcct := f.svc.Login(ctx, "nobody@example.com", "wrong password")

	if !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", errWrongPw)
	}
	if !errors.Is(errNoAcct, ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v, want ErrInvalidCredentials", errNoAcct)
	}
	if errWrongPw.Error() != errNoAcct.Error() {
		t.Fatalf("error messages differ: %q vs %q", errWrongPw, errNoAcct)
	}
}

func TestLoginSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "ada@example.com", "correct horse battery")

	auth, err := f.svc.Login(ctx, "ADA@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := f.svc.ValidateAccess(ctx, auth.Tokens.AccessToken); err != nil {
		t.Fatalf("ValidateAccess after login: %v", err)
	}
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "ada@example.com", "correct horse battery")
	first := auth.Tokens.RefreshToken

	f.advance(time.Minute)
	rotated, err := f.svc.Refresh(ctx, first)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.Tokens.RefreshToken == first {
		t.Fatal("rotation returned the same refresh token")
	}

	// The consumed token must stop working even though it is unexpired.
	if _, err := f.svc.Refresh(ctx, first); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("replayed refresh: err = %v, want ErrInvalidSession", err)
	}

	// The rotated one works exactly once more.
	f.advance(2 * time.Minute)
	if _, err := f.svc.Refresh(ctx, rotated.Tokens.RefreshToken); err != nil {
		t.Fatalf("Refresh with rotated token: %v", err)
	}
}

func TestRefreshRotatesWithoutClockAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Refresh immediately after issuance, clock frozen: rotation must
	// still produce a different token and kill the presented one.
	auth := f.register(t, "ada@example.com", "correct horse battery")

	rotated, err := f.svc.Refresh(ctx, auth.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.Tokens.RefreshToken == auth.Tokens.RefreshToken {
		t.Fatal("immediate refresh returned the presented token")
	}
	if _, err := f.svc.Refresh(ctx, auth.Tokens.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("replayed refresh: err = %v, want ErrInvalidSession", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "ada@example.com", "correct horse battery")

	f.advance(7*24*time.Hour + time.Minute)
	if _, err := f.svc.Refresh(ctx, auth.Tokens.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expired refresh: err = %v, want ErrInvalidSession", err)
	}
}

func TestRefreshGarbageInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tok := range []string{"", "   ", "garbage", string(make([]byte, maxTokenLength+1))} {
		if _, err := f.svc.Refresh(ctx, tok); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("Refresh(garbage): err = %v, want ErrInvalidSession", err)
		}
	}
}

func TestLoginReplacesRefreshSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "ada@example.com", "correct horse battery")

	f.advance(time.Minute)
	relogin, err := f.svc.Login(ctx, "ada@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Only the latest refresh token is honored.
	if _, err := f.svc.Refresh(ctx, auth.Tokens.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("stale refresh after re-login: err = %v, want ErrInvalidSession", err)
	}
	if _, err := f.svc.Refresh(ctx, relogin.Tokens.RefreshToken); err != nil {
		t.Fatalf("latest refresh: %v", err)
	}
}

func TestLogoutRevokesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "ada@example.com", "correct horse battery")

	if err := f.svc.Logout(ctx, auth.Account.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Unexpired access token is now version-stale.
	if _, err := f.svc.ValidateAccess(ctx, auth.Tokens.AccessToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("access after logout: err = %v, want ErrInvalidSession", err)
	}
	// Refresh is dead too.
	if _, err := f.svc.Refresh(ctx, auth.Tokens.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("refresh after logout: err = %v, want ErrInvalidSession", err)
	}

	// Logging back in issues tokens under the new version.
	again, err := f.svc.Login(ctx, "ada@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login after logout: %v", err)
	}
	id, err := f.svc.ValidateAccess(ctx, again.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess after re-login: %v", err)
	}
	if id.TokenVersion != 1 {
		t.Fatalf("TokenVersion = %d, want 1", id.TokenVersion)
	}
}

func TestLogoutUnknownAccount(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Logout(context.Background(), "no-such-id"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestValidateAccessLifetime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "ada@example.com", "correct horse battery")

	f.advance(29 * time.Minute)
	if _, err := f.svc.ValidateAccess(ctx, auth.Tokens.AccessToken); err != nil {
		t.Fatalf("ValidateAccess at 29m: %v", err)
	}

	f.advance(31 * time.Minute)
	if _, err := f.svc.ValidateAccess(ctx, auth.Tokens.AccessToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("ValidateAccess at 31m: err = %v, want ErrInvalidSession", err)
	}
}

func TestValidateAccessDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.AccessSecret = []byte("access-secret-for-tests")
	cfg.RefreshSecret = []byte("refresh-secret-for-tests")
	codec, err := NewJWTCodec(cfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	tok, err := codec.Issue(KindAccess, "ghost-id", "ghost@example.com", 0, f.base)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := f.svc.ValidateAccess(ctx, tok); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

// Full lifecycle: register, refresh, logout, login again.
func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := f.register(t, "grace@example.com", "compilers & carriers")

	f.advance(10 * time.Minute)
	rotated, err := f.svc.Refresh(ctx, auth.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := f.svc.ValidateAccess(ctx, rotated.Tokens.AccessToken); err != nil {
		t.Fatalf("ValidateAccess on rotated access: %v", err)
	}

	if err := f.svc.Logout(ctx, auth.Account.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, rotated.Tokens.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("refresh after logout: err = %v, want ErrInvalidSession", err)
	}

	again, err := f.svc.Login(ctx, "grace@example.com", "compilers & carriers")
	if err != nil {
		t.Fatalf("Login after logout: %v", err)
	}
	if _, err := f.svc.ValidateAccess(ctx, again.Tokens.AccessToken); err != nil {
		t.Fatalf("ValidateAccess after re-login: %v", err)
	}
}
