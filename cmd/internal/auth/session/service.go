package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"flock/cmd/identity"
	"flock/cmd/security/token"
)

const maxTokenLength = 4096

// PasswordHasher abstracts the credential hashing scheme.
// Verify must be constant-time over the decoded digest and must return
// (false, nil) on mismatch, reserving the error for malformed hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
}

// TokenPair bundles the two tokens handed to a client after a successful
// register, login, or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Auth is the result of an operation that establishes a session.
type Auth struct {
	Account identity.Account
	Tokens  TokenPair
}

// AccessIdentity is the authenticated principal extracted from a valid
// access token, confirmed against the current account state.
type AccessIdentity struct {
	AccountID    string
	Email        string
	TokenVersion int
}

// Service implements the credential and session-token lifecycle.
//
// All trust decisions live here: callers above (HTTP handlers) only map
// results to transport, and stores below only persist.
type Service struct {
	cfg    Config
	store  identity.Store
	codec  Codec
	hasher PasswordHasher
	log    *slog.Logger
	now    func() time.Time

	// dummyHash is verified against on login for unknown accounts so the
	// request costs a real hash computation either way.
	dummyHash string
}

// NewService wires a session service. The dummy hash is computed once at
// construction with the hasher's own parameters.
func NewService(cfg Config, store identity.Store, codec Codec, hasher PasswordHasher, log *slog.Logger) (*Service, error) {
	if err := cfg.ValidateSecrets(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	dummy, err := hasher.Hash("flock.dummy.credential.v1")
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		codec:     codec,
		hasher:    hasher,
		log:       log,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// RegisterInput carries plaintext registration credentials. The password
// never leaves this layer unhashed.
type RegisterInput struct {
	Email    string
	Username *string
	Password string
}

// Register creates an account and immediately establishes a session.
// Duplicate email or username -> ErrConflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Auth, error) {
	email := identity.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Auth{}, ErrInvalidInput
	}

	// Friendly pre-check; the store's unique constraints remain the
	// authority under concurrency.
	if _, err := s.store.FindByEmailOrUsername(ctx, in.Email, in.Username); err == nil {
		return Auth{}, ErrConflict
	} else if !identity.IsNotFound(err) {
		return Auth{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Auth{}, err
	}

	acct, err := s.store.CreateAccount(ctx, identity.CreateAccountInput{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Now:          s.now(),
	})
	if err != nil {
		if identity.IsConflict(err) {
			return Auth{}, ErrConflict
		}
		return Auth{}, err
	}

	s.log.Info("account registered", "account_id", acct.ID)
	return s.establishSession(ctx, acct)
}

// Login verifies credentials and establishes a session.
//
// Unknown email and wrong password both yield ErrInvalidCredentials, and
// both paths perform a full hash verification so their cost is comparable.
func (s *Service) Login(ctx context.Context, email, password string) (Auth, error) {
	acct, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			_, _ = s.hasher.Verify(s.dummyHash, password)
			return Auth{}, ErrInvalidCredentials
		}
		return Auth{}, err
	}

	ok, err := s.hasher.Verify(acct.PasswordHash, password)
	if err != nil || !ok {
		return Auth{}, ErrInvalidCredentials
	}

	s.log.Info("login", "account_id", acct.ID)
	return s.establishSession(ctx, acct)
}

// Refresh rotates a refresh token: the presented token must be the single
// stored one, carry the current token version, and be unexpired. On success
// a fresh pair is issued and the presented token stops working.
//
// Every failure collapses to ErrInvalidSession, including store errors.
// A refresh endpoint must fail closed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Auth, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > maxTokenLength {
		return Auth{}, ErrInvalidSession
	}

	claims, err := s.codec.Verify(KindRefresh, refreshToken, s.now())
	if err != nil {
		return Auth{}, ErrInvalidSession
	}

	acct, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		return Auth{}, ErrInvalidSession
	}

	if !acct.HasActiveSession() {
		return Auth{}, ErrInvalidSession
	}
	if !token.EqualHex(acct.RefreshTokenHash, token.DigestRefreshTokenHex(refreshToken)) {
		s.log.Warn("refresh token mismatch", "account_id", acct.ID)
		return Auth{}, ErrInvalidSession
	}
	if claims.TokenVersion != acct.TokenVersion {
		return Auth{}, ErrInvalidSession
	}

	auth, err := s.establishSession(ctx, acct)
	if err != nil {
		return Auth{}, ErrInvalidSession
	}
	return auth, nil
}

// Logout revokes all outstanding tokens for the account by bumping its
// token version and clearing the stored refresh digest. Idempotent for a
// live account; unknown id -> ErrAccountNotFound.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrAccountNotFound
	}
	if err := s.store.IncrementTokenVersion(ctx, accountID); err != nil {
		if identity.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	if err := s.store.UpdateRefreshHash(ctx, accountID, ""); err != nil && !identity.IsNotFound(err) {
		return err
	}
	s.log.Info("logout", "account_id", accountID)
	return nil
}

// ValidateAccess authenticates a bearer access token against current
// account state. Expired, tampered, or version-stale tokens and deleted
// accounts all yield ErrInvalidSession; unexpected store failures propagate
// so callers can distinguish an outage from a bad token.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (AccessIdentity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" || len(accessToken) > maxTokenLength {
		return AccessIdentity{}, ErrInvalidSession
	}

	claims, err := s.codec.Verify(KindAccess, accessToken, s.now())
	if err != nil {
		return AccessIdentity{}, ErrInvalidSession
	}

	acct, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			return AccessIdentity{}, ErrInvalidSession
		}
		return AccessIdentity{}, err
	}
	if claims.TokenVersion != acct.TokenVersion {
		return AccessIdentity{}, ErrInvalidSession
	}

	return AccessIdentity{
		AccountID:    acct.ID,
		Email:        acct.Email,
		TokenVersion: acct.TokenVersion,
	}, nil
}

// Account loads the current account record for an authenticated principal.
func (s *Service) Account(ctx context.Context, accountID string) (identity.Account, error) {
	acct, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, ErrAccountNotFound
		}
		return identity.Account{}, err
	}
	return acct, nil
}

// establishSession issues a token pair under the account's current version
// and persists the refresh digest, replacing any previous session wholesale.
func (s *Service) establishSession(ctx context.Context, acct identity.Account) (Auth, error) {
	now := s.now()

	access, err := s.codec.Issue(KindAccess, acct.ID, acct.Email, acct.TokenVersion, now)
	if err != nil {
		return Auth{}, err
	}
	refresh, err := s.codec.Issue(KindRefresh, acct.ID, acct.Email, acct.TokenVersion, now)
	if err != nil {
		return Auth{}, err
	}

	digest := token.DigestRefreshTokenHex(refresh)
	if err := s.store.UpdateRefreshHash(ctx, acct.ID, digest); err != nil {
		return Auth{}, err
	}
	acct.RefreshTokenHash = digest

	return Auth{
		Account: acct,
		Tokens:  TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}
