package identity

import (
	"context"
	"time"
)

// Account is flock's canonical security principal.
//
// RefreshTokenHash holds the digest of the most recently issued, still-valid
// refresh token, or "" when the account has no active session. TokenVersion
// starts at 0 and is bumped only by logout/revoke-all; every token carries
// the version it was minted under, so a bump invalidates all outstanding
// tokens at verification time.
type Account struct {
	ID           string
	Email        string
	EmailNorm    string
	Username     *string
	UsernameNorm *string

	PasswordHash     string
	RefreshTokenHash string
	TokenVersion     int

	CreatedAt time.Time
}

// HasActiveSession reports whether a refresh-token digest is on record.
func (a Account) HasActiveSession() bool { return a.RefreshTokenHash != "" }

// CreateAccountInput describes a registration insert.
// PasswordHash must already be an encoded password digest; this layer never
// accepts plaintext credentials.
type CreateAccountInput struct {
	Email        string
	Username     *string
	PasswordHash string
	Now          time.Time
}

// Store is the credential persistence boundary consumed by the session
// subsystem.
//
// Mutations are field-level and atomic: a single conditional statement per
// call, never read-modify-write across round trips, so concurrent
// login/refresh/logout cannot interleave into lost updates.
type Store interface {
	// CreateAccount inserts a new account with TokenVersion 0 and no
	// refresh digest. Email (and username, when present) must be unique;
	// violations surface as ConflictError.
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)

	// FindByID loads an account by id. Missing -> ErrNotFound.
	FindByID(ctx context.Context, id string) (Account, error)

	// FindByEmail loads an account by normalized email. Missing -> ErrNotFound.
	FindByEmail(ctx context.Context, email string) (Account, error)

	// FindByEmailOrUsername loads the first account matching either the
	// normalized email or, when username is non-nil, the normalized
	// username. Missing -> ErrNotFound. Used for pre-insert collision checks.
	FindByEmailOrUsername(ctx context.Context, email string, username *string) (Account, error)

	// UpdateRefreshHash replaces the stored refresh-token digest wholesale.
	// An empty digest clears the active session. Missing id -> ErrNotFound.
	UpdateRefreshHash(ctx context.Context, id string, digest string) error

	// IncrementTokenVersion atomically bumps token_version by one.
	// Missing id -> ErrNotFound.
	IncrementTokenVersion(ctx context.Context, id string) error
}
