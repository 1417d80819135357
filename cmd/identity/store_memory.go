package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"flock/cmd/identity/ids"
)

// InMemoryStore is a dev/test fallback when no database is configured.
// It enforces the same uniqueness and atomicity contract as PostgresStore:
// every mutation happens under one lock acquisition, so there is no window
// for read-modify-write interleavings.
type InMemoryStore struct {
	mu         sync.Mutex
	byID       map[string]*Account
	byEmail    map[string]string // email_norm -> id
	byUsername map[string]string // username_norm -> id
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[string]*Account),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// CreateAccount inserts a new account, enforcing email/username uniqueness.
func (s *InMemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash is required"}
	}

	username := trimPtr(in.Username)
	emailNorm := NormalizeEmail(email)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[emailNorm]; exists {
		return Account{}, ConflictError{Op: op, Field: "email"}
	}

	var usernameNorm *string
	if username != nil {
		n := NormalizeUsername(*username)
		if _, exists := s.byUsername[n]; exists {
			return Account{}, ConflictError{Op: op, Field: "username"}
		}
		usernameNorm = &n
	}

	a := &Account{
		ID:           id,
		Email:        email,
		EmailNorm:    emailNorm,
		Username:     username,
		UsernameNorm: usernameNorm,
		PasswordHash: in.PasswordHash,
		TokenVersion: 0,
		CreatedAt:    now,
	}

	s.byID[id] = a
	s.byEmail[emailNorm] = id
	if usernameNorm != nil {
		s.byUsername[*usernameNorm] = id
	}

	return *a, nil
}

// FindByID loads an account by id.
func (s *InMemoryStore) FindByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindByID"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return *a, nil
}

// FindByEmail loads an account by normalized email.
func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.FindByEmail"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return *s.byID[id], nil
}

// FindByEmailOrUsername loads the first account matching either identifier.
func (s *InMemoryStore) FindByEmailOrUsername(ctx context.Context, email string, username *string) (Account, error) {
	const op = "identity.FindByEmailOrUsername"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byEmail[NormalizeEmail(email)]; ok {
		return *s.byID[id], nil
	}
	if u := trimPtr(username); u != nil {
		if id, ok := s.byUsername[NormalizeUsername(*u)]; ok {
			return *s.byID[id], nil
		}
	}
	return Account{}, NotFoundError{Op: op, Resource: "account"}
}

// UpdateRefreshHash replaces the stored refresh-token digest wholesale.
func (s *InMemoryStore) UpdateRefreshHash(ctx context.Context, id string, digest string) error {
	const op = "identity.UpdateRefreshHash"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	a.RefreshTokenHash = digest
	return nil
}

// IncrementTokenVersion bumps token_version by one under the store lock.
func (s *InMemoryStore) IncrementTokenVersion(ctx context.Context, id string) error {
	const op = "identity.IncrementTokenVersion"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	a.TokenVersion++
	return nil
}
