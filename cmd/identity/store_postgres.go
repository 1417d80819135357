package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flock/cmd/identity/ids"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are quoted to avoid injection via identifiers.
//   - UpdateRefreshHash and IncrementTokenVersion are single UPDATE
//     statements; the database serializes them per row.
//   - Errors are mapped to identity sentinel kinds where appropriate.
//
// Expected table (schema managed externally):
//
//	accounts(
//	    id text primary key,
//	    email text not null,
//	    email_norm text not null,        -- unique: uq_accounts_email_norm
//	    username text,
//	    username_norm text,              -- unique: uq_accounts_username_norm
//	    password_hash text not null,
//	    refresh_token_hash text not null default '',
//	    token_version integer not null default 0,
//	    created_at timestamptz not null
//	)
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "flock").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "flock",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const accountColumns = `
	id, email, email_norm, username, username_norm,
	password_hash, refresh_token_hash, token_version, created_at`

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
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
	var usernameNorm *string
	if username != nil {
		n := NormalizeUsername(*username)
		usernameNorm = &n
	}
	emailNorm := NormalizeEmail(email)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Account{}, err
	}

	accounts := pgIdent(s.schema, "accounts")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (
		     id, email, email_norm, username, username_norm,
		     password_hash, refresh_token_hash, token_version, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, '', 0, $7)`,
		id, email, emailNorm, username, usernameNorm, in.PasswordHash, now,
	)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}

	return Account{
		ID:           id,
		Email:        email,
		EmailNorm:    emailNorm,
		Username:     username,
		UsernameNorm: usernameNorm,
		PasswordHash: in.PasswordHash,
		TokenVersion: 0,
		CreatedAt:    now,
	}, nil
}

// FindByID loads an account by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindByID"

	if strings.TrimSpace(id) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id"}
	}

	accounts := pgIdent(s.schema, "accounts")
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE id = $1`, id)

	return scanAccount(row, op)
}

// FindByEmail loads an account by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.FindByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing email"}
	}

	accounts := pgIdent(s.schema, "accounts")
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE email_norm = $1`, norm)

	return scanAccount(row, op)
}

// FindByEmailOrUsername loads the first account matching either identifier.
func (s *PostgresStore) FindByEmailOrUsername(ctx context.Context, email string, username *string) (Account, error) {
	const op = "identity.FindByEmailOrUsername"

	emailNorm := NormalizeEmail(email)
	accounts := pgIdent(s.schema, "accounts")

	if u := trimPtr(username); u != nil {
		usernameNorm := NormalizeUsername(*u)
		row := s.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM `+accounts+`
			 WHERE email_norm = $1 OR username_norm = $2
			 LIMIT 1`, emailNorm, usernameNorm)
		return scanAccount(row, op)
	}

	if emailNorm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing identifier"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE email_norm = $1 LIMIT 1`, emailNorm)
	return scanAccount(row, op)
}

// UpdateRefreshHash replaces the stored refresh-token digest wholesale.
func (s *PostgresStore) UpdateRefreshHash(ctx context.Context, id string, digest string) error {
	const op = "identity.UpdateRefreshHash"

	if strings.TrimSpace(id) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id"}
	}

	accounts := pgIdent(s.schema, "accounts")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+` SET refresh_token_hash = $2 WHERE id = $1`, id, digest)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

// IncrementTokenVersion bumps token_version by one in a single statement.
func (s *PostgresStore) IncrementTokenVersion(ctx context.Context, id string) error {
	const op = "identity.IncrementTokenVersion"

	if strings.TrimSpace(id) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id"}
	}

	accounts := pgIdent(s.schema, "accounts")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+` SET token_version = token_version + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

func scanAccount(row pgx.Row, op string) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.EmailNorm,
		&a.Username,
		&a.UsernameNorm,
		&a.PasswordHash,
		&a.RefreshTokenHash,
		&a.TokenVersion,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// trimPtr trims a string pointer, returning nil if the result is empty.
func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_accounts_email_norm":
		return "email", true
	case "uq_accounts_username_norm":
		return "username", true
	default:
		switch {
		case strings.Contains(c, "email"):
			return "email", true
		case strings.Contains(c, "username"):
			return "username", true
		default:
			return "unique", true
		}
	}
}
