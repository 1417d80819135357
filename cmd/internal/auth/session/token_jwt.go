package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"flock/cmd/identity/ids"
)

// Kind distinguishes the two token flavors. Each kind is signed with its own
// secret, so verification with the wrong kind fails on signature.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims

	Email        string `json:"email"`
	TokenVersion int    `json:"tv"`
}

// Codec issues and verifies signed session tokens. The current time is
// passed explicitly so callers and tests control the clock.
type Codec interface {
	Issue(kind Kind, accountID, email string, tokenVersion int, now time.Time) (string, error)
	Verify(kind Kind, token string, now time.Time) (Claims, error)
}

// jwtCodec signs HS256 tokens with per-kind secrets from Config.
type jwtCodec struct {
	cfg Config
}

// NewJWTCodec returns a Codec backed by HMAC-SHA256 signatures.
func NewJWTCodec(cfg Config) (Codec, error) {
	if err := cfg.ValidateSecrets(); err != nil {
		return nil, err
	}
	return &jwtCodec{cfg: cfg}, nil
}

func (c *jwtCodec) secretAndTTL(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return c.cfg.AccessSecret, c.cfg.AccessTokenTTL, nil
	case KindRefresh:
		return c.cfg.RefreshSecret, c.cfg.RefreshTokenTTL, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown token kind %q", ErrConfig, kind)
	}
}

func (c *jwtCodec) Issue(kind Kind, accountID, email string, tokenVersion int, now time.Time) (string, error) {
	secret, ttl, err := c.secretAndTTL(kind)
	if err != nil {
		return "", err
	}

	jti, err := ids.NewULID(now)
	if err != nil {
		return "", fmt.Errorf("issue %s token id: %w", kind, err)
	}

	// The jti makes every issued token unique even when two are minted
	// within the same second (iat/exp have second precision). Rotation
	// depends on the new refresh token differing from the consumed one.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    c.cfg.Issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:        email,
		TokenVersion: tokenVersion,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (c *jwtCodec) Verify(kind Kind, token string, now time.Time) (Claims, error) {
	secret, _, err := c.secretAndTTL(kind)
	if err != nil {
		return Claims{}, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(c.cfg.ClockSkew),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrTokenBadSignature
		default:
			return Claims{}, ErrTokenMalformed
		}
	}
	if !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrTokenMalformed
	}
	return claims, nil
}
