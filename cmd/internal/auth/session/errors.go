package session

import "errors"

var (
	// ErrConflict is returned by Register when the email or username is
	// already taken. No account is created and no tokens are issued.
	ErrConflict = errors.New("account already exists")

	// ErrInvalidCredentials is returned by Login for both "no such account"
	// and "wrong password". The two cases are indistinguishable to the
	// caller to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession is the uniform failure for Refresh and
	// ValidateAccess. Malformed, expired, forged, rotated-away, and
	// version-revoked tokens all surface as this one error.
	ErrInvalidSession = errors.New("invalid session")

	// ErrAccountNotFound is returned by Logout when the target account
	// does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidInput is returned for rejected registration input
	// (missing fields, password policy violations).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned for invalid session configuration.
	ErrConfig = errors.New("invalid session config")
)

// Codec-level errors. The codec reports these distinctly; the session
// manager collapses all of them into ErrInvalidSession before returning.
var (
	// ErrTokenExpired is returned when the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenBadSignature is returned when the signature does not verify
	// under the secret for the requested kind.
	ErrTokenBadSignature = errors.New("token signature invalid")

	// ErrTokenMalformed is returned when the token cannot be parsed or its
	// claims are structurally wrong.
	ErrTokenMalformed = errors.New("token malformed")
)
