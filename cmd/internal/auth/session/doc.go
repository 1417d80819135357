// Package session implements flock's session-token core.
//
// It contains the token codec (signed, expiring access/refresh tokens with
// per-kind secrets) and the session manager that orchestrates registration,
// login, refresh rotation, logout, and access validation over the identity
// store. All sub-failures on the refresh and validation paths collapse into
// a single indistinguishable ErrInvalidSession before reaching callers.
package session
