// Package token provides digest primitives for refresh tokens at rest.
//
// A refresh token is a bearer secret: the database must never hold a usable
// copy. This package is the single source of truth for how flock derives the
// stored digest from a token string:
//
//   - HMAC-SHA256(token, key) when FLOCK_TOKEN_HMAC_KEY is configured.
//   - SHA-256(token) as a dev fallback when no key is present.
//
// Output is always a 64-char hex string. Comparisons against stored digests
// must go through EqualHex, which is constant-time.
package token
