// Package identity is flock's credential store boundary.
//
// It owns the Account model and the Store interface the session subsystem
// depends on: lookup by email/username/id plus field-level atomic updates of
// the refresh-token digest and the token version. Password and token
// hashing live elsewhere (cmd/security); this package persists opaque
// digests and never sees a plaintext secret.
package identity
