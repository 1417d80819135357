// Package password provides password hashing and verification for flock.
//
// Hashing is Argon2id with a fresh random salt per call, encoded as a
// PHC-style string. Two hashes of the same password therefore never match.
// Verification recomputes the key from the encoded parameters and compares
// in constant time; malformed or oversized hash strings are rejected before
// any key derivation (hashes are untrusted input during Verify).
package password
