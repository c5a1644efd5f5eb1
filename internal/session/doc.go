// Package session issues and validates signed session tokens.
//
// Tokens are HMAC-signed JWTs with a bounded lifetime. Every token also
// carries the process epoch, a nonce minted at service construction; after
// a restart the epoch changes and all previously issued tokens fail
// validation with ErrStaleSession. Callers are expected to treat that as
// "sign in again", not as an error condition.
package session
