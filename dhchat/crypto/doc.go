// Package crypto provides the cryptographic primitives of a dhchat channel.
//
// Design:
//   - Ephemeral X25519 key pairs, one per connection, wiped after use
//   - ChaCha20-Poly1305 (RFC 8439) with a fresh random 96-bit nonce per message
//   - The raw X25519 output is the AEAD key by default; HKDF-SHA256 can be
//     enabled when both peers agree on it
//   - A SecureChannel is immutable after construction and safe for
//     concurrent Seal and Open calls
package crypto
