// Package dhchat is a two-party encrypted chat over a raw byte stream.
//
// A connection starts with an unauthenticated ephemeral X25519 exchange.
// The shared secret keys a ChaCha20-Poly1305 channel, and every message
// travels as one frame: a random nonce, a length and the ciphertext. Two
// loops then run side by side, one receiving and one sending, until the
// user quits, the peer hangs up or a frame fails to verify.
//
// Peer ties the pieces together over any transport.Transport; the tcp and
// quic subpackages provide the two built-in transports.
package dhchat
