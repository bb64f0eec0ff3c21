package crypto

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/TheusHen/dhchat/dhchat/protocol"
)

var (
	// ErrCrypto is the category of every sealing and opening failure.
	ErrCrypto = errors.New("crypto: channel error")

	ErrMessageTooLarge      = fmt.Errorf("%w: plaintext exceeds %d bytes", ErrCrypto, protocol.MaxPlaintext)
	ErrAuthenticationFailed = fmt.Errorf("%w: message authentication failed", ErrCrypto)
	ErrInvalidUTF8          = fmt.Errorf("%w: decrypted message is not valid UTF-8", ErrCrypto)
	ErrEmptySecret          = fmt.Errorf("%w: shared secret is empty", ErrCrypto)
)

// SecureChannel seals and opens frames under a single ChaCha20-Poly1305 key.
//
// Each Seal draws a fresh random nonce, so the channel holds no mutable
// state and both directions can use it concurrently. Each peer only seals
// its own outgoing messages; the two nonce streams never need coordination.
type SecureChannel struct {
	aead cipher.AEAD
	kd   KeyDerivation
}

// NewSecureChannel keys a channel from secret and then wipes secret, so the
// channel is the only holder of the key material.
func NewSecureChannel(secret *SharedSecret, kd KeyDerivation) (*SecureChannel, error) {
	defer secret.Destroy()
	if secret.isZero() {
		return nil, ErrEmptySecret
	}

	key, err := kd.channelKey(secret)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &SecureChannel{aead: aead, kd: kd}, nil
}

// Seal encrypts and authenticates plaintext under a fresh random nonce.
// No additional data is authenticated.
func (c *SecureChannel) Seal(plaintext []byte) (protocol.Frame, error) {
	if len(plaintext) > protocol.MaxPlaintext {
		return protocol.Frame{}, ErrMessageTooLarge
	}
	var f protocol.Frame
	if _, err := io.ReadFull(randReader, f.Nonce[:]); err != nil {
		return protocol.Frame{}, fmt.Errorf("%w: nonce generation: %w", ErrCrypto, err)
	}
	f.Ciphertext = c.aead.Seal(nil, f.Nonce[:], plaintext, nil)
	return f, nil
}

// Open verifies and decrypts a frame. Any tag mismatch, including a
// ciphertext too short to hold a tag, is ErrAuthenticationFailed; no
// partial plaintext is ever returned.
func (c *SecureChannel) Open(f protocol.Frame) ([]byte, error) {
	if len(f.Ciphertext) < c.aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}
	plaintext, err := c.aead.Open(nil, f.Nonce[:], f.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// OpenText opens a frame and checks that the message is valid UTF-8.
func (c *SecureChannel) OpenText(f protocol.Frame) (string, error) {
	plaintext, err := c.Open(f)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", ErrInvalidUTF8
	}
	return string(plaintext), nil
}

// Overhead returns the authentication tag overhead.
func (c *SecureChannel) Overhead() int { return c.aead.Overhead() }

// KeyDerivation returns how the channel key was obtained from the secret.
func (c *SecureChannel) KeyDerivation() KeyDerivation { return c.kd }
