package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

const (
	// KeySize is the size of X25519 scalars, points and shared secrets.
	KeySize = 32
)

var (
	ErrInvalidPublicKey  = fmt.Errorf("%w: invalid X25519 public key", ErrCrypto)
	ErrKeyPairDestroyed  = errors.New("crypto: key pair already destroyed")
	ErrInvalidSecretSize = fmt.Errorf("%w: shared secret must be %d bytes", ErrCrypto, KeySize)
)

// randReader is the entropy source for keys and nonces.
var randReader = rand.Reader

// noCopy makes go vet's copylocks check flag copies of the embedding struct.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// KeyPair is an ephemeral X25519 key pair. It lives for a single handshake:
// computing the shared secret wipes the private half.
type KeyPair struct {
	_         noCopy
	PublicKey [KeySize]byte
	private   [KeySize]byte
	destroyed bool
}

// GenerateKeyPair generates a new ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := io.ReadFull(randReader, kp.private[:]); err != nil {
		return nil, err
	}
	// Clamp private key per RFC 7748
	kp.private[0] &= 248
	kp.private[31] &= 127
	kp.private[31] |= 64

	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		kp.Destroy()
		return nil, err
	}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// SharedSecret computes X25519(own private, peer public) and destroys the
// private key. It can be called once.
func (kp *KeyPair) SharedSecret(peerPublicKey [KeySize]byte) (SharedSecret, error) {
	if kp.destroyed {
		return SharedSecret{}, ErrKeyPairDestroyed
	}
	defer kp.Destroy()

	var zero [KeySize]byte
	if peerPublicKey == zero {
		return SharedSecret{}, ErrInvalidPublicKey
	}
	// X25519 rejects low-order points by returning an error on an
	// all-zero output.
	shared, err := curve25519.X25519(kp.private[:], peerPublicKey[:])
	if err != nil {
		return SharedSecret{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	var s SharedSecret
	copy(s.key[:], shared)
	wipe(shared)
	return s, nil
}

// Destroy wipes the private key. It is safe to call more than once.
func (kp *KeyPair) Destroy() {
	wipe(kp.private[:])
	kp.destroyed = true
}

// SharedSecret is the 32-byte Diffie-Hellman output shared by both peers.
// Its formatted forms are redacted so it cannot end up in logs by accident.
type SharedSecret struct {
	key [KeySize]byte
}

// SharedSecretFromBytes builds a SharedSecret from raw key material.
func SharedSecretFromBytes(b []byte) (SharedSecret, error) {
	if len(b) != KeySize {
		return SharedSecret{}, ErrInvalidSecretSize
	}
	var s SharedSecret
	copy(s.key[:], b)
	return s, nil
}

// Equal compares two secrets in constant time.
func (s SharedSecret) Equal(other SharedSecret) bool {
	return subtle.ConstantTimeCompare(s.key[:], other.key[:]) == 1
}

// Fingerprint returns a short SHA-256 digest of the secret. Both peers get
// the same value and can compare it out of band.
func (s SharedSecret) Fingerprint() string {
	sum := sha256.Sum256(s.key[:])
	return hex.EncodeToString(sum[:8])
}

func (s SharedSecret) String() string   { return "SharedSecret(redacted)" }
func (s SharedSecret) GoString() string { return s.String() }

// Destroy wipes the secret.
func (s *SharedSecret) Destroy() { wipe(s.key[:]) }

func (s *SharedSecret) isZero() bool {
	var zero [KeySize]byte
	return subtle.ConstantTimeCompare(s.key[:], zero[:]) == 1
}

// wipe overwrites b with zeros.
func wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}
