package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeyDerivation selects how the AEAD key is obtained from the shared secret.
// Both peers must use the same mode or every frame fails authentication.
type KeyDerivation int

const (
	// KeyDerivationNone uses the raw X25519 output as the key. This is the
	// wire-compatible default; the raw output is not uniformly random, so
	// prefer KeyDerivationHKDF when both ends support it.
	KeyDerivationNone KeyDerivation = iota
	// KeyDerivationHKDF runs the secret through HKDF-SHA256.
	KeyDerivationHKDF
)

// channelKeyInfo binds HKDF output to this protocol and version.
const channelKeyInfo = "dhchat/v1 channel key"

func (kd KeyDerivation) String() string {
	switch kd {
	case KeyDerivationNone:
		return "none"
	case KeyDerivationHKDF:
		return "hkdf"
	default:
		return "unknown"
	}
}

// ParseKeyDerivation parses the names returned by KeyDerivation.String.
func ParseKeyDerivation(s string) (KeyDerivation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "raw":
		return KeyDerivationNone, nil
	case "hkdf":
		return KeyDerivationHKDF, nil
	default:
		return 0, fmt.Errorf("crypto: unknown key derivation %q", s)
	}
}

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hk := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (kd KeyDerivation) channelKey(secret *SharedSecret) ([]byte, error) {
	switch kd {
	case KeyDerivationNone:
		key := make([]byte, KeySize)
		copy(key, secret.key[:])
		return key, nil
	case KeyDerivationHKDF:
		return DeriveKey(secret.key[:], nil, []byte(channelKeyInfo), KeySize)
	default:
		return nil, fmt.Errorf("%w: unknown key derivation %d", ErrCrypto, int(kd))
	}
}
