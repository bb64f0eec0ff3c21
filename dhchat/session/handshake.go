package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/TheusHen/dhchat/dhchat/crypto"
	"github.com/TheusHen/dhchat/dhchat/protocol"
)

var (
	// ErrHandshake is the category of every key exchange failure.
	ErrHandshake = errors.New("session: handshake failed")
)

// HandshakeOptions tunes logging of the key exchange.
type HandshakeOptions struct {
	Logger *zap.Logger
}

type flusher interface {
	Flush() error
}

// Handshake performs an ephemeral X25519 exchange over rw and returns the
// shared secret.
//
// Both roles run the same sequence: write the 32-byte public key, flush,
// then read exactly 32 bytes of peer key. Neither side authenticates the
// other; the exchange is trust-on-first-use.
func Handshake(rw io.ReadWriter, opts HandshakeOptions) (crypto.SharedSecret, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return crypto.SharedSecret{}, fmt.Errorf("%w: generate key pair: %w", ErrHandshake, err)
	}
	defer kp.Destroy()

	if _, err := rw.Write(kp.PublicKey[:]); err != nil {
		return crypto.SharedSecret{}, fmt.Errorf("%w: send public key: %w", ErrHandshake, transportError(err))
	}
	if f, ok := rw.(flusher); ok {
		if err := f.Flush(); err != nil {
			return crypto.SharedSecret{}, fmt.Errorf("%w: flush public key: %w", ErrHandshake, transportError(err))
		}
	}
	log.Debug("public key sent", zap.String("public_key", hex.EncodeToString(kp.PublicKey[:])))

	var peer [protocol.PublicKeySize]byte
	n, err := io.ReadFull(rw, peer[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return crypto.SharedSecret{}, fmt.Errorf("%w: peer sent %d of %d public key bytes", ErrHandshake, n, protocol.PublicKeySize)
		}
		return crypto.SharedSecret{}, fmt.Errorf("%w: receive public key: %w", ErrHandshake, transportError(err))
	}
	log.Debug("peer public key received", zap.String("public_key", hex.EncodeToString(peer[:])))

	secret, err := kp.SharedSecret(peer)
	if err != nil {
		return crypto.SharedSecret{}, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return secret, nil
}

func transportError(err error) error {
	return fmt.Errorf("%w: %w", protocol.ErrTransport, err)
}
