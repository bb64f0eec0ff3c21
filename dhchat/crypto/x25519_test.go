package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestX25519Symmetry(t *testing.T) {
	for i := 0; i < 16; i++ {
		alice, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		bob, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}

		sharedAlice, err := alice.SharedSecret(bob.PublicKey)
		if err != nil {
			t.Fatalf("alice SharedSecret: %v", err)
		}
		sharedBob, err := bob.SharedSecret(alice.PublicKey)
		if err != nil {
			t.Fatalf("bob SharedSecret: %v", err)
		}
		if !sharedAlice.Equal(sharedBob) {
			t.Fatalf("shared secrets do not match")
		}
		if sharedAlice.Fingerprint() != sharedBob.Fingerprint() {
			t.Fatalf("fingerprints do not match")
		}
	}
}

func TestKeyPairDestroyedAfterUse(t *testing.T) {
	alice, _ := GenerateKeyPair()
	bob, _ := GenerateKeyPair()

	if _, err := alice.SharedSecret(bob.PublicKey); err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	if !bytes.Equal(alice.private[:], make([]byte, KeySize)) {
		t.Fatalf("private key not wiped after use")
	}
	if _, err := alice.SharedSecret(bob.PublicKey); !errors.Is(err, ErrKeyPairDestroyed) {
		t.Fatalf("expected ErrKeyPairDestroyed, got %v", err)
	}
}

func TestSharedSecretRejectsBadPeerKeys(t *testing.T) {
	var zero [KeySize]byte
	lowOrder := [KeySize]byte{1}

	for name, peer := range map[string][KeySize]byte{"zero": zero, "low-order": lowOrder} {
		kp, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		_, err = kp.SharedSecret(peer)
		if !errors.Is(err, ErrInvalidPublicKey) {
			t.Fatalf("%s: expected ErrInvalidPublicKey, got %v", name, err)
		}
		if !kp.destroyed {
			t.Fatalf("%s: key pair should be destroyed after a failed exchange", name)
		}
	}
}

func TestSharedSecretRedacted(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, KeySize)
	s, err := SharedSecretFromBytes(raw)
	if err != nil {
		t.Fatalf("SharedSecretFromBytes: %v", err)
	}
	out := fmt.Sprintf("%v %s %+v %#v", s, s, s, s)
	if bytes.Contains([]byte(out), []byte("abab")) || bytes.Contains([]byte(out), []byte("171")) {
		t.Fatalf("secret material leaked through formatting: %s", out)
	}
}

func TestSharedSecretFromBytesSize(t *testing.T) {
	if _, err := SharedSecretFromBytes(make([]byte, 31)); !errors.Is(err, ErrInvalidSecretSize) {
		t.Fatalf("expected ErrInvalidSecretSize, got %v", err)
	}
}

func TestSharedSecretDestroy(t *testing.T) {
	s, _ := SharedSecretFromBytes(bytes.Repeat([]byte{7}, KeySize))
	s.Destroy()
	if !s.isZero() {
		t.Fatalf("secret not wiped")
	}
}
