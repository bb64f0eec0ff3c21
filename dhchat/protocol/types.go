package protocol

const (
	// NonceSize is the size of the per-message nonce carried in every frame.
	NonceSize = 12
	// LengthSize is the size of the big-endian ciphertext length field.
	LengthSize = 2
	// HeaderSize is the fixed part of a frame preceding the ciphertext.
	HeaderSize = NonceSize + LengthSize
	// TagSize is the AEAD authentication tag appended to every ciphertext.
	TagSize = 16

	// MaxCiphertext is the largest ciphertext the length field can describe.
	MaxCiphertext = 1<<16 - 1
	// MaxPlaintext is the largest plaintext that still fits in one frame.
	MaxPlaintext = MaxCiphertext - TagSize

	// PublicKeySize is the size of the raw X25519 public key exchanged
	// during the handshake.
	PublicKeySize = 32
)

// Frame is the wire unit of an established channel.
// Format:
//
//	12 bytes: nonce
//	 2 bytes: ciphertext length (big endian)
//	 N bytes: ciphertext (plaintext + 16 byte tag)
//
// There is no type byte, version or checksum; integrity of the whole frame
// rests on the AEAD tag.
type Frame struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// Validate reports whether the frame can be represented on the wire.
func (f Frame) Validate() error {
	if len(f.Ciphertext) > MaxCiphertext {
		return ErrFrameTooLarge
	}
	return nil
}

// Size returns the number of bytes the frame occupies on the wire.
func (f Frame) Size() int { return HeaderSize + len(f.Ciphertext) }
