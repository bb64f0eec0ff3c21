package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrFraming marks frames whose fields disagree with what the stream
	// actually delivered, such as a truncated nonce, length or ciphertext.
	ErrFraming = errors.New("protocol: framing error")
	// ErrTransport marks I/O failures of the underlying stream.
	ErrTransport = errors.New("protocol: transport error")

	ErrFrameTooLarge = fmt.Errorf("%w: ciphertext exceeds %d bytes", ErrFraming, MaxCiphertext)
)

// EncodeFrame serializes f as nonce || length || ciphertext.
// The caller must make sure f.Validate() holds; frames produced by a
// SecureChannel always do.
func EncodeFrame(f Frame) []byte {
	out := make([]byte, f.Size())
	copy(out, f.Nonce[:])
	binary.BigEndian.PutUint16(out[NonceSize:HeaderSize], uint16(len(f.Ciphertext)))
	copy(out[HeaderSize:], f.Ciphertext)
	return out
}

// WriteFrame writes f to w in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if _, err := w.Write(EncodeFrame(f)); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrTransport, err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r.
//
// A stream that ends cleanly before the first byte of a frame yields io.EOF
// unwrapped, so callers can tell an orderly close from a broken frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var f Frame
	if _, err := io.ReadFull(r, f.Nonce[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, readError("nonce", err)
	}

	var lenBuf [LengthSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, readError("length", err)
	}

	n := binary.BigEndian.Uint16(lenBuf[:])
	f.Ciphertext = make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, f.Ciphertext); err != nil {
			return Frame{}, readError("ciphertext", err)
		}
	}
	return f, nil
}

func readError(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: stream closed while reading %s: %w", ErrFraming, field, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("%w: read %s: %w", ErrTransport, field, err)
}
