package session

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/TheusHen/dhchat/dhchat/crypto"
	"github.com/TheusHen/dhchat/dhchat/protocol"
)

const testTimeout = 5 * time.Second

type scriptConsole struct {
	lines    chan string
	messages chan string
	notices  chan string
}

func newScriptConsole() *scriptConsole {
	return &scriptConsole{
		lines:    make(chan string),
		messages: make(chan string, 16),
		notices:  make(chan string, 16),
	}
}

func (c *scriptConsole) ReadLine(ctx context.Context) (string, error) {
	select {
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *scriptConsole) ShowMessage(text string) error {
	c.messages <- text
	return nil
}

func (c *scriptConsole) ShowPrompt() error { return nil }

func (c *scriptConsole) Notice(text string) error {
	c.notices <- text
	return nil
}

func (c *scriptConsole) enter(t *testing.T, line string) {
	t.Helper()
	select {
	case c.lines <- line:
	case <-time.After(testTimeout):
		t.Fatalf("send loop did not read %q", line)
	}
}

func (c *scriptConsole) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.messages:
		if got != want {
			t.Fatalf("displayed %q, want %q", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("message %q never displayed", want)
	}
}

func securedPair(t *testing.T) (net.Conn, *crypto.SecureChannel, net.Conn, *crypto.SecureChannel) {
	t.Helper()
	a, b := tcpPair(t)
	sa, sb := handshakeBoth(t, a, b)
	ca, err := crypto.NewSecureChannel(&sa, crypto.KeyDerivationNone)
	if err != nil {
		t.Fatalf("NewSecureChannel: %v", err)
	}
	cb, err := crypto.NewSecureChannel(&sb, crypto.KeyDerivationNone)
	if err != nil {
		t.Fatalf("NewSecureChannel: %v", err)
	}
	return a, ca, b, cb
}

func runAsync(s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func waitRun(t *testing.T, name string, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(testTimeout):
		t.Fatalf("%s session did not terminate", name)
	}
	return nil
}

func TestSessionExchangeAndQuit(t *testing.T) {
	a, ca, b, cb := securedPair(t)
	conA, conB := newScriptConsole(), newScriptConsole()
	sessA := New(a, ca, conA, Options{})
	sessB := New(b, cb, conB, Options{})
	doneA, doneB := runAsync(sessA), runAsync(sessB)

	conA.enter(t, "hello")
	conB.expect(t, "hello")
	conB.enter(t, "hi there")
	conA.expect(t, "hi there")
	conA.enter(t, "")
	conB.expect(t, "")

	conB.enter(t, "  quit ")
	if err := waitRun(t, "B", doneB); err != nil {
		t.Fatalf("B Run: %v", err)
	}
	if err := waitRun(t, "A", doneA); err != nil {
		t.Fatalf("A Run: %v", err)
	}

	if sessA.State() != StateClosed || sessB.State() != StateClosed {
		t.Fatalf("states = %v, %v", sessA.State(), sessB.State())
	}
	if sessA.Sent() != 2 || sessB.Received() != 2 || sessB.Sent() != 1 || sessA.Received() != 1 {
		t.Fatalf("counters: A sent %d recv %d, B sent %d recv %d",
			sessA.Sent(), sessA.Received(), sessB.Sent(), sessB.Received())
	}
	select {
	case n := <-conA.notices:
		if n != "Connection closed." {
			t.Fatalf("notice %q", n)
		}
	default:
		t.Fatalf("A was not told the connection closed")
	}
}

func TestSessionOrderWithinDirection(t *testing.T) {
	a, ca, b, cb := securedPair(t)
	conA, conB := newScriptConsole(), newScriptConsole()
	doneA := runAsync(New(a, ca, conA, Options{QuitCommand: "/bye"}))
	doneB := runAsync(New(b, cb, conB, Options{QuitCommand: "/exit"}))

	for _, m := range []string{"one", "two", "three", "quit"} {
		conA.enter(t, m)
	}
	for _, m := range []string{"one", "two", "three", "quit"} {
		conB.expect(t, m)
	}
	conB.enter(t, "/exit")
	if err := waitRun(t, "B", doneB); err != nil {
		t.Fatalf("B Run: %v", err)
	}
	if err := waitRun(t, "A", doneA); err != nil {
		t.Fatalf("A Run: %v", err)
	}
}

func TestSessionConsoleEOF(t *testing.T) {
	a, ca, b, cb := securedPair(t)
	conA, conB := newScriptConsole(), newScriptConsole()
	doneA := runAsync(New(a, ca, conA, Options{}))
	doneB := runAsync(New(b, cb, conB, Options{}))

	close(conA.lines)
	if err := waitRun(t, "A", doneA); err != nil {
		t.Fatalf("A Run: %v", err)
	}
	if err := waitRun(t, "B", doneB); err != nil {
		t.Fatalf("B Run: %v", err)
	}
}

func TestSessionTamperedFrame(t *testing.T) {
	a, ca, b, cb := securedPair(t)
	conB := newScriptConsole()
	doneB := runAsync(New(b, cb, conB, Options{}))

	f, err := ca.Seal([]byte("genuine"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := protocol.WriteFrame(a, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	conB.expect(t, "genuine")

	f, _ = ca.Seal([]byte("forged"))
	f.Ciphertext[0] ^= 0x01
	if err := protocol.WriteFrame(a, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	err = waitRun(t, "B", doneB)
	if !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	select {
	case m := <-conB.messages:
		t.Fatalf("forged message displayed: %q", m)
	default:
	}
}

func TestSessionTruncatedFrame(t *testing.T) {
	a, ca, b, cb := securedPair(t)
	doneB := runAsync(New(b, cb, newScriptConsole(), Options{}))

	f, _ := ca.Seal([]byte("cut short"))
	wire := protocol.EncodeFrame(f)
	if _, err := a.Write(wire[:len(wire)-3]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = a.Close()

	if err := waitRun(t, "B", doneB); !errors.Is(err, protocol.ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestSessionRunOnce(t *testing.T) {
	a, ca, _, _ := securedPair(t)
	s := New(a, ca, newScriptConsole(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrSessionUsed) {
		t.Fatalf("expected ErrSessionUsed, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateActive: "ACTIVE", StateClosing: "CLOSING", StateClosed: "CLOSED", State(9): "UNKNOWN"} {
		if s.String() != want {
			t.Fatalf("%d.String() = %q", int(s), s.String())
		}
	}
}
