// Package console implements the interactive text console of a dhchat
// session on top of plain readers and writers.
package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/TheusHen/dhchat/dhchat/protocol"
)

const (
	DefaultPeerLabel = "Friend"
	DefaultPrompt    = "You: "
)

// Option customises a Console.
type Option func(*Console)

// WithPeerLabel sets the label printed in front of incoming messages.
func WithPeerLabel(label string) Option {
	return func(c *Console) { c.peerLabel = label }
}

// WithPrompt sets the input prompt.
func WithPrompt(prompt string) Option {
	return func(c *Console) { c.prompt = prompt }
}

// MaxLineSize bounds a single input line. It is larger than a frame so the
// session, not the console, reports a message that does not fit.
const MaxLineSize = 4 * protocol.MaxCiphertext

// ErrLineTooLong is returned for an input line above MaxLineSize. The line
// is discarded and reading continues with the next one.
var ErrLineTooLong = errors.New("console: input line too long")

type line struct {
	text string
	err  error
}

// Console reads lines from in and renders messages to out.
//
// A single goroutine reads in for the lifetime of the Console, so a session
// that ends while the user is typing does not steal the next line from the
// session that follows it.
type Console struct {
	in        io.Reader
	peerLabel string
	prompt    string

	mu  sync.Mutex
	out io.Writer

	once  sync.Once
	lines chan line
	done  chan struct{}
	err   error

	heldMu sync.Mutex
	held   []line
}

// New creates a console over in and out, typically os.Stdin and os.Stdout.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		in:        in,
		out:       out,
		peerLabel: DefaultPeerLabel,
		prompt:    DefaultPrompt,
		lines:     make(chan line),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) readLoop() {
	defer close(c.done)
	r := bufio.NewReader(c.in)
	for {
		text, err := readLine(r)
		if err == nil || errors.Is(err, ErrLineTooLong) {
			c.lines <- line{text: text, err: err}
			continue
		}
		c.err = err
		return
	}
}

// readLine returns the next line without its "\n" or "\r\n" terminator. A
// final line without terminator is returned as is; io.EOF means no more
// input at all.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(trimEOL(buf)) > MaxLineSize {
				tooLong, buf = true, nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !tooLong && len(buf) == 0 {
				return "", io.EOF
			}
		case err != nil:
			return "", err
		}
		if tooLong {
			return "", ErrLineTooLong
		}
		return string(trimEOL(buf)), nil
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

// ReadLine returns the next input line. It returns io.EOF once input is
// exhausted and ErrLineTooLong for a line above MaxLineSize. When it
// returns ctx.Err(), no line has been consumed: a line that arrives as ctx
// ends stays queued for the next call.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.once.Do(func() { go c.readLoop() })
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l, ok := c.unhold(); ok {
		return l.text, l.err
	}
	select {
	case l := <-c.lines:
		if err := ctx.Err(); err != nil {
			c.hold(l)
			return "", err
		}
		return l.text, l.err
	case <-c.done:
		return "", c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Console) hold(l line) {
	c.heldMu.Lock()
	defer c.heldMu.Unlock()
	c.held = append(c.held, l)
}

func (c *Console) unhold() (line, bool) {
	c.heldMu.Lock()
	defer c.heldMu.Unlock()
	if len(c.held) == 0 {
		return line{}, false
	}
	l := c.held[0]
	c.held = c.held[1:]
	return l, true
}

// ShowMessage prints an incoming message and re-renders the prompt.
func (c *Console) ShowMessage(text string) error {
	return c.printf("\r%s: %s\n%s", c.peerLabel, text, c.prompt)
}

// ShowPrompt renders the input prompt.
func (c *Console) ShowPrompt() error {
	return c.printf("\r%s", c.prompt)
}

// Notice prints a status line.
func (c *Console) Notice(text string) error {
	return c.printf("\r%s\n", text)
}

func (c *Console) printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, format, args...)
	return err
}
