package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TheusHen/dhchat/dhchat/crypto"
	"github.com/TheusHen/dhchat/dhchat/protocol"
)

// DefaultQuitCommand is the input line that ends a session.
const DefaultQuitCommand = "quit"

var (
	ErrSessionUsed = errors.New("session: already run")
)

// Console is the local user side of a session. ReadLine must return io.EOF
// once input is exhausted and ctx.Err() once ctx is done. Implementations
// must tolerate ShowMessage and ShowPrompt being called from different
// goroutines.
type Console interface {
	ReadLine(ctx context.Context) (string, error)
	ShowMessage(text string) error
	ShowPrompt() error
	Notice(text string) error
}

// State is the lifecycle of a Session.
type State int32

const (
	StateActive State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Options configures a Session.
type Options struct {
	// QuitCommand ends the session when typed on its own line.
	// Defaults to DefaultQuitCommand.
	QuitCommand string
	Logger      *zap.Logger
}

// Session runs the two message loops of an established channel.
// The receive loop owns the read side of the stream and the send loop owns
// the write side; the only thing they share is the immutable SecureChannel.
type Session struct {
	stream  io.ReadWriteCloser
	channel *crypto.SecureChannel
	console Console
	quit    string
	log     *zap.Logger

	state    atomic.Int32
	started  atomic.Bool
	sent     atomic.Uint64
	received atomic.Uint64
}

// New creates a session over an already secured stream.
func New(stream io.ReadWriteCloser, channel *crypto.SecureChannel, console Console, opts Options) *Session {
	quit := strings.TrimSpace(opts.QuitCommand)
	if quit == "" {
		quit = DefaultQuitCommand
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		stream:  stream,
		channel: channel,
		console: console,
		quit:    quit,
		log:     log,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Sent returns the number of messages sealed and written.
func (s *Session) Sent() uint64 { return s.sent.Load() }

// Received returns the number of messages read and opened.
func (s *Session) Received() uint64 { return s.received.Load() }

// Run drives both loops until one of them ends, then closes the stream and
// waits for the other. A connection is never left half open: the user
// quitting, the peer hanging up and any protocol error all end the whole
// session. Run returns the error that ended the session, or nil for an
// orderly close.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionUsed
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.receive(gctx, bufio.NewReader(s.stream))
	})
	g.Go(func() error {
		defer cancel()
		return s.send(gctx, bufio.NewWriter(s.stream))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-gctx.Done()
		s.state.Store(int32(StateClosing))
		// Closing the stream unblocks whichever loop is still waiting on it.
		if err := s.stream.Close(); err != nil {
			s.log.Debug("close stream", zap.Error(err))
		}
	}()

	err := g.Wait()
	<-closed
	s.state.Store(int32(StateClosed))

	s.log.Info("session closed",
		zap.Uint64("sent", s.Sent()),
		zap.Uint64("received", s.Received()),
		zap.Error(err))

	if err == nil && parent.Err() != nil {
		return parent.Err()
	}
	return err
}

func (s *Session) receive(ctx context.Context, r io.Reader) error {
	for {
		f, err := protocol.ReadFrame(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF {
				s.log.Info("peer closed the connection")
				_ = s.console.Notice("Connection closed.")
				return nil
			}
			s.log.Error("receive failed", zap.Error(err))
			return err
		}

		text, err := s.channel.OpenText(f)
		if err != nil {
			s.log.Error("rejected incoming frame", zap.Int("size", f.Size()), zap.Error(err))
			return err
		}
		s.received.Add(1)
		s.log.Debug("message received", zap.Int("size", f.Size()))

		if err := s.console.ShowMessage(text); err != nil {
			return fmt.Errorf("session: display message: %w", err)
		}
	}
}

func (s *Session) send(ctx context.Context, w *bufio.Writer) error {
	for {
		if err := s.console.ShowPrompt(); err != nil {
			return fmt.Errorf("session: show prompt: %w", err)
		}
		line, err := s.console.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF {
				s.log.Info("console input closed")
				return nil
			}
			return fmt.Errorf("session: read input: %w", err)
		}
		if strings.TrimSpace(line) == s.quit {
			s.log.Info("quit requested")
			return nil
		}

		f, err := s.channel.Seal([]byte(line))
		if err != nil {
			s.log.Error("seal failed", zap.Int("size", len(line)), zap.Error(err))
			return err
		}
		if err := protocol.WriteFrame(w, f); err != nil {
			return s.sendFailed(ctx, err)
		}
		if err := w.Flush(); err != nil {
			return s.sendFailed(ctx, fmt.Errorf("%w: flush frame: %w", protocol.ErrTransport, err))
		}
		s.sent.Add(1)
		s.log.Debug("message sent", zap.Int("size", f.Size()))
	}
}

func (s *Session) sendFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	s.log.Error("send failed", zap.Error(err))
	return err
}
