// Package quic carries a dhchat session over a single bidirectional QUIC
// stream. The dialer opens the stream and the listener accepts it; since
// the channel handshake starts with both sides writing, the stream becomes
// visible to the listener as soon as the dialer sends its key.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	q "github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"github.com/TheusHen/dhchat/dhchat/transport"
	"github.com/TheusHen/dhchat/internal/logging"
)

const (
	// closeCode is the application error code of an orderly close. The peer
	// reads it as io.EOF.
	closeCode q.ApplicationErrorCode = 0
	// noStreamCode closes connections that never opened a session stream.
	noStreamCode q.ApplicationErrorCode = 1

	// closeGrace bounds how long a closed stream waits for the peer to
	// finish before the connection is torn down.
	closeGrace = 2 * time.Second

	// DefaultStreamTimeout is how long an accepted connection may take to
	// open its session stream.
	DefaultStreamTimeout = 10 * time.Second
)

func defaultConfig() *q.Config {
	return &q.Config{
		// Chat sessions idle for long stretches.
		MaxIdleTimeout:  2 * time.Minute,
		KeepAlivePeriod: 15 * time.Second,
	}
}

// Transport dials and listens over QUIC with self-signed TLS 1.3.
// A Transport must not be copied after first use.
type Transport struct {
	// StreamTimeout overrides DefaultStreamTimeout when positive.
	StreamTimeout time.Duration
	Logger        *zap.Logger

	once      sync.Once
	serverTLS *tls.Config
	tlsErr    error
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Name() string { return "quic" }

// serverConfig generates the listener certificate once per Transport.
func (t *Transport) serverConfig() (*tls.Config, error) {
	t.once.Do(func() { t.serverTLS, t.tlsErr = serverTLSConfig() })
	return t.serverTLS, t.tlsErr
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// Listen binds a UDP address, e.g. "[::1]:9000".
func (t *Transport) Listen(addr string) (transport.Listener, error) {
	tlsConf, err := t.serverConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, defaultConfig())
	if err != nil {
		return nil, err
	}
	timeout := t.StreamTimeout
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}
	l := &Listener{
		inner:   ln,
		timeout: timeout,
		log:     t.logger().With(zap.String(logging.KeyTransport, "quic")),
		streams: make(chan *Stream),
		done:    make(chan struct{}),
	}
	go l.acceptLoop()
	return l, nil
}

// Dial connects to addr and opens the session stream.
func (t *Transport) Dial(ctx context.Context, addr string) (transport.Stream, error) {
	conn, err := q.DialAddr(ctx, addr, clientTLSConfig(), defaultConfig())
	if err != nil {
		return nil, err
	}
	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeCode, "open stream failed")
		return nil, err
	}
	return newStream(conn, st), nil
}

// Listener hands out the session stream of each incoming connection.
// Connections are accepted in the background and each one gets its own
// StreamTimeout to open a stream, so a connection that fails or stays
// silent only costs itself.
type Listener struct {
	inner   *q.Listener
	timeout time.Duration
	log     *zap.Logger

	streams   chan *Stream
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

func (l *Listener) acceptLoop() {
	defer close(l.done)
	for {
		conn, err := l.inner.Accept(context.Background())
		if err != nil {
			l.err = err
			return
		}
		go l.acceptStream(conn)
	}
}

func (l *Listener) acceptStream(conn q.Connection) {
	ctx, cancel := context.WithTimeout(conn.Context(), l.timeout)
	defer cancel()
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		l.log.Debug("dropping connection without session stream",
			zap.Stringer(logging.KeyRemote, conn.RemoteAddr()), zap.Error(err))
		_ = conn.CloseWithError(noStreamCode, "no session stream")
		return
	}
	select {
	case l.streams <- newStream(conn, st):
	case <-l.done:
		_ = conn.CloseWithError(closeCode, "listener closed")
	}
}

// Accept waits for the next session stream. It only fails when ctx ends
// or the listener is closed.
func (l *Listener) Accept(ctx context.Context) (transport.Stream, error) {
	select {
	case st := <-l.streams:
		return st, nil
	case <-l.done:
		return nil, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.inner.Close() })
	return err
}

// Stream adapts a QUIC stream to transport.Stream.
type Stream struct {
	q.Stream
	conn q.Connection
	once sync.Once
	err  error
}

func newStream(conn q.Connection, st q.Stream) *Stream {
	return &Stream{Stream: st, conn: conn}
}

// Read maps an orderly close of the whole connection by the peer to io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.Stream.Read(p)
	var appErr *q.ApplicationError
	if errors.As(err, &appErr) && appErr.Remote && appErr.ErrorCode == closeCode {
		return n, io.EOF
	}
	return n, err
}

// Close stops reading, sends FIN, and closes the connection once the peer
// has hung up or closeGrace has passed.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.Stream.CancelRead(0)
		s.err = s.Stream.Close()
		go func() {
			select {
			case <-s.conn.Context().Done():
			case <-time.After(closeGrace):
			}
			_ = s.conn.CloseWithError(closeCode, "session closed")
		}()
	})
	return s.err
}

// RemoteAddr returns the peer's UDP address.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
