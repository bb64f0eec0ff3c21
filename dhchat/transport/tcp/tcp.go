// Package tcp is the plain TCP transport.
package tcp

import (
	"context"
	"net"

	"github.com/TheusHen/dhchat/dhchat/transport"
)

// Transport dials and listens over TCP.
type Transport struct {
	Dialer net.Dialer
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Name() string { return "tcp" }

// Listen binds addr, e.g. "[::1]:9000".
func (t *Transport) Listen(addr string) (transport.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

// Dial connects to addr.
func (t *Transport) Dial(ctx context.Context, addr string) (transport.Stream, error) {
	return t.Dialer.DialContext(ctx, "tcp", addr)
}

// Listener wraps a net.Listener with a context-aware Accept.
type Listener struct {
	inner net.Listener
}

// Accept waits for the next connection. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (transport.Stream, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.inner.Close() })
	defer stop()

	conn, err := l.inner.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error { return l.inner.Close() }
