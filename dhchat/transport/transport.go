// Package transport defines how dhchat obtains a connected byte stream.
// Implementations live in the tcp and quic subpackages.
package transport

import (
	"context"
	"io"
	"net"
)

// Stream is a connected, bidirectional byte stream. Read and Write may be
// called concurrently from different goroutines; Close must unblock both.
type Stream interface {
	io.ReadWriteCloser
}

// Listener accepts incoming streams.
type Listener interface {
	Accept(ctx context.Context) (Stream, error)
	Addr() net.Addr
	Close() error
}

// Transport establishes streams, either by listening or by dialing.
type Transport interface {
	Name() string
	Listen(addr string) (Listener, error)
	Dial(ctx context.Context, addr string) (Stream, error)
}
