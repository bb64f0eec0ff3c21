package dhchat

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/TheusHen/dhchat/dhchat/crypto"
	"github.com/TheusHen/dhchat/dhchat/session"
	"github.com/TheusHen/dhchat/dhchat/transport"
	"github.com/TheusHen/dhchat/internal/logging"
)

var ErrNoConsole = errors.New("dhchat: peer has no console")

// Peer runs chat sessions over a transport, either as the dialing or the
// listening side. Both sides run the same protocol once connected.
type Peer struct {
	Console       session.Console
	Logger        *zap.Logger
	QuitCommand   string
	KeyDerivation crypto.KeyDerivation
	// Once makes Serve return after the first session instead of waiting
	// for the next connection.
	Once bool
}

func NewPeer(console session.Console, logger *zap.Logger) *Peer {
	return &Peer{Console: console, Logger: logger}
}

func (p *Peer) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Connect dials addr and runs one session.
func (p *Peer) Connect(ctx context.Context, t transport.Transport, addr string) error {
	if p.Console == nil {
		return ErrNoConsole
	}
	log := p.logger().With(
		zap.String(logging.KeyTransport, t.Name()),
		zap.String(logging.KeyRemote, addr))

	log.Info("connecting", zap.String(logging.KeyState, "connecting"))
	st, err := t.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	_ = p.Console.Notice(fmt.Sprintf("Successfully connected to %s", addr))
	return p.Establish(ctx, st, log)
}

// Serve accepts connections from ln and runs one session at a time. A
// failed session is logged and Serve keeps accepting, unless Once is set,
// in which case the session's error is returned. Serve returns nil when
// ctx is cancelled.
func (p *Peer) Serve(ctx context.Context, ln transport.Listener) error {
	if p.Console == nil {
		return ErrNoConsole
	}
	log := p.logger().With(zap.String(logging.KeyAddress, ln.Addr().String()))
	log.Info("listening", zap.String(logging.KeyState, "listening"))
	_ = p.Console.Notice(fmt.Sprintf("Listening on %s", ln.Addr()))

	for {
		st, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		remote := remoteAddr(st)
		_ = p.Console.Notice(fmt.Sprintf("Accepted connection request from %s", remote))
		err = p.Establish(ctx, st, log.With(zap.String(logging.KeyRemote, remote)))
		if err != nil && ctx.Err() == nil {
			log.Error("session failed", zap.String(logging.KeyRemote, remote), zap.Error(err))
			_ = p.Console.Notice(fmt.Sprintf("Session with %s failed: %v", remote, err))
		}
		if p.Once {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Establish runs the handshake on st and then the session, closing st when
// done. st must be freshly connected.
func (p *Peer) Establish(ctx context.Context, st transport.Stream, log *zap.Logger) error {
	if log == nil {
		log = p.logger()
	}
	defer st.Close()

	log.Debug("handshaking", zap.String(logging.KeyState, "handshaking"))
	// The handshake has no deadline of its own; closing the stream is the
	// only way to abandon it.
	stop := context.AfterFunc(ctx, func() { _ = st.Close() })
	secret, err := session.Handshake(st, session.HandshakeOptions{Logger: log})
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	fingerprint := secret.Fingerprint()
	channel, err := crypto.NewSecureChannel(&secret, p.KeyDerivation)
	if err != nil {
		return err
	}
	log.Info("secure channel established",
		zap.String(logging.KeyState, "secured"),
		zap.String(logging.KeyFingerprint, fingerprint),
		zap.Stringer("kdf", p.KeyDerivation))
	_ = p.Console.Notice(fmt.Sprintf("Secure channel established (fingerprint %s). Type %q to leave.", fingerprint, p.quitCommand()))

	sess := session.New(st, channel, p.Console, session.Options{
		QuitCommand: p.QuitCommand,
		Logger:      log,
	})
	err = sess.Run(ctx)
	log.Info("connection closed", zap.String(logging.KeyState, "closed"))
	return err
}

func (p *Peer) quitCommand() string {
	if p.QuitCommand == "" {
		return session.DefaultQuitCommand
	}
	return p.QuitCommand
}

func remoteAddr(st transport.Stream) string {
	if ra, ok := st.(interface{ RemoteAddr() net.Addr }); ok && ra.RemoteAddr() != nil {
		return ra.RemoteAddr().String()
	}
	return "unknown"
}
