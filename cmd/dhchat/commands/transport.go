package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TheusHen/dhchat/dhchat/transport"
	"github.com/TheusHen/dhchat/dhchat/transport/quic"
	"github.com/TheusHen/dhchat/dhchat/transport/tcp"
)

func newTransport(name string, log *zap.Logger) (transport.Transport, error) {
	switch name {
	case "", "tcp":
		return &tcp.Transport{}, nil
	case "quic":
		return &quic.Transport{Logger: log}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want tcp or quic)", name)
	}
}
