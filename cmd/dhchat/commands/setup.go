package commands

import (
	"net"
	"strconv"

	"github.com/spf13/cobra"
)

// setupCmd dials a listening peer and runs one session.
func setupCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Connect to a listening peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.validateSetup(); err != nil {
				return err
			}
			tr, err := newTransport(c.cfg.Transport, c.log)
			if err != nil {
				return err
			}
			peer, err := c.newPeer()
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(c.cfg.Address, strconv.Itoa(int(c.cfg.Port)))
			return ignoreCanceled(peer.Connect(cmd.Context(), tr, addr))
		},
	}
	cmd.Flags().StringP("address", "a", "", "address of the peer to connect to")
	cmd.Flags().Uint16P("port", "p", 0, "port of the peer to connect to")
	return cmd
}
