package commands

import (
	"net"
	"strconv"

	"github.com/spf13/cobra"
)

// listenCmd waits for peers and serves one session at a time.
func listenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen for an incoming connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := newTransport(c.cfg.Transport, c.log)
			if err != nil {
				return err
			}
			peer, err := c.newPeer()
			if err != nil {
				return err
			}
			ln, err := tr.Listen(net.JoinHostPort(c.cfg.Bind, strconv.Itoa(int(c.cfg.Port))))
			if err != nil {
				return err
			}
			defer ln.Close()
			return ignoreCanceled(peer.Serve(cmd.Context(), ln))
		},
	}
	cmd.Flags().Uint16P("port", "p", 0, "port to listen on (0 picks a free port)")
	cmd.Flags().String("bind", "::1", "address to bind")
	cmd.Flags().Bool("once", false, "exit after the first session instead of accepting the next peer")
	return cmd
}
