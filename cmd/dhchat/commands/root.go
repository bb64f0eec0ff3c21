package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TheusHen/dhchat/dhchat"
	"github.com/TheusHen/dhchat/dhchat/console"
	"github.com/TheusHen/dhchat/internal/logging"
)

// cli carries what the root command resolves for its subcommands.
type cli struct {
	configFile string
	cfg        Config
	log        *zap.Logger
	console    *console.Console
}

func (c *cli) newPeer() (*dhchat.Peer, error) {
	kd, err := c.cfg.keyDerivation()
	if err != nil {
		return nil, err
	}
	return &dhchat.Peer{
		Console:       c.console,
		Logger:        c.log,
		QuitCommand:   c.cfg.Quit,
		KeyDerivation: kd,
		Once:          c.cfg.Once,
	}, nil
}

// Execute runs the command line until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func NewRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "dhchat",
		Short:        "Encrypted two-party chat over TCP or QUIC",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.New(), cmd.Flags(), c.configFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			c.log = c.log.With(zap.String(logging.KeyComponent, cmd.Name()))
			c.console = console.New(cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "path to a config file (yaml, toml or json)")
	pf.StringP("transport", "t", "tcp", "transport to use: tcp or quic")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("quit", "quit", "input line that ends the session")
	pf.String("kdf", "none", "channel key derivation: none (raw shared secret) or hkdf; both peers must match")

	root.AddCommand(setupCmd(c), listenCmd(c))
	return root
}

// ignoreCanceled treats an interrupt as a normal way to leave.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
