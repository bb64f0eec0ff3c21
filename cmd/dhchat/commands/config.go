package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TheusHen/dhchat/dhchat/crypto"
	"github.com/TheusHen/dhchat/dhchat/session"
)

const envPrefix = "DHCHAT"

// Config holds the resolved settings of one invocation.
type Config struct {
	Transport string `mapstructure:"transport"`
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	Quit      string `mapstructure:"quit"`
	KDF       string `mapstructure:"kdf"`

	// setup
	Address string `mapstructure:"address"`
	// setup and listen
	Port uint16 `mapstructure:"port"`
	// listen
	Bind string `mapstructure:"bind"`
	Once bool   `mapstructure:"once"`
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("transport", "tcp")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("quit", session.DefaultQuitCommand)
	v.SetDefault("kdf", crypto.KeyDerivationNone.String())
	v.SetDefault("address", "")
	v.SetDefault("port", 0)
	v.SetDefault("bind", "::1")
	v.SetDefault("once", false)
}

// loadConfig resolves settings from defaults, an optional config file, the
// environment and the flags of the running command, in increasing order of
// precedence.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, configFile string) (Config, error) {
	setConfigDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	return cfg, nil
}

func (c Config) keyDerivation() (crypto.KeyDerivation, error) {
	return crypto.ParseKeyDerivation(c.KDF)
}

func (c Config) validateSetup() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("an address is required (use --address or DHCHAT_ADDRESS)")
	}
	if c.Port == 0 {
		return errors.New("a port is required (use --port or DHCHAT_PORT)")
	}
	return nil
}
