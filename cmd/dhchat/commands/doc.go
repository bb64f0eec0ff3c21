// Package commands implements the dhchat command line.
//
//	dhchat listen --port 9000            wait for a peer on [::1]:9000
//	dhchat setup --address ::1 --port 9000
//
// Every flag can also come from a config file (--config) or from a
// DHCHAT_-prefixed environment variable, e.g. DHCHAT_TRANSPORT=quic or
// DHCHAT_LOG_LEVEL=debug. Flags win over the environment, which wins over
// the config file.
package commands
