package cli

import (
	"github.com/spf13/cobra"
)

// configFileFlag is the persistent --config flag value shared by every
// subcommand.
var configFileFlag string

// NewRootCommand builds the tcpframed root command with its listen and
// dial subcommands attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tcpframed",
		Short: "Drive a framed TCP connection as a listener or a dialer",
		Long: `tcpframed exercises the tcpsock framing library from the command
line: it can listen for inbound connections or dial out to one, using
whichever wire framing (size-prefix, delimiter, netstring) the config
selects.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFileFlag, "config", "c", "",
		"path to a config file (YAML/JSON/TOML); unset uses built-in defaults and TCPFRAMED_ env overrides")

	root.AddCommand(NewListenCommand())
	root.AddCommand(NewDialCommand())

	return root
}

// loadConfigFromCommand reads the --config flag off cmd's command tree
// and loads the merged configuration.
func loadConfigFromCommand(cmd *cobra.Command) (*Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return LoadConfig(path)
}
