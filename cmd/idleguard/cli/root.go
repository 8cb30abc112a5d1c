// Package cli implements the idleguard command tree.
package cli

import (
	"github.com/spf13/cobra"

	"idleguard/pkg/config"
	"idleguard/pkg/log"
)

// Version is set at build time with -ldflags "-X idleguard/cmd/idleguard/cli.Version=...".
var Version = "dev"

var (
	verbose    bool
	jsonLog    bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "idleguard",
	Short: "Hot end idle protection monitor",
	Long: `idleguard watches a printer's hot end and heated bed for heating left
on without use, and its extruder for long periods without motion. When a
limit passes it lowers the heater target or shuts the extruder drive off.

Settings come from the [idle_protection] section of printer.cfg and can be
changed at runtime with M86, M87 or the HTTP API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		root := log.GetLogger("idleguard")
		if verbose {
			root.SetLevel(log.DEBUG)
		}
		if jsonLog {
			root.SetFormat(log.FormatJSON)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log JSON lines")
}

// loadConfig parses the --config file, or returns defaults without one.
func loadConfig() (*config.PrinterConfig, *config.Config, error) {
	if configFile == "" {
		return config.DefaultPrinterConfig(), nil, nil
	}
	raw, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	pc, err := config.FromConfig(raw)
	if err != nil {
		return nil, nil, err
	}
	return pc, raw, nil
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "printer configuration file")
}
