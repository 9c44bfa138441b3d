// Package cmd implements the crosschat CLI: one root command with a
// persistent config-path flag plus a flat set of subcommands that each
// call straight into the relay engine's components.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X .../cmd.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "crosschat",
	Short: "CrossChat — cross-server Discord chat relay",
	Long:  "CrossChat: relays messages posted in registered channels across many Discord servers, re-rendered as embeds, with tiered fan-out, ban/automod enforcement, and edit/delete propagation.",
	Run: func(cmd *cobra.Command, args []string) {
		runRelay()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $CROSSCHAT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(channelsCmd())
	rootCmd.AddCommand(bansCmd())
	rootCmd.AddCommand(whitelistCmd())
	rootCmd.AddCommand(partnersCmd())
	rootCmd.AddCommand(statusCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crosschat %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CROSSCHAT_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
