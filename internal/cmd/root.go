// Package cmd wires the TRC daemon together: configuration, logging,
// rate-limit gates, API clients, the monitor loop and the shutdown
// coordinator.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trc-project/trc/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "trc",
	Short: "Unattended remediation daemon for Riven",
	Long: `TRC watches a Riven backend for items stuck in a failed or stalled
state and repairs them automatically: first through Riven's own retry
path, then by manually feeding content through Real-Debrid.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/trc/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.config/trc")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TRC")
	// TRC_RIVEN_API_KEY for riven.api_key and so on
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The unprefixed names the deployment docs use (RIVEN_API_KEY,
	// RD_API_KEY, CHECK_INTERVAL_HOURS, ...) keep working.
	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
