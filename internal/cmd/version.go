package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the daemon version, overridable at build time with
// -ldflags "-X github.com/trc-project/trc/internal/cmd.Version=...".
var Version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the trc version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trc v%s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
