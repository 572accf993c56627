// -- cmd/version.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version, set at build time via ldflags:
// go build -ldflags "-X github.com/mkarrick/flowpilot/cmd.Version=1.0.0"
var Version = "0.1"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the flowpilot version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
