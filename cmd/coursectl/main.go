// Command coursectl runs operational tasks against the coursehub database.
package main

import (
	"fmt"
	"os"

	"github.com/geocoder89/coursehub/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "coursectl",
	Short:         "Administrative tasks for coursehub",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(cmd.Context())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coursectl: %v\n", err)
		os.Exit(1)
	}
}
