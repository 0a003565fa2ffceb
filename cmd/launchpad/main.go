// Package main provides the launchpad command line interface.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/helix-imaging/launchpad/internal/platform"
)

var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "Run image analysis applications on the platform",
	Long: "Launchpad prepares whole-slide-image metadata, uploads slides into the platform bucket, " +
		"submits application runs and incrementally downloads their results.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// User-correctable failures exit 2, everything else 1.
		if platform.IsUserError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
