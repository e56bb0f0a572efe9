// Package main provides the templatecore CLI harness: a small command
// that drives the orchestration core from a YAML build file, for local
// debugging and the seed end-to-end scenarios. It is not the production
// Gradle/Maven integration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set by the build.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templatecore",
		Short: "Drive the template orchestration core from a build configuration file",
		Long: "templatecore resolves, customizes, and materializes the template set a " +
			"downstream code generator will consume, following a YAML build configuration's " +
			"per-spec template source order and customization descriptors.",
		Version: Version + " (" + GitCommit + ")",
	}
	cmd.AddCommand(newBuildCommand())
	return cmd
}
