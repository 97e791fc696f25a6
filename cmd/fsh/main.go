// Package main implements the fsh CLI, the command-line front end that
// drives the compiler end to end: discover shorthand source files,
// import them into a Tank, resolve parents against a FHIR definitions
// cache, export every profile/extension/instance into a Package, and
// write the resulting resources and ig.ini to disk.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fsh",
		Short:         "Compile FHIR Shorthand into FHIR resource JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fsh version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fsh v%s\n", version)
			return nil
		},
	}
}
