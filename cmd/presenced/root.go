package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version 由构建时 -ldflags "-X main.version=..." 注入
var version = "dev"

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "presenced",
		Short:         "Mirror proxy engine status into Discord Rich Presence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newTotalsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
