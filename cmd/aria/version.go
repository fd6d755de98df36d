package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the aria version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aria %s\n", Version)
		},
	}
}
