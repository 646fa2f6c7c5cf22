package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shellbridge",
		Short:         "shellbridge – terminal bridge to a sandboxed shell",
		Long:          "shellbridge serves shell sessions over REST and websockets, runs curl and fetch through a proxy, and reports development URLs printed by the shell.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCmd()
	root.AddCommand(serve, newAttachCmd())

	// Default action: serve
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}
