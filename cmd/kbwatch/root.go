package main

import (
	"os"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "kbwatch",
		Short:   "Watch a kanbansync board room",
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("KBWATCH_SERVER", "http://localhost:8080"), "kanbansync base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("KBWATCH_TOKEN"), "bearer token (or KBWATCH_TOKEN)")

	root.AddCommand(newWatchCmd(opts), newSnapshotCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
