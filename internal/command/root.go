// Package command implements huddlectl, a terminal client that drives the
// read-model and composer against a huddle server.
package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "huddlectl"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "huddlectl - terminal client for huddle chat",
		Long:          "huddlectl reads and writes huddle channels from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("api", "", "API base URL (default $API_URL)")
	cmd.PersistentFlags().String("token", "", "bearer token (default $API_TOKEN)")
	cmd.PersistentFlags().String("space", "", "space id (default $SPACE_ID)")
	cmd.PersistentFlags().String("in", "", "channel name or id (default: first channel)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().String("log-level", "warn", "log level for diagnostics on stderr")

	cmd.AddCommand(
		NewChannelsCmd(),
		NewMessagesCmd(),
		NewSendCmd(),
		NewEditCmd(),
		NewRmCmd(),
		NewForwardCmd(),
		NewWatchCmd(),
		NewTokenCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
