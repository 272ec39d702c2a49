package command

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/lalith-99/huddle/internal/models"
	"github.com/spf13/cobra"
)

// NewWatchCmd streams live changes of the space until interrupted.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream new, edited, and deleted messages as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !ctx.JSONMode {
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", ctx.Store.ActiveSpace().Name)
			}
			err = ctx.Client.Follow(runCtx, ctx.Store, func(evt models.Event) {
				if ctx.JSONMode {
					_ = writeJSON(cmd.OutOrStdout(), evt)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatEvent(evt))
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}
}
