package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewChannelsCmd lists channels and manages them.
func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List the channels of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			channels := ctx.Store.Channels()
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), channels)
			}
			active := ctx.Store.ActiveChannel()
			now := time.Now()
			for _, ch := range channels {
				fmt.Fprintln(cmd.OutOrStdout(), formatChannel(ch, active != nil && active.ID == ch.ID, now))
			}
			return nil
		},
	}

	cmd.AddCommand(newChannelCreateCmd(), newChannelRenameCmd(), newChannelRmCmd())
	return cmd
}

func newChannelCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a channel (Owner or Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			desc, _ := cmd.Flags().GetString("description")
			ch, err := ctx.Store.CreateChannel(cmd.Context(), args[0], desc)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), ch)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created #%s (%s)\n", ch.Name, ch.ID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "channel description")
	return cmd
}

func newChannelRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <channel> <new-name>",
		Short: "Rename a channel or change its description (Owner or Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			current, err := resolveChannelRef(ctx.Store.Channels(), args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			desc := current.Description
			if cmd.Flags().Changed("description") {
				desc, _ = cmd.Flags().GetString("description")
			}
			ch, err := ctx.Store.UpdateChannel(cmd.Context(), current.ID, args[1], desc)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), ch)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed #%s to #%s\n", current.Name, ch.Name)
			return nil
		},
	}
	cmd.Flags().String("description", "", "new description")
	return cmd
}

func newChannelRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <channel>",
		Short: "Delete a channel and its messages (Owner or Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			ch, err := resolveChannelRef(ctx.Store.Channels(), args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Store.DeleteChannel(cmd.Context(), ch.ID); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%s\n", ch.Name)
			return nil
		},
	}
}
