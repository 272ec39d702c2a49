package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lalith-99/huddle/internal/composer"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/spf13/cobra"
)

// NewMessagesCmd prints the transcript of the active channel.
func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show messages in a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			before, _ := cmd.Flags().GetInt64("before")
			limit, _ := cmd.Flags().GetInt("limit")

			msgs := ctx.Store.CurrentMessages()
			if before > 0 || limit > 0 {
				msgs, err = ctx.Client.ListMessagesBefore(cmd.Context(), ctx.Store.ActiveChannel().ID, before, limit)
				if err != nil {
					return writeCommandError(cmd, err)
				}
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), msgs)
			}
			if len(msgs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No messages in #%s\n", ctx.Store.ActiveChannel().Name)
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
			}
			return nil
		},
	}
	cmd.Flags().Int64("before", 0, "only messages older than this id")
	cmd.Flags().Int("limit", 0, "page size (server default 50, max 100)")
	return cmd
}

// NewSendCmd posts a message through the composer, so mentions are
// resolved and attachments uploaded exactly as in the app.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message to a channel",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			comp := composer.New(ctx.Store, ctx.Client, composer.Options{
				UploadConcurrency: ctx.Config.UploadConcurrency,
				Logger:            ctx.Logger,
			})
			comp.SetText(strings.Join(args, " "))

			paths, _ := cmd.Flags().GetStringArray("attach")
			files, err := localFiles(paths)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			comp.AddFiles(files...)

			if reply, _ := cmd.Flags().GetInt64("reply"); reply != 0 {
				if err := ctx.Store.SetReplyingTo(reply); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			res, err := comp.Submit(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			for _, f := range res.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s was not attached: %v\n", f.File.Label(), f.Err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(*res.Message))
			return nil
		},
	}
	cmd.Flags().StringArray("attach", nil, "file to attach (repeatable)")
	cmd.Flags().Int64("reply", 0, "id of the message to reply to")
	return cmd
}

// NewEditCmd replaces the text of one of your messages.
func NewEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <message...>",
		Short: "Edit a message you sent (within the edit window)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			id, err := parseMessageID(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Store.UpdateMessage(cmd.Context(), id, strings.Join(args[1:], " "), ctx.User.ID)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printMessage(cmd, ctx, msg)
		},
	}
}

// NewRmCmd soft-deletes a message.
func NewRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a message (yours within the window, anyone's as Owner or Admin)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			id, err := parseMessageID(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Store.DeleteMessage(cmd.Context(), id, ctx.User.ID)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printMessage(cmd, ctx, msg)
		},
	}
}

// NewForwardCmd copies a message into another channel.
func NewForwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forward <id> <channel>",
		Short: "Forward a message to another channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			id, err := parseMessageID(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			target, err := resolveChannelRef(ctx.Store.Channels(), args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Store.ForwardMessage(cmd.Context(), id, target.ID, ctx.User.ID)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forwarded to #%s: %s\n", target.Name, formatMessage(*msg))
			return nil
		},
	}
}

func printMessage(cmd *cobra.Command, ctx *CommandContext, msg *models.Message) error {
	if ctx.JSONMode {
		return writeJSON(cmd.OutOrStdout(), msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatMessage(*msg))
	return nil
}

func parseMessageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", raw)
	}
	return id, nil
}

func localFiles(paths []string) ([]composer.File, error) {
	files := make([]composer.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("attach %s: is a directory", p)
		}
		files = append(files, composer.File{Name: filepath.Base(p), Path: p, Size: info.Size()})
	}
	return files, nil
}
