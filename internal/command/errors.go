package command

import (
	"errors"
	"fmt"

	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/spf13/cobra"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", apperr.Message(err))

	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: "+hint)
	}
	return err
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrPermission):
		return "check your token and your role in this space"
	case errors.Is(err, apperr.ErrNotFound):
		return "ids come from 'huddlectl messages' and 'huddlectl channels'"
	case errors.Is(err, apperr.ErrPersistence):
		return "the server could not be reached or failed; nothing was changed"
	}
	return ""
}
