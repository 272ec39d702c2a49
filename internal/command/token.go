package command

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/auth"
	"github.com/lalith-99/huddle/internal/config"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a bearer token with the server secret. Sign-in belongs
// to the accounts service; this exists for local development.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawUser, _ := cmd.Flags().GetString("user")
			userID, err := uuid.Parse(rawUser)
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("--user must be a user id"))
			}
			username, _ := cmd.Flags().GetString("username")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return writeCommandError(cmd, fmt.Errorf("--ttl must be positive"))
			}

			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				cfg, err := config.LoadConfig()
				if err != nil {
					return writeCommandError(cmd, err)
				}
				secret = cfg.JWTSecret
			}

			token, err := auth.GenerateToken(userID, username, secret, ttl)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id to sign for")
	cmd.Flags().String("username", "", "username claim")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().String("secret", "", "signing secret (default $JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
