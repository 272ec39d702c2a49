package command

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/client"
	"github.com/lalith-99/huddle/internal/config"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/observ"
	"github.com/lalith-99/huddle/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	Config   *config.Config
	Client   *client.Client
	Store    *store.Store
	User     *models.User
	Logger   *zap.Logger
	JSONMode bool
}

// GetContext signs in, loads the space into a fresh read-model, and makes
// the --in channel (or the first channel) active.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	ctx := cmd.Context()
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	jsonMode, _ := cmd.Flags().GetBool("json")
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := observ.NewCLILogger(level)
	if err != nil {
		return nil, err
	}

	apiURL := flagOr(cmd, "api", cfg.APIURL)
	token := flagOr(cmd, "token", cfg.APIToken)
	if token == "" {
		return nil, fmt.Errorf("no token: pass --token or set API_TOKEN (see '%s token')", AppName)
	}
	spaceRef := flagOr(cmd, "space", config.GetEnv("SPACE_ID", ""))
	if spaceRef == "" {
		return nil, fmt.Errorf("no space: pass --space or set SPACE_ID")
	}
	spaceID, err := uuid.Parse(spaceRef)
	if err != nil {
		return nil, fmt.Errorf("invalid space id %q", spaceRef)
	}

	cl, err := client.New(apiURL, token,
		client.WithFilesURL(cfg.FilesURL),
		client.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	me, err := cl.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	space, err := cl.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("open space: %w", err)
	}

	st := store.New(cl, me.ID, store.Options{
		EditWindow:                cfg.EditWindow,
		MaxTextLength:             cfg.MaxMessageLength,
		ClearDraftOnChannelSwitch: cfg.ClearDraftOnChannelSwitch,
		Logger:                    logger,
	})
	if err := st.SetActiveChatSpace(ctx, *space); err != nil {
		return nil, err
	}

	in, _ := cmd.Flags().GetString("in")
	ch, err := resolveChannelRef(st.Channels(), in)
	if err != nil {
		return nil, err
	}
	if err := st.SetActiveChannel(ctx, ch.ID); err != nil {
		return nil, err
	}

	return &CommandContext{
		Config:   cfg,
		Client:   cl,
		Store:    st,
		User:     me,
		Logger:   logger,
		JSONMode: jsonMode,
	}, nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

// resolveChannelRef finds a channel by id, by name, or by #name. An empty
// ref picks the first channel.
func resolveChannelRef(channels []models.Channel, ref string) (models.Channel, error) {
	const op = "command.resolveChannel"
	if len(channels) == 0 {
		return models.Channel{}, apperr.NotFound(op, "space has no channels")
	}
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return channels[0], nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		for _, ch := range channels {
			if ch.ID == id {
				return ch, nil
			}
		}
	}
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, ref) {
			return ch, nil
		}
	}
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = "#" + ch.Name
	}
	return models.Channel{}, apperr.NotFound(op, fmt.Sprintf("channel %q not found (have %s)", ref, strings.Join(names, ", ")))
}
