// Package notify hands sent messages that mention someone to the
// notification subsystem through a Redis stream. Consumers read the stream
// with their own consumer group; this package only appends.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "huddle:mentions"

	// DefaultMaxLen bounds the stream; trimming is approximate.
	DefaultMaxLen = 100_000
)

type StreamNotifier struct {
	rdb    redis.UniversalClient
	stream string
	maxLen int64
}

func NewStreamNotifier(rdb redis.UniversalClient, stream string) *StreamNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamNotifier{rdb: rdb, stream: stream, maxLen: DefaultMaxLen}
}

func (n *StreamNotifier) Notify(ctx context.Context, spaceID uuid.UUID, msg models.Message) error {
	err := n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: Fields(spaceID, msg),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}

// Fields is the stream entry for msg. Lists are comma separated and empty
// when there is nothing to notify.
func Fields(spaceID uuid.UUID, msg models.Message) map[string]any {
	mentions := make([]string, 0, len(msg.Mentions))
	for _, id := range msg.Mentions {
		mentions = append(mentions, id.String())
	}
	roles := make([]string, 0, len(msg.MentionRoles))
	for _, r := range msg.MentionRoles {
		roles = append(roles, string(r))
	}
	return map[string]any{
		"space_id":         spaceID.String(),
		"channel_id":       msg.ChannelID.String(),
		"message_id":       strconv.FormatInt(msg.ID, 10),
		"sender_id":        msg.SenderID.String(),
		"sender":           msg.Sender,
		"mentions":         strings.Join(mentions, ","),
		"mention_everyone": strconv.FormatBool(msg.MentionEveryone),
		"mention_roles":    strings.Join(roles, ","),
	}
}
