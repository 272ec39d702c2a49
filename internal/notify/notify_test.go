package notify

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	spaceID   = uuid.MustParse("5a000000-0000-0000-0000-000000000001")
	channelID = uuid.MustParse("c0000000-0000-0000-0000-000000000001")
	sarah     = uuid.MustParse("00000000-0000-0000-0000-0000000000a3")
	mike      = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
)

func TestFields(t *testing.T) {
	msg := models.Message{
		ID:              42,
		ChannelID:       channelID,
		SenderID:        mike,
		Sender:          "Mike Ross",
		Mentions:        []uuid.UUID{sarah},
		MentionEveryone: true,
		MentionRoles:    []models.Role{models.RoleAdmin, models.RoleOwner},
	}

	f := Fields(spaceID, msg)
	assert.Equal(t, "42", f["message_id"])
	assert.Equal(t, sarah.String(), f["mentions"])
	assert.Equal(t, "true", f["mention_everyone"])
	assert.Equal(t, "Admin,Owner", f["mention_roles"])
	assert.Equal(t, spaceID.String(), f["space_id"])
}

func TestFieldsWithoutMentions(t *testing.T) {
	f := Fields(spaceID, models.Message{ID: 1})
	assert.Equal(t, "", f["mentions"])
	assert.Equal(t, "false", f["mention_everyone"])
	assert.Equal(t, "", f["mention_roles"])
}

// Needs a live Redis: HUDDLE_TEST_REDIS_URL=redis://localhost:6379/15
func TestStreamNotifierAppends(t *testing.T) {
	url := os.Getenv("HUDDLE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HUDDLE_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	stream := "huddle:test:" + uuid.NewString()
	defer rdb.Del(ctx, stream)

	n := NewStreamNotifier(rdb, stream)
	require.NoError(t, n.Notify(ctx, spaceID, models.Message{ID: 9, Mentions: []uuid.UUID{sarah}}))

	entries, err := rdb.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "9", entries[0].Values["message_id"])
	assert.Equal(t, sarah.String(), entries[0].Values["mentions"])
}
