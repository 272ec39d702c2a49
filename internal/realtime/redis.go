package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const topicPrefix = "huddle:space:"

// Topic is the pub/sub channel carrying the events of one space.
func Topic(spaceID uuid.UUID) string {
	return topicPrefix + spaceID.String()
}

// SpaceFromTopic parses the space ID back out of a Topic name.
func SpaceFromTopic(topic string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected topic %q", topic)
	}
	return uuid.Parse(raw)
}

// RedisBridge publishes events to Redis and feeds every event seen on
// Redis into the local hub, so clients connected to any instance see
// changes made through any other.
type RedisBridge struct {
	rdb    redis.UniversalClient
	hub    *Hub
	logger *zap.Logger
}

func NewRedisBridge(rdb redis.UniversalClient, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{rdb: rdb, hub: hub, logger: logger}
}

// Publish sends evt to every instance, this one included.
func (b *RedisBridge) Publish(ctx context.Context, evt models.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, Topic(evt.SpaceID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run relays Redis messages into the hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.rdb.PSubscribe(ctx, topicPrefix+"*")
	defer ps.Close()

	// Receive blocks until the subscription is confirmed, so publishes
	// made after Run starts are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.logger.Info("realtime bridge subscribed", zap.String("pattern", topicPrefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			spaceID, err := SpaceFromTopic(msg.Channel)
			if err != nil {
				b.logger.Warn("ignoring redis message", zap.Error(err))
				continue
			}
			if err := b.hub.Deliver(ctx, spaceID, []byte(msg.Payload)); err != nil {
				return nil
			}
		}
	}
}
