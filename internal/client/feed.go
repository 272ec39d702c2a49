package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/huddle/internal/composer"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/store"
	"go.uber.org/zap"
)

var (
	_ store.Persistence = (*Client)(nil)
	_ composer.Uploader = (*Client)(nil)
)

// FeedURL is the websocket address of a space's event feed. Browsers cannot
// set headers on a websocket handshake, so the token rides in the query.
func (c *Client) FeedURL(spaceID uuid.UUID) (string, error) {
	u, err := url.Parse(c.baseURL + "/v1/spaces/" + spaceID.String() + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if c.token != "" {
		q := u.Query()
		q.Set("access_token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Watch streams the events of spaceID to fn until ctx is cancelled or the
// connection drops. A cancelled ctx is not an error.
func (c *Client) Watch(ctx context.Context, spaceID uuid.UUID, fn func(models.Event)) error {
	endpoint, err := c.FeedURL(spaceID)
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "websocket handshake rejected"}
		}
		return fmt.Errorf("connect to %s: %w", redactToken(endpoint), err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		var evt models.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Warn("skipping malformed event", zap.Error(err))
			continue
		}
		fn(evt)
	}
}

// Follow keeps st in sync with the server feed of its active space. When a
// pushed channel deletion moves the store to another channel, that
// channel's messages are loaded. onEvent, if non-nil, sees every event after
// the store has applied it.
func (c *Client) Follow(ctx context.Context, st *store.Store, onEvent func(models.Event)) error {
	space := st.ActiveSpace()
	if space == nil {
		return errors.New("store has no active space")
	}
	return c.Watch(ctx, space.ID, func(evt models.Event) {
		if next := st.ApplyEvent(evt); next != uuid.Nil {
			if err := st.LoadMessages(ctx, next); err != nil {
				c.logger.Warn("failed to load messages after channel switch",
					zap.String("channel_id", next.String()),
					zap.Error(err),
				)
			}
		}
		if onEvent != nil {
			onEvent(evt)
		}
	})
}

func redactToken(endpoint string) string {
	if i := strings.Index(endpoint, "access_token="); i >= 0 {
		return endpoint[:i] + "access_token=REDACTED"
	}
	return endpoint
}
