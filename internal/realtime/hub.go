// Package realtime pushes state-change events to websocket clients. A Hub
// fans events out to the clients watching a space; RedisBridge relays them
// between server instances.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/observ"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Publish after Shutdown.
var ErrHubClosed = errors.New("realtime hub is shut down")

// Client is one websocket connection watching one space.
type Client struct {
	SpaceID uuid.UUID
	UserID  uuid.UUID
	Send    chan []byte
}

// NewClient allocates a client with a buffered send queue.
//
// Why 256? The hub never blocks on a client: a full queue gets the client
// dropped. The buffer has to absorb a burst (a moderator clearing a thread,
// a bulk forward) while the write pump catches up, but stay small enough
// that a stalled reader is noticed in seconds, not minutes.
func NewClient(spaceID, userID uuid.UUID) *Client {
	return &Client{SpaceID: spaceID, UserID: userID, Send: make(chan []byte, 256)}
}

type delivery struct {
	spaceID uuid.UUID
	data    []byte
}

// Hub owns the client set. All mutations happen on the Run goroutine.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex

	metrics *observ.Metrics
	logger  *zap.Logger
}

func NewHub(metrics *observ.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     logger,
	}
}

// Run processes registrations and deliveries until Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.SpaceID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.SpaceID] = set
			}
			set[client] = struct{}{}
			h.gauge(1)
			h.mu.Unlock()
			h.logger.Debug("ws client connected",
				zap.String("space_id", client.SpaceID.String()),
				zap.String("user_id", client.UserID.String()),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case d := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[d.spaceID] {
				select {
				case client.Send <- d.data:
				default:
					// Slow consumer: disconnect rather than block the space.
					h.logger.Warn("dropping slow ws client", zap.String("user_id", client.UserID.String()))
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	set := h.clients[client.SpaceID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.SpaceID)
	}
	h.gauge(-1)
	close(client.Send)
}

func (h *Hub) gauge(delta float64) {
	if h.metrics != nil {
		h.metrics.WSClients.Add(delta)
	}
}

func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish delivers evt to the clients of its space on this instance.
func (h *Hub) Publish(ctx context.Context, evt models.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return h.Deliver(ctx, evt.SpaceID, data)
}

// Deliver queues an already encoded event for the clients of spaceID.
func (h *Hub) Deliver(ctx context.Context, spaceID uuid.UUID, data []byte) error {
	select {
	case h.broadcast <- delivery{spaceID: spaceID, data: data}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of clients watching spaceID.
func (h *Hub) ClientCount(spaceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[spaceID])
}
