package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a state change pushed to every client watching a space.
type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
	EventChannelCreated EventType = "channel.created"
	EventChannelUpdated EventType = "channel.updated"
	EventChannelDeleted EventType = "channel.deleted"
)

// Event carries the canonical copy of whatever changed. Message events
// carry Message, channel events carry Channel.
type Event struct {
	Type      EventType `json:"type"`
	SpaceID   uuid.UUID `json:"space_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	Message   *Message  `json:"message,omitempty"`
	Channel   *Channel  `json:"channel,omitempty"`
	At        time.Time `json:"at"`
}
