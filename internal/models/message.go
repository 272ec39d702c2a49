package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType separates user-authored messages from system notices
// ("alice joined the space"). System messages never offer any actions.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
)

// DeletedBy records who soft-deleted a message: the author themselves or a
// moderator acting with their role.
type DeletedBy string

const (
	DeletedByAuthor DeletedBy = "author"
	DeletedByAdmin  DeletedBy = DeletedBy(RoleAdmin)
	DeletedByOwner  DeletedBy = DeletedBy(RoleOwner)
)

// Message is a single chat message in a channel.
//
// IDs are int64 database sequence values, so a higher ID is a newer message.
// Negative IDs never leave the client: they mark provisional messages that
// the read-model shows while the create request is in flight.
//
// Deletion is soft. DeletedAt non-nil means Text must not be rendered;
// Mentions and Attachments are kept for audit but are inert.
type Message struct {
	ID                   int64          `json:"id"`
	ChannelID            uuid.UUID      `json:"channel_id"`
	SenderID             uuid.UUID      `json:"sender_id"`
	Sender               string         `json:"sender"`
	Avatar               string         `json:"avatar,omitempty"`
	Text                 string         `json:"text"`
	CreatedAt            time.Time      `json:"created_at"`
	Time                 string         `json:"time"`
	Type                 MessageType    `json:"type"`
	Mentions             []uuid.UUID    `json:"mentions"`
	MentionEveryone      bool           `json:"mention_everyone"`
	MentionRoles         []Role         `json:"mention_roles"`
	Attachments          []string       `json:"attachments"`
	ReplyToID            *int64         `json:"reply_to_id,omitempty"`
	ReplyTo              *ReplySnapshot `json:"reply_to,omitempty"`
	ForwardedFromChannel *string        `json:"forwarded_from_channel,omitempty"`
	EditedAt             *time.Time     `json:"edited_at,omitempty"`
	DeletedAt            *time.Time     `json:"deleted_at,omitempty"`
	DeletedByRole        *DeletedBy     `json:"deleted_by_role,omitempty"`
	ClientID             string         `json:"client_id,omitempty"`
}

// ReplySnapshot is the denormalized quote of the message being replied to.
// The server fills it from the referenced row at read time, so it follows
// edits and deletions of the original.
type ReplySnapshot struct {
	ID            int64      `json:"id"`
	Sender        string     `json:"sender"`
	Text          string     `json:"text"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedByRole *DeletedBy `json:"deleted_by_role,omitempty"`
}

// IsDeleted reports whether the message has been soft-deleted.
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// IsForwarded reports whether the message is a forwarded copy.
func (m *Message) IsForwarded() bool {
	return m.ForwardedFromChannel != nil
}

// IsProvisional reports whether the message is a local placeholder that has
// not been confirmed by the server yet.
func (m *Message) IsProvisional() bool {
	return m.ID < 0
}

// Clone returns a deep copy so callers can hand messages to views without
// sharing slices or pointers with the read-model.
func (m Message) Clone() Message {
	out := m
	out.Mentions = append([]uuid.UUID(nil), m.Mentions...)
	out.MentionRoles = append([]Role(nil), m.MentionRoles...)
	out.Attachments = append([]string(nil), m.Attachments...)
	if m.ReplyToID != nil {
		id := *m.ReplyToID
		out.ReplyToID = &id
	}
	if m.ReplyTo != nil {
		snap := *m.ReplyTo
		out.ReplyTo = &snap
	}
	if m.ForwardedFromChannel != nil {
		name := *m.ForwardedFromChannel
		out.ForwardedFromChannel = &name
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		out.DeletedAt = &t
	}
	if m.DeletedByRole != nil {
		d := *m.DeletedByRole
		out.DeletedByRole = &d
	}
	return out
}

// Snapshot builds the reply quote for m as it looks right now.
func (m *Message) Snapshot() *ReplySnapshot {
	snap := &ReplySnapshot{
		ID:     m.ID,
		Sender: m.Sender,
		Text:   m.Text,
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		snap.DeletedAt = &t
		snap.Text = ""
	}
	if m.DeletedByRole != nil {
		d := *m.DeletedByRole
		snap.DeletedByRole = &d
	}
	return snap
}

// DisplayTime formats a timestamp the way message rows show it ("3:04 PM").
func DisplayTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// CreateMessageRequest is the payload the composer produces on submit and
// the API accepts on POST /v1/channels/:id/messages.
type CreateMessageRequest struct {
	SenderID        uuid.UUID   `json:"sender_id"`
	Text            string      `json:"text"`
	Mentions        []uuid.UUID `json:"mentions"`
	MentionEveryone bool        `json:"mention_everyone"`
	MentionRoles    []Role      `json:"mention_roles"`
	Attachments     []string    `json:"attachments"`
	ReplyToID       *int64      `json:"reply_to_id,omitempty"`
	ClientID        string      `json:"client_id,omitempty"`
}
