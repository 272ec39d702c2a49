package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
)

// Every method takes ctx first and returns nil, nil when the row does not
// exist. Errors are wrapped with the failing operation.

var (
	// ErrLastChannel is returned by ChannelRepository.Delete when the
	// channel is the only one left in its space.
	ErrLastChannel = errors.New("cannot delete the last channel in a space")

	// ErrDuplicateName is returned when a channel name is already used in
	// the space (compared case-insensitively).
	ErrDuplicateName = errors.New("a channel with that name already exists")

	// ErrClientIDReused is returned by MessageRepository.Create when the
	// sender already used the ClientID for a message in another channel.
	ErrClientIDReused = errors.New("client id already used for another message")
)

// SpaceRepository reads spaces. Spaces are created elsewhere.
type SpaceRepository interface {
	// GetByID returns the space with its (user, role) member list.
	GetByID(ctx context.Context, spaceID uuid.UUID) (*models.Space, error)
}

// MembershipRepository reads who belongs to which space, and with what role.
type MembershipRepository interface {
	// ListMembers returns the roster of a space in join order, with the
	// profile fields mention matching needs.
	ListMembers(ctx context.Context, spaceID uuid.UUID) ([]models.Member, error)

	// GetRole returns the role userID holds in spaceID, or "" when the user
	// is not a member. Hot path: called before every read and mutation.
	GetRole(ctx context.Context, spaceID uuid.UUID, userID uuid.UUID) (models.Role, error)
}

// UserRepository reads user profiles.
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// ChannelRepository defines the contract for channel data operations.
type ChannelRepository interface {
	// Create inserts a channel and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, spaceID uuid.UUID, name, description string) (*models.Channel, error)

	GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error)

	// ListBySpace returns the channels of a space in creation order.
	// Returns an empty slice (not nil) so JSON serializes to [] not null.
	ListBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.Channel, error)

	Update(ctx context.Context, channelID uuid.UUID, name, description string) (*models.Channel, error)

	// Delete removes a channel and, by cascade, its messages. It fails with
	// ErrLastChannel instead of leaving a space with no channels.
	Delete(ctx context.Context, channelID uuid.UUID) error
}

// NewMessage is what MessageRepository.Create stores. Sender name, avatar,
// and the reply snapshot are filled in on read.
type NewMessage struct {
	SenderID             uuid.UUID
	Type                 models.MessageType
	Text                 string
	Mentions             []uuid.UUID
	MentionEveryone      bool
	MentionRoles         []models.Role
	Attachments          []string
	ReplyToID            *int64
	ForwardedFromChannel *string
	ClientID             string
}

// MessageRepository handles chat message persistence. Reads return fully
// denormalized messages: sender name and avatar, plus the current state of
// the replied-to message.
type MessageRepository interface {
	// Create persists a message and reports whether a new row was written.
	//
	// Why the created flag? A client that lost the response to a send
	// retries with the same ClientID. The retry must return the message that
	// already exists, and callers must not treat it as a second send: no new
	// realtime event and no second mention notification. A ClientID reused
	// for another channel is ErrClientIDReused, never the unrelated message.
	Create(ctx context.Context, channelID uuid.UUID, msg NewMessage) (*models.Message, bool, error)

	GetByID(ctx context.Context, messageID int64) (*models.Message, error)

	// ListByChannel returns messages in a channel, newest first.
	// Uses cursor-based pagination: before=0 means "from the top" (latest).
	ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error)

	// UpdateText replaces the body of a live message. Returns nil, nil if
	// the message does not exist or is deleted.
	UpdateText(ctx context.Context, messageID int64, text string, editedAt time.Time) (*models.Message, error)

	// SoftDelete stamps a live message as deleted. Returns nil, nil if the
	// message does not exist or is already deleted.
	SoftDelete(ctx context.Context, messageID int64, deletedAt time.Time, by models.DeletedBy) (*models.Message, error)
}
