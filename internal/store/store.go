// Package store is the client-side read-model of the messaging subsystem.
//
// One Store is created per signed-in user and handed to every view (chat
// panel, mention popup, nearby-chat overlay). Views read through the
// accessor methods, which return copies, and change state only through the
// action methods. Every state transition notifies subscribers after the
// store's lock is released.
//
// The persistence layer is authoritative: whatever it returns overwrites
// local optimistic state.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/directory"
	"github.com/lalith-99/huddle/internal/lifecycle"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

// Persistence is the server API the store reconciles with. Every method
// returns canonical, fully denormalized records.
type Persistence interface {
	SendMessage(ctx context.Context, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error)
	UpdateMessage(ctx context.Context, messageID int64, text string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) (*models.Message, error)
	ForwardMessage(ctx context.Context, messageID int64, targetChannelID uuid.UUID) (*models.Message, error)
	ListMessages(ctx context.Context, channelID uuid.UUID) ([]models.Message, error)

	ListChannels(ctx context.Context, spaceID uuid.UUID) ([]models.Channel, error)
	ListMembers(ctx context.Context, spaceID uuid.UUID) ([]models.Member, error)
	CreateChannel(ctx context.Context, spaceID uuid.UUID, name, description string) (*models.Channel, error)
	UpdateChannel(ctx context.Context, channelID uuid.UUID, name, description string) (*models.Channel, error)
	DeleteChannel(ctx context.Context, channelID uuid.UUID) error
}

// Options tune a Store. The zero value is usable.
type Options struct {
	EditWindow    time.Duration
	MaxTextLength int

	// ClearDraftOnChannelSwitch empties the chat input when the active
	// channel changes. Off by default: drafts follow the user across
	// channels.
	ClearDraftOnChannelSwitch bool

	Clock  func() time.Time
	Logger *zap.Logger
}

// ChangeKind says which part of the read-model moved.
type ChangeKind int

const (
	ChangeSpace ChangeKind = iota
	ChangeChannels
	ChangeMembers
	ChangeActiveChannel
	ChangeMessages
	ChangeDraft
)

// Change is delivered to subscribers. ChannelID is set for ChangeMessages.
type Change struct {
	Kind      ChangeKind
	ChannelID uuid.UUID
}

// Listener is called after a state transition. It must not block.
type Listener func(Change)

// channelLog is one channel's messages in insertion order.
type channelLog struct {
	msgs   []models.Message
	loaded bool
}

// Store is the single source of truth for the active space.
type Store struct {
	persist Persistence
	auth    *lifecycle.Authority
	logger  *zap.Logger
	opts    Options
	userID  uuid.UUID

	mu            sync.Mutex
	generation    uint64
	space         *models.Space
	dir           *directory.Directory
	members       []models.Member
	activeChannel uuid.UUID
	logs          map[uuid.UUID]*channelLog
	replyingTo    *int64
	chatInput     string

	// Provisional messages get negative ids. confirmed maps them to the
	// id the server assigned once the create call returns.
	nextTempID int64
	confirmed  map[int64]int64

	listeners    map[int]Listener
	nextListener int
}

// New creates a store acting on behalf of userID.
func New(persist Persistence, userID uuid.UUID, opts Options) *Store {
	auth := lifecycle.New(opts.EditWindow)
	if opts.Clock != nil {
		auth = auth.WithClock(opts.Clock)
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = lifecycle.DefaultMaxTextLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		persist:   persist,
		auth:      auth,
		logger:    logger,
		opts:      opts,
		userID:    userID,
		logs:      make(map[uuid.UUID]*channelLog),
		confirmed: make(map[int64]int64),
		listeners: make(map[int]Listener),
	}
}

// UserID is the user the store acts for.
func (s *Store) UserID() uuid.UUID { return s.userID }

// Authority exposes the lifecycle oracle the store checks with.
func (s *Store) Authority() *lifecycle.Authority { return s.auth }

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// emit must be called without s.mu held.
func (s *Store) emit(changes ...Change) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, l := range listeners {
			l(c)
		}
	}
}

func (s *Store) now() time.Time {
	return s.auth.Now()
}

// roleLocked returns the role userID holds in the active space.
func (s *Store) roleLocked(userID uuid.UUID) models.Role {
	for _, m := range s.members {
		if m.UserID == userID {
			return m.Role
		}
	}
	if s.space != nil {
		return s.space.RoleOf(userID)
	}
	return ""
}

func (s *Store) memberLocked(userID uuid.UUID) (models.Member, bool) {
	for _, m := range s.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Member{}, false
}

func (s *Store) logLocked(channelID uuid.UUID) *channelLog {
	l, ok := s.logs[channelID]
	if !ok {
		l = &channelLog{}
		s.logs[channelID] = l
	}
	return l
}

// resolveIDLocked maps a provisional id to its confirmed id when known.
func (s *Store) resolveIDLocked(id int64) int64 {
	if id < 0 {
		if confirmedID, ok := s.confirmed[id]; ok {
			return confirmedID
		}
	}
	return id
}

// findLocked locates message id in any loaded channel.
func (s *Store) findLocked(id int64) (*channelLog, int) {
	id = s.resolveIDLocked(id)
	for _, l := range s.logs {
		for i := range l.msgs {
			if l.msgs[i].ID == id {
				return l, i
			}
		}
	}
	return nil, -1
}

func (s *Store) inSpaceLocked(channelID uuid.UUID) bool {
	if s.dir == nil {
		return false
	}
	_, ok := s.dir.Get(channelID)
	return ok
}
