// Package service is the server-side authority for messaging. Handlers call
// it with the authenticated user; it re-checks membership, the lifecycle
// rules, and the channel directory rules before touching the repositories,
// then fans the change out to realtime subscribers.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/lifecycle"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/observ"
	"github.com/lalith-99/huddle/internal/repository"
	"go.uber.org/zap"
)

// Publisher pushes a state change to every client watching the space.
type Publisher interface {
	Publish(ctx context.Context, evt models.Event) error
}

// Notifier receives every sent message that mentions someone.
type Notifier interface {
	Notify(ctx context.Context, spaceID uuid.UUID, msg models.Message) error
}

// Repos bundles the repositories the service reads and writes.
type Repos struct {
	Spaces   repository.SpaceRepository
	Members  repository.MembershipRepository
	Users    repository.UserRepository
	Channels repository.ChannelRepository
	Messages repository.MessageRepository
}

type Options struct {
	EditWindow    time.Duration
	MaxTextLength int
	Clock         func() time.Time
	Publisher     Publisher
	Notifier      Notifier
	Metrics       *observ.Metrics
}

type Service struct {
	spaces   repository.SpaceRepository
	members  repository.MembershipRepository
	users    repository.UserRepository
	channels repository.ChannelRepository
	messages repository.MessageRepository

	auth      *lifecycle.Authority
	maxLen    int
	publisher Publisher
	notifier  Notifier
	metrics   *observ.Metrics
	logger    *zap.Logger
}

func New(repos Repos, opts Options, logger *zap.Logger) *Service {
	auth := lifecycle.New(opts.EditWindow)
	if opts.Clock != nil {
		auth = auth.WithClock(opts.Clock)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		spaces:    repos.Spaces,
		members:   repos.Members,
		users:     repos.Users,
		channels:  repos.Channels,
		messages:  repos.Messages,
		auth:      auth,
		maxLen:    opts.MaxTextLength,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Authority exposes the lifecycle rules the service enforces.
func (s *Service) Authority() *lifecycle.Authority {
	return s.auth
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const op = "service.GetUser"
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if u == nil {
		return nil, apperr.NotFound(op, "user not found")
	}
	return u, nil
}

func (s *Service) GetSpace(ctx context.Context, userID, spaceID uuid.UUID) (*models.Space, error) {
	const op = "service.GetSpace"
	sp, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if sp == nil {
		return nil, apperr.NotFound(op, "space not found")
	}
	if sp.RoleOf(userID) == "" {
		return nil, s.deny(op, apperr.Permission(op, "not a member of this space"))
	}
	return sp, nil
}

func (s *Service) ListMembers(ctx context.Context, userID, spaceID uuid.UUID) ([]models.Member, error) {
	const op = "service.ListMembers"
	if _, err := s.requireRole(ctx, op, spaceID, userID); err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, spaceID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return members, nil
}

// SpaceRole returns the caller's role, failing when they are not a member.
func (s *Service) SpaceRole(ctx context.Context, userID, spaceID uuid.UUID) (models.Role, error) {
	return s.requireRole(ctx, "service.SpaceRole", spaceID, userID)
}

func (s *Service) requireRole(ctx context.Context, op string, spaceID, userID uuid.UUID) (models.Role, error) {
	role, err := s.members.GetRole(ctx, spaceID, userID)
	if err != nil {
		return "", apperr.Persistence(op, err)
	}
	if role == "" {
		return "", s.deny(op, apperr.Permission(op, "not a member of this space"))
	}
	return role, nil
}

// channelFor loads a channel and the caller's role in its space.
func (s *Service) channelFor(ctx context.Context, op string, channelID, userID uuid.UUID) (*models.Channel, models.Role, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, "", apperr.Persistence(op, err)
	}
	if ch == nil {
		return nil, "", apperr.NotFound(op, "channel not found")
	}
	role, err := s.requireRole(ctx, op, ch.SpaceID, userID)
	if err != nil {
		return nil, "", err
	}
	return ch, role, nil
}

// messageFor loads a message, its channel, and the caller's role.
func (s *Service) messageFor(ctx context.Context, op string, messageID int64, userID uuid.UUID) (*models.Message, *models.Channel, models.Role, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, "", apperr.Persistence(op, err)
	}
	if msg == nil {
		return nil, nil, "", apperr.NotFound(op, "message not found")
	}
	ch, role, err := s.channelFor(ctx, op, msg.ChannelID, userID)
	if err != nil {
		return nil, nil, "", err
	}
	return msg, ch, role, nil
}

// deny counts a rejected operation and returns err unchanged.
func (s *Service) deny(op string, err error) error {
	if s.metrics != nil {
		s.metrics.Denials.WithLabelValues(op, KindLabel(err)).Inc()
	}
	return err
}

func (s *Service) publish(ctx context.Context, evt models.Event) {
	if s.publisher == nil {
		return
	}
	evt.At = s.auth.Now()
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", string(evt.Type)),
			zap.String("space_id", evt.SpaceID.String()),
			zap.Error(err),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()
	}
}

func (s *Service) countMessage(op string) {
	if s.metrics != nil {
		s.metrics.MessageOps.WithLabelValues(op).Inc()
	}
}

func (s *Service) countChannel(op string) {
	if s.metrics != nil {
		s.metrics.ChannelOps.WithLabelValues(op).Inc()
	}
}

// KindLabel is the metrics and log label for an apperr kind.
func KindLabel(err error) string {
	switch kind := apperr.KindOf(err); {
	case errors.Is(kind, apperr.ErrValidation):
		return "validation"
	case errors.Is(kind, apperr.ErrPermission):
		return "permission"
	case errors.Is(kind, apperr.ErrPersistence):
		return "persistence"
	case errors.Is(kind, apperr.ErrConsistency):
		return "consistency"
	case errors.Is(kind, apperr.ErrNotFound):
		return "not_found"
	}
	return "unknown"
}
