package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/directory"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/repository"
)

func (s *Service) ListChannels(ctx context.Context, userID, spaceID uuid.UUID) ([]models.Channel, error) {
	const op = "service.ListChannels"
	if _, err := s.requireRole(ctx, op, spaceID, userID); err != nil {
		return nil, err
	}
	channels, err := s.channels.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return channels, nil
}

func (s *Service) GetChannel(ctx context.Context, userID, channelID uuid.UUID) (*models.Channel, error) {
	ch, _, err := s.channelFor(ctx, "service.GetChannel", channelID, userID)
	return ch, err
}

func (s *Service) CreateChannel(ctx context.Context, userID, spaceID uuid.UUID, name, description string) (*models.Channel, error) {
	const op = "service.CreateChannel"
	role, err := s.requireRole(ctx, op, spaceID, userID)
	if err != nil {
		return nil, err
	}
	dir, err := s.directory(ctx, op, spaceID)
	if err != nil {
		return nil, err
	}
	name, description, err = dir.CheckCreate(role, name, description)
	if err != nil {
		return nil, s.deny(op, err)
	}

	ch, err := s.channels.Create(ctx, spaceID, name, description)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, s.deny(op, apperr.Validation(op, err.Error()))
		}
		return nil, apperr.Persistence(op, err)
	}

	s.countChannel("create")
	s.publish(ctx, models.Event{Type: models.EventChannelCreated, SpaceID: spaceID, ChannelID: ch.ID, Channel: ch})
	return ch, nil
}

func (s *Service) UpdateChannel(ctx context.Context, userID, channelID uuid.UUID, name, description string) (*models.Channel, error) {
	const op = "service.UpdateChannel"
	current, role, err := s.channelFor(ctx, op, channelID, userID)
	if err != nil {
		return nil, err
	}
	dir, err := s.directory(ctx, op, current.SpaceID)
	if err != nil {
		return nil, err
	}
	name, description, err = dir.CheckUpdate(role, channelID, name, description)
	if err != nil {
		return nil, s.deny(op, err)
	}

	ch, err := s.channels.Update(ctx, channelID, name, description)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, s.deny(op, apperr.Validation(op, err.Error()))
		}
		return nil, apperr.Persistence(op, err)
	}
	if ch == nil {
		return nil, apperr.NotFound(op, "channel not found")
	}

	s.countChannel("update")
	s.publish(ctx, models.Event{Type: models.EventChannelUpdated, SpaceID: ch.SpaceID, ChannelID: ch.ID, Channel: ch})
	return ch, nil
}

func (s *Service) DeleteChannel(ctx context.Context, userID, channelID uuid.UUID) error {
	const op = "service.DeleteChannel"
	ch, role, err := s.channelFor(ctx, op, channelID, userID)
	if err != nil {
		return err
	}
	dir, err := s.directory(ctx, op, ch.SpaceID)
	if err != nil {
		return err
	}
	if err := dir.CheckDelete(role, channelID); err != nil {
		return s.deny(op, err)
	}

	// The directory check can race with another delete; the repository
	// re-checks under a lock on the space.
	if err := s.channels.Delete(ctx, channelID); err != nil {
		if errors.Is(err, repository.ErrLastChannel) {
			return s.deny(op, apperr.Validation(op, err.Error()))
		}
		return apperr.Persistence(op, err)
	}

	s.countChannel("delete")
	s.publish(ctx, models.Event{Type: models.EventChannelDeleted, SpaceID: ch.SpaceID, ChannelID: ch.ID, Channel: ch})
	return nil
}

func (s *Service) directory(ctx context.Context, op string, spaceID uuid.UUID) (*directory.Directory, error) {
	channels, err := s.channels.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return directory.New(spaceID, channels), nil
}
