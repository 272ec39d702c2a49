package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

// CreateChannel adds a channel to the active space. Owners and Admins only.
func (s *Store) CreateChannel(ctx context.Context, name, description string) (*models.Channel, error) {
	const op = "store.CreateChannel"

	s.mu.Lock()
	if s.dir == nil {
		s.mu.Unlock()
		return nil, apperr.Consistency(op, "channels are not loaded")
	}
	name, description, err := s.dir.CheckCreate(s.roleLocked(s.userID), name, description)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	spaceID, gen := s.dir.SpaceID(), s.generation
	s.mu.Unlock()

	ch, err := s.persist.CreateChannel(ctx, spaceID, name, description)
	if err != nil {
		s.logger.Warn("create channel failed", zap.String("space_id", spaceID.String()), zap.Error(err))
		s.resyncChannels(ctx, err)
		return nil, apperr.Persistence(op, err)
	}

	s.mu.Lock()
	if gen == s.generation && s.dir != nil {
		s.dir.Add(*ch)
	}
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeChannels})

	out := *ch
	return &out, nil
}

// UpdateChannel renames channelID and replaces its description.
func (s *Store) UpdateChannel(ctx context.Context, channelID uuid.UUID, name, description string) (*models.Channel, error) {
	const op = "store.UpdateChannel"

	s.mu.Lock()
	if s.dir == nil {
		s.mu.Unlock()
		return nil, apperr.Consistency(op, "channels are not loaded")
	}
	name, description, err := s.dir.CheckUpdate(s.roleLocked(s.userID), channelID, name, description)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gen := s.generation
	s.mu.Unlock()

	ch, err := s.persist.UpdateChannel(ctx, channelID, name, description)
	if err != nil {
		s.logger.Warn("update channel failed", zap.String("channel_id", channelID.String()), zap.Error(err))
		s.resyncChannels(ctx, err)
		return nil, apperr.Persistence(op, err)
	}

	s.mu.Lock()
	if gen == s.generation && s.dir != nil {
		s.dir.Replace(*ch)
	}
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeChannels})

	out := *ch
	return &out, nil
}

// DeleteChannel removes channelID and its messages. The last channel of a
// space cannot be deleted. When the deleted channel was active, the first
// remaining channel becomes active.
func (s *Store) DeleteChannel(ctx context.Context, channelID uuid.UUID) error {
	const op = "store.DeleteChannel"

	s.mu.Lock()
	if s.dir == nil {
		s.mu.Unlock()
		return apperr.Consistency(op, "channels are not loaded")
	}
	if err := s.dir.CheckDelete(s.roleLocked(s.userID), channelID); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.persist.DeleteChannel(ctx, channelID); err != nil {
		s.logger.Warn("delete channel failed", zap.String("channel_id", channelID.String()), zap.Error(err))
		s.resyncChannels(ctx, err)
		return apperr.Persistence(op, err)
	}

	next, changes := s.removeChannel(channelID)
	s.emit(changes...)
	if next != uuid.Nil {
		return s.LoadMessages(ctx, next)
	}
	return nil
}

// resyncChannels refetches the channel list after the server rejected a
// channel change that the local directory allowed.
//
// The directory checks names and the last-channel rule before every call, so
// a Validation or NotFound answer from the server means someone else changed
// the space since we loaded it: a channel was created with the same name, or
// the target was already deleted. Reloading makes the next attempt see what
// the server sees instead of failing the same way again.
func (s *Store) resyncChannels(ctx context.Context, err error) {
	if !errors.Is(err, apperr.ErrValidation) && !errors.Is(err, apperr.ErrNotFound) {
		return
	}
	if rerr := s.ReloadChannels(ctx); rerr != nil {
		s.logger.Warn("failed to refresh channels", zap.Error(rerr))
	}
}

// removeChannel drops channelID from the read-model. It returns the newly
// active channel when it had to re-point the active channel and that
// channel's messages still need loading.
func (s *Store) removeChannel(channelID uuid.UUID) (uuid.UUID, []Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir == nil || !s.dir.Remove(channelID) {
		return uuid.Nil, nil
	}
	if l, ok := s.logs[channelID]; ok {
		if s.replyingTo != nil {
			for _, m := range l.msgs {
				if m.ID == *s.replyingTo {
					s.replyingTo = nil
					break
				}
			}
		}
		delete(s.logs, channelID)
	}

	changes := []Change{{Kind: ChangeChannels}}
	if s.activeChannel != channelID {
		return uuid.Nil, changes
	}

	s.activeChannel = uuid.Nil
	s.replyingTo = nil
	changes = append(changes, Change{Kind: ChangeActiveChannel})
	first, ok := s.dir.First()
	if !ok {
		return uuid.Nil, changes
	}
	s.activeChannel = first.ID
	if s.logLocked(first.ID).loaded {
		return uuid.Nil, changes
	}
	return first.ID, changes
}
