package store

import (
	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

// ApplyEvent merges a change pushed by the server. Events for other spaces
// or for channels that are not in the directory are ignored. Server copies
// always replace local ones.
//
// It returns a channel whose messages should be loaded because it became
// active after the previously active channel was deleted; uuid.Nil
// otherwise.
func (s *Store) ApplyEvent(evt models.Event) uuid.UUID {
	s.mu.Lock()
	if s.space == nil || evt.SpaceID != s.space.ID || s.dir == nil {
		s.mu.Unlock()
		return uuid.Nil
	}

	switch evt.Type {
	case models.EventMessageCreated, models.EventMessageUpdated, models.EventMessageDeleted:
		if evt.Message == nil || !s.inSpaceLocked(evt.Message.ChannelID) {
			s.mu.Unlock()
			return uuid.Nil
		}
		s.upsertLocked(*evt.Message)
		channelID := evt.Message.ChannelID
		if evt.Message.DeletedAt != nil && s.replyingTo != nil && *s.replyingTo == evt.Message.ID {
			s.replyingTo = nil
		}
		s.mu.Unlock()
		s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})
		return uuid.Nil

	case models.EventChannelCreated, models.EventChannelUpdated:
		if evt.Channel == nil {
			s.mu.Unlock()
			return uuid.Nil
		}
		s.dir.Add(*evt.Channel)
		s.mu.Unlock()
		s.emit(Change{Kind: ChangeChannels})
		return uuid.Nil

	case models.EventChannelDeleted:
		s.mu.Unlock()
		next, changes := s.removeChannel(evt.ChannelID)
		s.emit(changes...)
		return next
	}

	s.mu.Unlock()
	s.logger.Debug("ignoring unknown event", zap.String("type", string(evt.Type)))
	return uuid.Nil
}
