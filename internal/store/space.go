package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/directory"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

// SetActiveChatSpace switches to space. The active channel is reset, all
// channel and message caches are dropped, and the channel list and roster
// of the new space are loaded. No channel can become active until that load
// has succeeded.
//
// The draft is always cleared here, whatever ClearDraftOnChannelSwitch says:
// text typed for one space must never be sent into another.
func (s *Store) SetActiveChatSpace(ctx context.Context, space models.Space) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	sp := space
	s.space = &sp
	s.dir = nil
	s.members = nil
	s.activeChannel = uuid.Nil
	s.logs = make(map[uuid.UUID]*channelLog)
	s.replyingTo = nil
	s.confirmed = make(map[int64]int64)
	draftCleared := s.chatInput != ""
	s.chatInput = ""
	s.mu.Unlock()

	changes := []Change{{Kind: ChangeSpace}, {Kind: ChangeActiveChannel}}
	if draftCleared {
		changes = append(changes, Change{Kind: ChangeDraft})
	}
	s.emit(changes...)

	return s.loadSpace(ctx, gen, space.ID)
}

// ReloadChannels refetches the channel list and roster of the active space.
func (s *Store) ReloadChannels(ctx context.Context) error {
	s.mu.Lock()
	if s.space == nil {
		s.mu.Unlock()
		return apperr.Consistency("store.ReloadChannels", "no active space")
	}
	gen, spaceID := s.generation, s.space.ID
	s.mu.Unlock()

	return s.loadSpace(ctx, gen, spaceID)
}

func (s *Store) loadSpace(ctx context.Context, gen uint64, spaceID uuid.UUID) error {
	const op = "store.loadSpace"

	channels, err := s.persist.ListChannels(ctx, spaceID)
	if err != nil {
		s.logger.Warn("failed to load channels", zap.String("space_id", spaceID.String()), zap.Error(err))
		return apperr.Persistence(op, err)
	}
	members, err := s.persist.ListMembers(ctx, spaceID)
	if err != nil {
		s.logger.Warn("failed to load members", zap.String("space_id", spaceID.String()), zap.Error(err))
		return apperr.Persistence(op, err)
	}

	s.mu.Lock()
	if gen != s.generation {
		// The user switched spaces while we were loading.
		s.mu.Unlock()
		return nil
	}
	s.dir = directory.New(spaceID, channels)
	s.members = append([]models.Member(nil), members...)
	if s.activeChannel != uuid.Nil && !s.inSpaceLocked(s.activeChannel) {
		s.activeChannel = uuid.Nil
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeChannels}, Change{Kind: ChangeMembers})
	return nil
}

// SetActiveChannel makes channelID the active channel and loads its
// messages on first visit. The reply target is cleared; the draft is kept
// unless Options.ClearDraftOnChannelSwitch is set.
func (s *Store) SetActiveChannel(ctx context.Context, channelID uuid.UUID) error {
	const op = "store.SetActiveChannel"

	s.mu.Lock()
	if s.dir == nil {
		s.mu.Unlock()
		return apperr.Consistency(op, "channels are not loaded")
	}
	if _, ok := s.dir.Get(channelID); !ok {
		s.mu.Unlock()
		return apperr.NotFound(op, "channel not found")
	}
	changed := s.activeChannel != channelID
	s.activeChannel = channelID
	s.replyingTo = nil
	draftCleared := false
	if changed && s.opts.ClearDraftOnChannelSwitch && s.chatInput != "" {
		s.chatInput = ""
		draftCleared = true
	}
	needLoad := !s.logLocked(channelID).loaded
	s.mu.Unlock()

	changes := []Change{{Kind: ChangeActiveChannel}}
	if draftCleared {
		changes = append(changes, Change{Kind: ChangeDraft})
	}
	s.emit(changes...)

	if needLoad {
		return s.LoadMessages(ctx, channelID)
	}
	return nil
}

// LoadMessages fetches the message list of channelID and merges it over
// the cached one. Provisional messages survive the merge.
func (s *Store) LoadMessages(ctx context.Context, channelID uuid.UUID) error {
	const op = "store.LoadMessages"

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	msgs, err := s.persist.ListMessages(ctx, channelID)
	if err != nil {
		s.logger.Warn("failed to load messages", zap.String("channel_id", channelID.String()), zap.Error(err))
		return apperr.Persistence(op, err)
	}

	s.mu.Lock()
	if gen != s.generation || !s.inSpaceLocked(channelID) {
		s.mu.Unlock()
		return nil
	}
	l := s.logLocked(channelID)
	fresh := make([]models.Message, 0, len(msgs)+len(l.msgs))
	for _, m := range msgs {
		fresh = append(fresh, m.Clone())
	}
	l.msgs = mergeLoaded(fresh, l.msgs)
	l.loaded = true
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})
	return nil
}

// mergeLoaded keeps the server list and re-adds local messages the server
// did not return: provisional ones and confirmed ones newer than the page.
func mergeLoaded(server, local []models.Message) []models.Message {
	ids := make(map[int64]struct{}, len(server))
	clientIDs := make(map[string]struct{}, len(server))
	var newest int64
	for _, m := range server {
		ids[m.ID] = struct{}{}
		if m.ClientID != "" {
			clientIDs[m.ClientID] = struct{}{}
		}
		if m.ID > newest {
			newest = m.ID
		}
	}
	for _, m := range local {
		if _, ok := ids[m.ID]; ok {
			continue
		}
		if m.IsProvisional() {
			if _, ok := clientIDs[m.ClientID]; ok {
				continue
			}
			server = append(server, m)
			continue
		}
		if m.ID > newest {
			server = append(server, m)
		}
	}
	return server
}

// ActiveSpace returns the active space, or nil.
func (s *Store) ActiveSpace() *models.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.space == nil {
		return nil
	}
	sp := *s.space
	sp.Members = append([]models.SpaceMember(nil), s.space.Members...)
	return &sp
}

// Channels returns the ordered channel list, or nil before it is loaded.
func (s *Store) Channels() []models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == nil {
		return nil
	}
	return s.dir.List()
}

// ChannelsLoaded reports whether the channel list of the active space is
// available.
func (s *Store) ChannelsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir != nil
}

// ActiveChannel returns the active channel, or nil when none is active.
func (s *Store) ActiveChannel() *models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == nil || s.activeChannel == uuid.Nil {
		return nil
	}
	ch, ok := s.dir.Get(s.activeChannel)
	if !ok {
		return nil
	}
	return &ch
}

// Members returns the roster of the active space.
func (s *Store) Members() []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Member(nil), s.members...)
}

// Role returns the role of the store's user in the active space.
func (s *Store) Role() models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleLocked(s.userID)
}

// ChatInput returns the composer draft.
func (s *Store) ChatInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatInput
}

// SetChatInput replaces the composer draft.
func (s *Store) SetChatInput(text string) {
	s.mu.Lock()
	changed := s.chatInput != text
	s.chatInput = text
	s.mu.Unlock()
	if changed {
		s.emit(Change{Kind: ChangeDraft})
	}
}
