package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/lifecycle"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// CurrentMessages returns the messages of the active channel ordered by
// creation time, stable by insertion for equal timestamps. Reply quotes are
// refreshed from the live list, so a reply to a message deleted later shows
// the deletion placeholder.
func (s *Store) CurrentMessages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeChannel == uuid.Nil {
		return nil
	}
	return s.messagesLocked(s.activeChannel)
}

// Messages returns the cached messages of any channel of the active space,
// in the same order as CurrentMessages.
func (s *Store) Messages(channelID uuid.UUID) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked(channelID)
}

func (s *Store) messagesLocked(channelID uuid.UUID) []models.Message {
	l, ok := s.logs[channelID]
	if !ok {
		return []models.Message{}
	}

	byID := make(map[int64]*models.Message, len(l.msgs))
	for i := range l.msgs {
		byID[l.msgs[i].ID] = &l.msgs[i]
	}

	out := make([]models.Message, 0, len(l.msgs))
	for _, m := range l.msgs {
		c := m.Clone()
		if c.ReplyToID != nil {
			if target, ok := byID[*c.ReplyToID]; ok {
				c.ReplyTo = target.Snapshot()
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Message returns a copy of message id from any cached channel.
func (s *Store) Message(id int64) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, i := s.findLocked(id)
	if l == nil {
		return models.Message{}, false
	}
	return l.msgs[i].Clone(), true
}

// Permissions evaluates the lifecycle authority for the store's user on
// message id. It is computed on every call.
func (s *Store) Permissions(id int64) lifecycle.Permissions {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, i := s.findLocked(id)
	if l == nil {
		return lifecycle.Permissions{}
	}
	return s.auth.Evaluate(&l.msgs[i], s.userID, s.roleLocked(s.userID))
}

// SetReplyingTo marks message id of the active channel as the reply target
// of the next send.
func (s *Store) SetReplyingTo(id int64) error {
	const op = "store.SetReplyingTo"

	s.mu.Lock()
	l, i := s.findLocked(id)
	if l == nil || l.msgs[i].ChannelID != s.activeChannel {
		s.mu.Unlock()
		return apperr.Consistency(op, "message is not in the active channel")
	}
	msg := &l.msgs[i]
	if err := s.auth.Check(op, lifecycle.ActionReply, msg, s.userID, s.roleLocked(s.userID)); err != nil {
		s.mu.Unlock()
		return err
	}
	target := msg.ID
	s.replyingTo = &target
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeDraft})
	return nil
}

// ReplyingTo returns the current reply target, or nil.
func (s *Store) ReplyingTo() *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replyingTo == nil {
		return nil
	}
	l, i := s.findLocked(*s.replyingTo)
	if l == nil {
		return nil
	}
	m := l.msgs[i].Clone()
	return &m
}

// ClearReplyingTo drops the reply target.
func (s *Store) ClearReplyingTo() {
	s.mu.Lock()
	had := s.replyingTo != nil
	s.replyingTo = nil
	s.mu.Unlock()
	if had {
		s.emit(Change{Kind: ChangeDraft})
	}
}

// SendMessage posts req to channelID. A provisional copy is shown at once
// and replaced by the server's record when the call returns. On failure
// the provisional copy is withdrawn and a persistence error is returned;
// the caller keeps the draft.
func (s *Store) SendMessage(ctx context.Context, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error) {
	const op = "store.SendMessage"

	if err := lifecycle.NormalizeCreate(op, &req, s.opts.MaxTextLength); err != nil {
		return nil, err
	}
	req.SenderID = s.userID
	if req.ClientID == "" {
		req.ClientID = ulid.Make().String()
	}

	s.mu.Lock()
	if !s.inSpaceLocked(channelID) {
		s.mu.Unlock()
		return nil, apperr.NotFound(op, "channel not found")
	}
	var quote *models.ReplySnapshot
	if req.ReplyToID != nil {
		l, i := s.findLocked(*req.ReplyToID)
		if l == nil || l.msgs[i].ChannelID != channelID {
			s.mu.Unlock()
			return nil, apperr.Consistency(op, "reply target is not in this channel")
		}
		target := &l.msgs[i]
		if err := s.auth.Check(op, lifecycle.ActionReply, target, s.userID, s.roleLocked(s.userID)); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		targetID := target.ID
		req.ReplyToID = &targetID
		quote = target.Snapshot()
	}

	s.nextTempID--
	tempID := s.nextTempID
	now := s.now()
	self, _ := s.memberLocked(s.userID)
	provisional := models.Message{
		ID:              tempID,
		ChannelID:       channelID,
		SenderID:        s.userID,
		Sender:          self.Name,
		Avatar:          self.Avatar,
		Text:            req.Text,
		CreatedAt:       now,
		Time:            models.DisplayTime(now),
		Type:            models.MessageTypeUser,
		Mentions:        req.Mentions,
		MentionEveryone: req.MentionEveryone,
		MentionRoles:    req.MentionRoles,
		Attachments:     req.Attachments,
		ReplyToID:       req.ReplyToID,
		ReplyTo:         quote,
		ClientID:        req.ClientID,
	}
	l := s.logLocked(channelID)
	l.msgs = append(l.msgs, provisional.Clone())
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})

	saved, err := s.persist.SendMessage(ctx, channelID, req)
	if err != nil {
		s.mu.Lock()
		s.dropLocked(channelID, tempID)
		s.mu.Unlock()
		s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})
		s.logger.Warn("send failed", zap.String("channel_id", channelID.String()), zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}

	s.mu.Lock()
	s.confirmed[tempID] = saved.ID
	if s.inSpaceLocked(channelID) {
		s.upsertLocked(*saved)
	}
	if s.replyingTo != nil && req.ReplyToID != nil && *s.replyingTo == *req.ReplyToID {
		s.replyingTo = nil
	}
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})

	out := saved.Clone()
	return &out, nil
}

// UpdateMessage replaces the text of message id on behalf of userID. The
// edit is applied optimistically and rolled back if the server rejects it.
func (s *Store) UpdateMessage(ctx context.Context, id int64, newText string, userID uuid.UUID) (*models.Message, error) {
	const op = "store.UpdateMessage"

	s.mu.Lock()
	l, i := s.findLocked(id)
	if l == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(op, "message not found")
	}
	msg := &l.msgs[i]
	if err := s.auth.Check(op, lifecycle.ActionEdit, msg, userID, s.roleLocked(userID)); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	text, err := lifecycle.NormalizeEdit(op, msg, newText, s.opts.MaxTextLength)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	prev := msg.Clone()
	editedAt := s.now()
	msg.Text = text
	msg.EditedAt = &editedAt
	channelID, realID := msg.ChannelID, msg.ID
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})

	saved, err := s.persist.UpdateMessage(ctx, realID, text)
	if err != nil {
		s.rollback(prev, func(cur *models.Message) bool {
			return cur.EditedAt != nil && cur.EditedAt.Equal(editedAt) && cur.Text == text
		})
		s.logger.Warn("edit failed", zap.Int64("message_id", realID), zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}

	s.mu.Lock()
	s.upsertLocked(*saved)
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})

	out := saved.Clone()
	return &out, nil
}

// DeleteMessage soft-deletes message id on behalf of userID. The message
// stays in the list so replies to it keep rendering.
func (s *Store) DeleteMessage(ctx context.Context, id int64, userID uuid.UUID) (*models.Message, error) {
	const op = "store.DeleteMessage"

	s.mu.Lock()
	l, i := s.findLocked(id)
	if l == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(op, "message not found")
	}
	msg := &l.msgs[i]
	role := s.roleLocked(userID)
	if err := s.auth.Check(op, lifecycle.ActionDelete, msg, userID, role); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	prev := msg.Clone()
	deletedAt, by := s.auth.DeletionStamp(msg, userID, role)
	msg.DeletedAt = &deletedAt
	msg.DeletedByRole = &by
	channelID, realID := msg.ChannelID, msg.ID
	if s.replyingTo != nil && *s.replyingTo == realID {
		s.replyingTo = nil
	}
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})

	saved, err := s.persist.DeleteMessage(ctx, realID)
	if err != nil {
		s.rollback(prev, func(cur *models.Message) bool {
			return cur.DeletedAt != nil && cur.DeletedAt.Equal(deletedAt)
		})
		s.logger.Warn("delete failed", zap.Int64("message_id", realID), zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}

	s.mu.Lock()
	s.upsertLocked(*saved)
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: channelID})

	out := saved.Clone()
	return &out, nil
}

// ForwardMessage copies message id into targetChannelID as a new message.
// The copy keeps text and attachments, drops mentions, and records the
// source channel's name.
func (s *Store) ForwardMessage(ctx context.Context, id int64, targetChannelID uuid.UUID, userID uuid.UUID) (*models.Message, error) {
	const op = "store.ForwardMessage"

	s.mu.Lock()
	l, i := s.findLocked(id)
	if l == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(op, "message not found")
	}
	msg := &l.msgs[i]
	if err := s.auth.Check(op, lifecycle.ActionForward, msg, userID, s.roleLocked(userID)); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !s.inSpaceLocked(targetChannelID) {
		s.mu.Unlock()
		return nil, apperr.NotFound(op, "target channel not found")
	}
	if targetChannelID == msg.ChannelID {
		s.mu.Unlock()
		return nil, apperr.Validation(op, "cannot forward a message into its own channel")
	}
	realID := msg.ID
	s.mu.Unlock()

	saved, err := s.persist.ForwardMessage(ctx, realID, targetChannelID)
	if err != nil {
		s.logger.Warn("forward failed", zap.Int64("message_id", realID), zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}

	s.mu.Lock()
	if s.inSpaceLocked(saved.ChannelID) {
		s.upsertLocked(*saved)
	}
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeMessages, ChannelID: saved.ChannelID})

	out := saved.Clone()
	return &out, nil
}

// rollback restores prev if the stored copy still looks like our
// optimistic write. A newer server copy is never overwritten.
func (s *Store) rollback(prev models.Message, stillOurs func(*models.Message) bool) {
	s.mu.Lock()
	l, i := s.findLocked(prev.ID)
	restored := false
	if l != nil && stillOurs(&l.msgs[i]) {
		l.msgs[i] = prev
		restored = true
	}
	s.mu.Unlock()
	if restored {
		s.emit(Change{Kind: ChangeMessages, ChannelID: prev.ChannelID})
	}
}

// upsertLocked merges a server-confirmed message. It replaces the copy with
// the same id, else the provisional copy with the same client id, else it
// appends.
func (s *Store) upsertLocked(m models.Message) {
	l := s.logLocked(m.ChannelID)
	for i := range l.msgs {
		if l.msgs[i].ID == m.ID {
			l.msgs[i] = m.Clone()
			return
		}
	}
	if m.ClientID != "" {
		for i := range l.msgs {
			if l.msgs[i].IsProvisional() && l.msgs[i].ClientID == m.ClientID {
				s.confirmed[l.msgs[i].ID] = m.ID
				l.msgs[i] = m.Clone()
				return
			}
		}
	}
	l.msgs = append(l.msgs, m.Clone())
}

func (s *Store) dropLocked(channelID uuid.UUID, id int64) {
	l, ok := s.logs[channelID]
	if !ok {
		return
	}
	for i := range l.msgs {
		if l.msgs[i].ID == id {
			l.msgs = append(l.msgs[:i], l.msgs[i+1:]...)
			return
		}
	}
}
