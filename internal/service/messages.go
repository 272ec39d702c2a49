package service

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/lifecycle"
	"github.com/lalith-99/huddle/internal/mention"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ListMessages returns one page of a channel in chronological order.
// before=0 is the newest page; otherwise only messages with ID < before.
func (s *Service) ListMessages(ctx context.Context, userID, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	const op = "service.ListMessages"
	if _, _, err := s.channelFor(ctx, op, channelID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	messages, err := s.messages.ListByChannel(ctx, channelID, before, limit)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	slices.Reverse(messages)
	return messages, nil
}

func (s *Service) SendMessage(ctx context.Context, userID, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error) {
	const op = "service.SendMessage"
	ch, role, err := s.channelFor(ctx, op, channelID, userID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.NormalizeCreate(op, &req, s.maxLen); err != nil {
		return nil, s.deny(op, err)
	}

	if req.ReplyToID != nil {
		target, err := s.messages.GetByID(ctx, *req.ReplyToID)
		if err != nil {
			return nil, apperr.Persistence(op, err)
		}
		if target == nil || target.ChannelID != channelID {
			return nil, s.deny(op, apperr.Consistency(op, "reply target is not in this channel"))
		}
		if err := s.auth.Check(op, lifecycle.ActionReply, target, userID, role); err != nil {
			return nil, s.deny(op, err)
		}
	}

	roster, err := s.members.ListMembers(ctx, ch.SpaceID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	mentions := filterMentions(req, roster)

	msg, created, err := s.messages.Create(ctx, channelID, repository.NewMessage{
		SenderID:        userID,
		Type:            models.MessageTypeUser,
		Text:            req.Text,
		Mentions:        mentions.Mentions,
		MentionEveryone: mentions.MentionEveryone,
		MentionRoles:    mentions.MentionRoles,
		Attachments:     req.Attachments,
		ReplyToID:       req.ReplyToID,
		ClientID:        req.ClientID,
	})
	if errors.Is(err, repository.ErrClientIDReused) {
		return nil, s.deny(op, apperr.Consistency(op, err.Error()))
	}
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if !created {
		// A retried send. Everyone was told about it the first time.
		return msg, nil
	}

	s.countMessage("send")
	s.publish(ctx, models.Event{Type: models.EventMessageCreated, SpaceID: ch.SpaceID, ChannelID: channelID, Message: msg})
	if s.notifier != nil && mentions.HasAny() {
		if err := s.notifier.Notify(ctx, ch.SpaceID, *msg); err != nil {
			s.logger.Warn("failed to queue mention notification",
				zap.Int64("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return msg, nil
}

func (s *Service) EditMessage(ctx context.Context, userID uuid.UUID, messageID int64, text string) (*models.Message, error) {
	const op = "service.EditMessage"
	msg, ch, role, err := s.messageFor(ctx, op, messageID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Check(op, lifecycle.ActionEdit, msg, userID, role); err != nil {
		return nil, s.deny(op, err)
	}
	text, err = lifecycle.NormalizeEdit(op, msg, text, s.maxLen)
	if err != nil {
		return nil, s.deny(op, err)
	}

	updated, err := s.messages.UpdateText(ctx, messageID, text, s.auth.Now())
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if updated == nil {
		return nil, s.deny(op, apperr.Consistency(op, "message was deleted"))
	}

	s.countMessage("edit")
	s.publish(ctx, models.Event{Type: models.EventMessageUpdated, SpaceID: ch.SpaceID, ChannelID: ch.ID, Message: updated})
	return updated, nil
}

func (s *Service) DeleteMessage(ctx context.Context, userID uuid.UUID, messageID int64) (*models.Message, error) {
	const op = "service.DeleteMessage"
	msg, ch, role, err := s.messageFor(ctx, op, messageID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Check(op, lifecycle.ActionDelete, msg, userID, role); err != nil {
		return nil, s.deny(op, err)
	}

	at, by := s.auth.DeletionStamp(msg, userID, role)
	deleted, err := s.messages.SoftDelete(ctx, messageID, at, by)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if deleted == nil {
		return nil, s.deny(op, apperr.Consistency(op, "message was already deleted"))
	}

	s.countMessage("delete")
	s.publish(ctx, models.Event{Type: models.EventMessageDeleted, SpaceID: ch.SpaceID, ChannelID: ch.ID, Message: deleted})
	return deleted, nil
}

// ForwardMessage copies the text and attachments of a message into another
// channel of the same space. The copy belongs to the forwarder, records the
// source channel name, and carries no mentions or reply.
func (s *Service) ForwardMessage(ctx context.Context, userID uuid.UUID, messageID int64, targetChannelID uuid.UUID) (*models.Message, error) {
	const op = "service.ForwardMessage"
	msg, src, role, err := s.messageFor(ctx, op, messageID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Check(op, lifecycle.ActionForward, msg, userID, role); err != nil {
		return nil, s.deny(op, err)
	}
	if targetChannelID == src.ID {
		return nil, s.deny(op, apperr.Validation(op, "message is already in that channel"))
	}

	dst, err := s.channels.GetByID(ctx, targetChannelID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if dst == nil || dst.SpaceID != src.SpaceID {
		return nil, s.deny(op, apperr.NotFound(op, "channel not found"))
	}

	from := src.Name
	fwd, _, err := s.messages.Create(ctx, dst.ID, repository.NewMessage{
		SenderID:             userID,
		Type:                 models.MessageTypeUser,
		Text:                 msg.Text,
		Attachments:          msg.Attachments,
		ForwardedFromChannel: &from,
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	s.countMessage("forward")
	s.publish(ctx, models.Event{Type: models.EventMessageCreated, SpaceID: dst.SpaceID, ChannelID: dst.ID, Message: fwd})
	return fwd, nil
}

// filterMentions keeps only mentions that point at current roster members,
// merged with what the text itself resolves to. Clients that skip mention
// resolution still notify the people they tag.
func filterMentions(req models.CreateMessageRequest, roster []models.Member) mention.Result {
	resolved := mention.Resolve(req.Text, roster)

	inRoster := make(map[uuid.UUID]bool, len(roster))
	for _, m := range roster {
		inRoster[m.UserID] = true
	}

	out := mention.Result{
		Mentions:        make([]uuid.UUID, 0, len(req.Mentions)+len(resolved.Mentions)),
		MentionEveryone: req.MentionEveryone || resolved.MentionEveryone,
		MentionRoles:    make([]models.Role, 0, 2),
	}
	seen := make(map[uuid.UUID]bool)
	for _, id := range append(slices.Clone(req.Mentions), resolved.Mentions...) {
		if inRoster[id] && !seen[id] {
			seen[id] = true
			out.Mentions = append(out.Mentions, id)
		}
	}
	for _, r := range append(slices.Clone(req.MentionRoles), resolved.MentionRoles...) {
		if r.IsModerator() && !slices.Contains(out.MentionRoles, r) {
			out.MentionRoles = append(out.MentionRoles, r)
		}
	}
	return out
}
