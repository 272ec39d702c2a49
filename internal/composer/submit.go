package composer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/mention"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UploadFailure is a file that could not be uploaded. The message was sent
// without it.
type UploadFailure struct {
	File File
	Err  error
}

// Result is the outcome of a successful submit.
type Result struct {
	Message *models.Message
	Failed  []UploadFailure
}

// Submit uploads the pending files, resolves mentions, and sends the draft
// to the active channel. Uploads run concurrently; a failed upload drops
// that file and the message goes out with the rest. On success the buffer,
// the sent attachments, and the reply target are cleared. On failure
// everything is kept so the user can retry.
func (c *Composer) Submit(ctx context.Context) (*Result, error) {
	const op = "composer.Submit"

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, apperr.Consistency(op, "a message is already being sent")
	}
	raw := string(c.buf)
	text := strings.TrimSpace(raw)
	batch := append([]*pendingFile(nil), c.pending...)
	if text == "" && len(batch) == 0 {
		c.mu.Unlock()
		return nil, apperr.Validation(op, "message is empty")
	}
	channel := c.target.ActiveChannel()
	space := c.target.ActiveSpace()
	if channel == nil || space == nil {
		c.mu.Unlock()
		return nil, apperr.Consistency(op, "no active channel")
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	ids, failed := c.upload(ctx, space.ID, batch)
	if text == "" && len(ids) == 0 {
		errs := make([]error, len(failed))
		for i, f := range failed {
			errs[i] = f.Err
		}
		return nil, apperr.Persistence(op, errors.Join(errs...))
	}

	resolved := mention.Resolve(text, c.target.Members())
	req := models.CreateMessageRequest{
		Text:            text,
		Mentions:        resolved.Mentions,
		MentionEveryone: resolved.MentionEveryone,
		MentionRoles:    resolved.MentionRoles,
		Attachments:     ids,
	}
	if reply := c.target.ReplyingTo(); reply != nil && reply.ChannelID == channel.ID {
		id := reply.ID
		req.ReplyToID = &id
	}

	msg, err := c.target.SendMessage(ctx, channel.ID, req)
	if err != nil {
		c.logger.Warn("send failed, keeping draft",
			zap.String("channel_id", channel.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	c.mu.Lock()
	c.pending = without(c.pending, batch)
	cleared := string(c.buf) == raw
	if cleared {
		c.buf = c.buf[:0]
		c.cursor = 0
		c.resetSuggestLocked()
	}
	c.mu.Unlock()

	if cleared {
		c.target.SetChatInput("")
	}
	if req.ReplyToID != nil {
		if cur := c.target.ReplyingTo(); cur != nil && cur.ID == *req.ReplyToID {
			c.target.ClearReplyingTo()
		}
	}
	return &Result{Message: msg, Failed: failed}, nil
}

// upload sends every file of batch that has no id yet, at most c.limit at a
// time, and returns the ids in batch order.
func (c *Composer) upload(ctx context.Context, spaceID uuid.UUID, batch []*pendingFile) ([]string, []UploadFailure) {
	ids := make([]string, len(batch))
	errs := make([]error, len(batch))
	userID := c.target.UserID()

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, p := range batch {
		c.mu.Lock()
		done := p.id
		c.mu.Unlock()
		if done != "" {
			ids[i] = done
			continue
		}
		i, p := i, p
		g.Go(func() error {
			id, err := c.uploader.Upload(ctx, spaceID, p.file, userID)
			if err != nil {
				errs[i] = err
				return nil
			}
			ids[i] = id
			c.mu.Lock()
			p.id = id
			c.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []string
		failed []UploadFailure
	)
	for i, p := range batch {
		if errs[i] != nil {
			c.logger.Warn("upload failed, sending without file",
				zap.String("file", p.file.Name),
				zap.Error(errs[i]),
			)
			failed = append(failed, UploadFailure{File: p.file, Err: errs[i]})
			continue
		}
		out = append(out, ids[i])
	}
	return out, failed
}

func without(list, drop []*pendingFile) []*pendingFile {
	out := list[:0:0]
	for _, p := range list {
		keep := true
		for _, d := range drop {
			if p == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, p)
		}
	}
	return out
}
