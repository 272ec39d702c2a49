package lifecycle

import (
	"fmt"
	"strings"

	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
)

const (
	// MaxAttachments caps the files on a single message.
	MaxAttachments = 5

	// DefaultMaxTextLength caps message bodies, counted in runes.
	DefaultMaxTextLength = 4000
)

// NormalizeCreate trims the text of req and rejects requests that would
// produce an empty, oversized, or over-attached message.
func NormalizeCreate(op string, req *models.CreateMessageRequest, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && len(req.Attachments) == 0 {
		return apperr.Validation(op, "message is empty")
	}
	if n := len([]rune(req.Text)); n > maxLen {
		return apperr.Validation(op, fmt.Sprintf("message is too long (%d > %d characters)", n, maxLen))
	}
	if len(req.Attachments) > MaxAttachments {
		return apperr.Validation(op, fmt.Sprintf("at most %d attachments per message", MaxAttachments))
	}
	return nil
}

// NormalizeEdit trims replacement text for msg. An edit may only empty the
// text when the message still carries attachments.
func NormalizeEdit(op string, msg *models.Message, text string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	text = strings.TrimSpace(text)
	if text == "" && len(msg.Attachments) == 0 {
		return "", apperr.Validation(op, "message is empty")
	}
	if n := len([]rune(text)); n > maxLen {
		return "", apperr.Validation(op, fmt.Sprintf("message is too long (%d > %d characters)", n, maxLen))
	}
	return text, nil
}
