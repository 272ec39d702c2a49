// Package lifecycle is the single authorization oracle for message actions.
//
// Views ask Evaluate which actions to render; the read-model and the server
// service call Check before every mutation. The edit window is relative to
// the current time, so results must never be cached between renders.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
)

// DefaultEditWindow is how long an author may edit or delete their own
// message after posting it.
const DefaultEditWindow = 15 * time.Minute

// Placeholder texts shown in place of deleted message bodies.
const (
	DeletedText     = "This message was deleted"
	RemovedTextFmt  = "This message was removed by "
	UnavailableText = "message unavailable"
)

type Action string

const (
	ActionReply   Action = "reply"
	ActionForward Action = "forward"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
)

// Permissions is the action set a user has on one message at one instant.
type Permissions struct {
	CanReply   bool `json:"can_reply"`
	CanForward bool `json:"can_forward"`
	CanEdit    bool `json:"can_edit"`
	CanDelete  bool `json:"can_delete"`
}

// Allows reports whether action a is in the set.
func (p Permissions) Allows(a Action) bool {
	switch a {
	case ActionReply:
		return p.CanReply
	case ActionForward:
		return p.CanForward
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	}
	return false
}

// Evaluate computes the permitted actions of userID (holding role in the
// message's space) on msg at time now.
func Evaluate(msg *models.Message, userID uuid.UUID, role models.Role, now time.Time, window time.Duration) Permissions {
	live := msg.Type == models.MessageTypeUser && msg.DeletedAt == nil
	if !live || msg.IsProvisional() {
		return Permissions{}
	}

	isAuthor := msg.SenderID == userID
	withinWindow := now.Sub(msg.CreatedAt) < window
	canEdit := isAuthor && withinWindow && !msg.IsForwarded()

	return Permissions{
		CanReply:   true,
		CanForward: true,
		CanEdit:    canEdit,
		CanDelete:  canEdit || role.IsModerator(),
	}
}

// Authority binds Evaluate to a clock and an edit window.
type Authority struct {
	window time.Duration
	now    func() time.Time
}

// New returns an Authority using the wall clock. A zero window means
// DefaultEditWindow.
func New(window time.Duration) *Authority {
	if window <= 0 {
		window = DefaultEditWindow
	}
	return &Authority{window: window, now: time.Now}
}

// WithClock returns a copy of a that reads time from now.
func (a *Authority) WithClock(now func() time.Time) *Authority {
	return &Authority{window: a.window, now: now}
}

func (a *Authority) Now() time.Time {
	return a.now()
}

func (a *Authority) EditWindow() time.Duration {
	return a.window
}

// Evaluate is the package-level Evaluate at the authority's current time.
func (a *Authority) Evaluate(msg *models.Message, userID uuid.UUID, role models.Role) Permissions {
	return Evaluate(msg, userID, role, a.now(), a.window)
}

// Check returns a permission error describing why action is not allowed,
// or nil when it is.
func (a *Authority) Check(op string, action Action, msg *models.Message, userID uuid.UUID, role models.Role) error {
	if a.Evaluate(msg, userID, role).Allows(action) {
		return nil
	}
	return apperr.Permission(op, denialReason(action, msg, userID, a.now(), a.window))
}

// DeletionStamp returns the soft-delete fields for userID deleting msg now.
func (a *Authority) DeletionStamp(msg *models.Message, userID uuid.UUID, role models.Role) (time.Time, models.DeletedBy) {
	if msg.SenderID == userID {
		return a.now(), models.DeletedByAuthor
	}
	return a.now(), models.DeletedBy(role)
}

func denialReason(action Action, msg *models.Message, userID uuid.UUID, now time.Time, window time.Duration) string {
	switch {
	case msg.Type == models.MessageTypeSystem:
		return "system messages have no actions"
	case msg.DeletedAt != nil:
		return "message has been deleted"
	case msg.IsProvisional():
		return "message has not been sent yet"
	}
	switch action {
	case ActionEdit:
		if msg.SenderID != userID {
			return "only the author can edit a message"
		}
		if msg.IsForwarded() {
			return "forwarded messages cannot be edited"
		}
		if now.Sub(msg.CreatedAt) >= window {
			return "edit window has closed"
		}
	case ActionDelete:
		if msg.SenderID != userID {
			return "only the author or a moderator can delete a message"
		}
		if msg.IsForwarded() {
			return "forwarded messages can only be removed by a moderator"
		}
		if now.Sub(msg.CreatedAt) >= window {
			return "edit window has closed"
		}
	}
	return "action not allowed"
}
