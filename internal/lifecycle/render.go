package lifecycle

import "github.com/lalith-99/huddle/internal/models"

// Placeholder is the text shown in place of a deleted message body.
func Placeholder(deletedBy *models.DeletedBy) string {
	if deletedBy == nil || *deletedBy == models.DeletedByAuthor {
		return DeletedText
	}
	return RemovedTextFmt + string(*deletedBy)
}

// RenderText returns what a view shows as the body of msg.
func RenderText(msg *models.Message) string {
	if msg.DeletedAt != nil {
		return Placeholder(msg.DeletedByRole)
	}
	return msg.Text
}

// RenderReply returns the quote line of a reply. A nil snapshot means the
// target could not be found and renders as unavailable.
func RenderReply(snap *models.ReplySnapshot) string {
	if snap == nil {
		return UnavailableText
	}
	if snap.DeletedAt != nil {
		return Placeholder(snap.DeletedByRole)
	}
	return snap.Text
}
