package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lalith-99/huddle/internal/lifecycle"
	"github.com/lalith-99/huddle/internal/models"
)

const quoteWidth = 60

// formatMessage renders one message as it appears in a terminal transcript:
//
//	#42 3:04 PM Sarah Chen: hello @mike (edited)
//	    ↳ replying to Mike: earlier text
func formatMessage(m models.Message) string {
	var b strings.Builder
	stamp := m.Time
	if stamp == "" && !m.CreatedAt.IsZero() {
		stamp = models.DisplayTime(m.CreatedAt.Local())
	}
	if m.Type == models.MessageTypeSystem {
		fmt.Fprintf(&b, "#%d %s * %s", m.ID, stamp, m.Text)
		return b.String()
	}

	fmt.Fprintf(&b, "#%d %s %s: ", m.ID, stamp, m.Sender)
	if m.IsForwarded() && !m.IsDeleted() {
		fmt.Fprintf(&b, "[forwarded from #%s] ", *m.ForwardedFromChannel)
	}
	b.WriteString(lifecycle.RenderText(&m))
	if m.EditedAt != nil && !m.IsDeleted() {
		b.WriteString(" (edited)")
	}
	if n := len(m.Attachments); n > 0 && !m.IsDeleted() {
		fmt.Fprintf(&b, " [%d %s]", n, plural(n, "attachment", "attachments"))
	}
	if m.ReplyToID != nil {
		sender := "unknown"
		if m.ReplyTo != nil {
			sender = m.ReplyTo.Sender
		}
		fmt.Fprintf(&b, "\n    ↳ replying to %s: %s", sender, truncate(lifecycle.RenderReply(m.ReplyTo), quoteWidth))
	}
	return b.String()
}

// formatChannel renders a channel row; active marks the current channel.
func formatChannel(ch models.Channel, active bool, now time.Time) string {
	marker := " "
	if active {
		marker = "*"
	}
	line := fmt.Sprintf("%s #%-20s %s", marker, ch.Name, ch.ID)
	if !ch.CreatedAt.IsZero() {
		line += "  created " + humanize.RelTime(ch.CreatedAt, now, "ago", "from now")
	}
	if ch.Description != "" {
		line += "\n    " + ch.Description
	}
	return line
}

func formatEvent(evt models.Event) string {
	switch {
	case evt.Message != nil:
		return fmt.Sprintf("[%s] %s", evt.Type, formatMessage(*evt.Message))
	case evt.Channel != nil:
		return fmt.Sprintf("[%s] #%s", evt.Type, evt.Channel.Name)
	}
	return fmt.Sprintf("[%s] %s", evt.Type, evt.ChannelID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
