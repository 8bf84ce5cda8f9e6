package ui

import (
	"fmt"
	"strings"
	"time"

	"chatflow/client/internal/models"

	"github.com/rivo/tview"
)

// messageLine renders one chat line. Optimistic entries carry the sending
// marker until their server copy replaces them.
func messageLine(m models.Message, self models.ID, sending string) string {
	name := m.Sender.DisplayName()
	if name == "" {
		name = m.SenderID.String()
	}
	color := tagOther
	if !self.IsZero() && m.SenderID == self {
		color = tagSelf
	}

	var b strings.Builder
	b.WriteString(tagMuted)
	b.WriteString(clock(m.CreatedAt.Time))
	b.WriteString(tagReset)
	b.WriteString(" ")
	b.WriteString(color)
	b.WriteString(tview.Escape(name))
	b.WriteString(tagReset)
	b.WriteString(": ")
	b.WriteString(tview.Escape(m.Content))
	if m.Optimistic {
		b.WriteString(" ")
		b.WriteString(tagMuted)
		b.WriteString(sending)
		b.WriteString(tagReset)
	}
	return b.String()
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

// roomLabel is a room list entry with its unread badge.
func roomLabel(r models.Room, self models.ID, unread int) string {
	prefix := "# "
	if r.Kind() == models.RoomDirect {
		prefix = "@ "
	} else if r.IsPrivate {
		prefix = "🔒 "
	}
	label := prefix + tview.Escape(r.Title(self))
	if unread > 0 {
		label += fmt.Sprintf(" %s(%d)%s", tagUnreadDot, unread, tagReset)
	}
	return label
}

// notificationLine renders a notification list entry.
func notificationLine(n models.Notification) string {
	mark := tagUnreadDot + "●" + tagReset
	if n.Read {
		mark = tagMuted + "○" + tagReset
	}
	return fmt.Sprintf("%s %s · %s", mark, tview.Escape(string(n.Type)), tview.Escape(n.Title))
}

// notificationDetail is the secondary line of a notification entry.
func notificationDetail(n models.Notification) string {
	when := ""
	if !n.CreatedAt.IsZero() {
		when = n.CreatedAt.Local().Format("2006-01-02 15:04") + "  "
	}
	return when + n.Message
}

func userLabel(u models.User) string {
	label := u.DisplayName()
	if u.IsAdmin() {
		label += " (admin)"
	}
	return label
}
