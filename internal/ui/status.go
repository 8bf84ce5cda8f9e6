package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// toast shows msg in the toast line for a few seconds. Must run on the
// event loop.
func (a *App) toast(msg string, isErr bool) {
	view := a.toastView
	color := tagOK
	if isErr {
		color = tagError
	}
	view.SetText(color + tview.Escape(msg) + tagReset)

	a.toastSeq++
	seq := a.toastSeq
	time.AfterFunc(toastDuration, func() {
		a.redraw(func() {
			if a.toastSeq == seq {
				view.SetText("")
			}
		})
	})
}

// refreshStatus redraws the status line: who is signed in, realtime state
// and the unread counters.
func (m *mainScreen) refreshStatus() {
	a := m.a
	who := ""
	if s, ok := a.Session.User(a.ctx); ok {
		who = s.DisplayName
		if s.IsAdmin() {
			who += " (admin)"
		}
	}

	connected, err := a.realtime.status()
	state := tagOK + a.t("ui.status.connected") + tagReset
	if !connected {
		state = tagError + a.t("ui.status.disconnected") + tagReset
		if err != nil {
			state += " " + tagMuted + tview.Escape(err.Error()) + tagReset
		}
		state += " " + tagMuted + a.t("ui.status.retry_hint") + tagReset
	}

	m.statusBar.SetText(fmt.Sprintf(" %s │ %s │ 💬 %d  🔔 %d",
		tview.Escape(who), state, a.Chat.UnreadTotal(), a.Notify.UnreadCount()))
}
