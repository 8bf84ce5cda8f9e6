package ui

import (
	"strings"

	"github.com/rivo/tview"
)

type overviewScreen struct {
	a    *App
	root *tview.TextView
}

func newOverviewScreen(a *App) *overviewScreen {
	s := &overviewScreen{a: a, root: styledText(a.t("ui.nav.overview"))}
	s.root.SetTextAlign(tview.AlignCenter)
	return s
}

func (s *overviewScreen) refresh() {
	a := s.a
	var b strings.Builder
	b.WriteString("\n\n")
	if self, ok := a.Session.User(a.ctx); ok {
		b.WriteString(a.tf("ui.overview.welcome", tview.Escape(self.DisplayName)))
		b.WriteString("\n\n")
	}
	b.WriteString(a.tf("ui.overview.unread", a.Notify.UnreadCount()))
	b.WriteString("\n")
	b.WriteString(a.tf("ui.overview.rooms", len(a.Chat.Channels()), len(a.Chat.DirectMessages())))
	b.WriteString("\n")
	b.WriteString(a.tf("ui.overview.unread_messages", a.Chat.UnreadTotal()))
	s.root.SetText(b.String())
}
