package ui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	screenOverview      = "overview"
	screenChat          = "chat"
	screenNotifications = "notifications"
	screenAdmin         = "admin"
	screenProfile       = "profile"
)

// mainScreen is the dashboard shell: navigation header, the active screen,
// status line and key help.
type mainScreen struct {
	a *App

	root      *tview.Flex
	header    *tview.TextView
	body      *tview.Pages
	statusBar *tview.TextView
	current   string

	overview *overviewScreen
	chat     *chatScreen
	notes    *notificationsScreen
	admin    *adminScreen
	profile  *profileScreen
}

func newMainScreen(a *App) *mainScreen {
	m := &mainScreen{a: a, body: tview.NewPages()}

	m.header = tview.NewTextView()
	m.header.SetDynamicColors(true)
	m.header.SetBackgroundColor(ColorButton)
	m.header.SetTextColor(ColorTitle)

	m.statusBar = tview.NewTextView()
	m.statusBar.SetDynamicColors(true)
	m.statusBar.SetBackgroundColor(ColorBg)
	m.statusBar.SetTextColor(ColorFg)

	help := tview.NewTextView()
	help.SetBackgroundColor(ColorButton)
	help.SetTextColor(ColorTitle)
	help.SetTextAlign(tview.AlignCenter)
	help.SetText(a.t("ui.help"))

	m.overview = newOverviewScreen(a)
	m.chat = newChatScreen(a)
	m.notes = newNotificationsScreen(a)
	m.admin = newAdminScreen(a)
	m.profile = newProfileScreen(a)

	m.body.AddPage(screenOverview, m.overview.root, true, true)
	m.body.AddPage(screenChat, m.chat.root, true, false)
	m.body.AddPage(screenNotifications, m.notes.root, true, false)
	m.body.AddPage(screenAdmin, m.admin.root, true, false)
	m.body.AddPage(screenProfile, m.profile.root, true, false)

	m.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.header, 1, 0, false).
		AddItem(m.body, 0, 1, true).
		AddItem(m.statusBar, 1, 0, false).
		AddItem(help, 1, 0, false)
	m.root.SetBackgroundColor(ColorBg)

	m.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF2:
			m.show(screenOverview)
		case tcell.KeyF3:
			m.show(screenChat)
		case tcell.KeyF4:
			m.show(screenNotifications)
		case tcell.KeyF5:
			m.show(screenAdmin)
		case tcell.KeyF6:
			m.show(screenProfile)
		case tcell.KeyF7:
			a.realtime.retry()
		case tcell.KeyF9:
			a.logout()
		case tcell.KeyF10:
			a.quit()
		default:
			return event
		}
		return nil
	})
	return m
}

func (m *mainScreen) show(name string) {
	m.current = name
	m.body.SwitchToPage(name)
	m.refreshHeader()
	m.refreshStatus()

	switch name {
	case screenChat:
		m.a.app.SetFocus(m.chat.rooms)
	case screenNotifications:
		m.a.app.SetFocus(m.notes.list)
	case screenAdmin:
		m.a.app.SetFocus(m.admin.users)
		m.admin.load()
	case screenProfile:
		m.a.app.SetFocus(m.profile.form)
		m.profile.load()
	default:
		m.overview.refresh()
	}
}

func (m *mainScreen) refreshHeader() {
	tabs := []struct{ name, key string }{
		{screenOverview, "ui.nav.overview"},
		{screenChat, "ui.nav.chat"},
		{screenNotifications, "ui.nav.notifications"},
		{screenAdmin, "ui.nav.admin"},
		{screenProfile, "ui.nav.profile"},
	}
	text := " " + m.a.t("ui.app_title") + " │"
	for _, tab := range tabs {
		label := m.a.t(tab.key)
		if tab.name == m.current {
			label = fmt.Sprintf("[black:aqua] %s [-:-]", label)
		} else {
			label = " " + label + " "
		}
		text += label
	}
	m.header.SetText(text)
}

// loadAll fetches everything the dashboard shows after sign-in.
func (m *mainScreen) loadAll() {
	a := m.a
	a.async(func(ctx context.Context) error {
		if err := a.Chat.RefreshRooms(ctx); err != nil {
			return err
		}
		return a.Notify.Load(ctx)
	}, func() {
		m.refreshChat()
		m.refreshNotifications()
	}, nil)
}

func (m *mainScreen) refreshChat() {
	m.chat.refresh()
	m.overview.refresh()
	m.refreshStatus()
}

func (m *mainScreen) refreshNotifications() {
	m.notes.refresh()
	m.overview.refresh()
	m.refreshStatus()
}
