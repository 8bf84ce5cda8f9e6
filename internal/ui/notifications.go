package ui

import (
	"context"

	"chatflow/client/internal/forms"
	"chatflow/client/internal/models"
	"chatflow/client/internal/notify"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type notificationsScreen struct {
	a *App

	root   *tview.Flex
	tabs   *tview.TextView
	list   *tview.List
	shown  []models.Notification
	footer *tview.TextView
}

func newNotificationsScreen(a *App) *notificationsScreen {
	s := &notificationsScreen{a: a}

	s.tabs = tview.NewTextView()
	s.tabs.SetDynamicColors(true)
	s.tabs.SetBackgroundColor(ColorBg)

	s.list = styledList(a.t("ui.nav.notifications"))
	s.list.SetSecondaryTextColor(ColorFg)
	s.list.SetSelectedFunc(func(index int, _, _ string, _ rune) { s.markRead(index) })

	s.footer = tview.NewTextView()
	s.footer.SetBackgroundColor(ColorBg)
	s.footer.SetTextColor(ColorHighlight)
	s.footer.SetText(a.t("ui.notifications.keys"))

	s.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.tabs, 1, 0, false).
		AddItem(s.list, 0, 1, true).
		AddItem(s.footer, 1, 0, false)

	s.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		index := s.list.GetCurrentItem()
		switch event.Rune() {
		case '1':
			a.Notify.SetFilter(notify.FilterAll)
		case '2':
			a.Notify.SetFilter(notify.FilterUnread)
		case '3':
			a.Notify.SetFilter(notify.FilterRead)
		case 'm':
			s.markAll()
		case 'd':
			s.remove(index)
		case 'a':
			s.decide(index, true)
		case 'r':
			s.decide(index, false)
		case 'n':
			s.showCreate()
		default:
			if event.Key() == tcell.KeyDelete {
				s.remove(index)
				return nil
			}
			return event
		}
		return nil
	})
	return s
}

func (s *notificationsScreen) refresh() {
	a := s.a
	active := a.Notify.Filter()
	tab := func(f notify.Filter, key string) string {
		label := a.t(key)
		if f == active {
			return "[black:aqua] " + label + " [-:-]"
		}
		return " " + label + " "
	}
	s.tabs.SetText(tab(notify.FilterAll, "ui.notifications.all") +
		tab(notify.FilterUnread, "ui.notifications.unread") +
		tab(notify.FilterRead, "ui.notifications.read"))

	current := s.list.GetCurrentItem()
	s.shown = a.Notify.Items()
	s.list.Clear()
	if len(s.shown) == 0 {
		s.list.AddItem(tagMuted+a.t("ui.notifications.empty")+tagReset, "", 0, nil)
		return
	}
	for _, n := range s.shown {
		s.list.AddItem(notificationLine(n), tview.Escape(notificationDetail(n)), 0, nil)
	}
	if current < len(s.shown) {
		s.list.SetCurrentItem(current)
	}
}

func (s *notificationsScreen) at(index int) (models.Notification, bool) {
	if index < 0 || index >= len(s.shown) {
		return models.Notification{}, false
	}
	return s.shown[index], true
}

func (s *notificationsScreen) markRead(index int) {
	n, ok := s.at(index)
	if !ok || n.Read {
		return
	}
	s.a.async(func(ctx context.Context) error { return s.a.Notify.MarkRead(ctx, n.ID) }, nil, nil)
}

func (s *notificationsScreen) markAll() {
	s.a.async(s.a.Notify.MarkAllRead, nil, nil)
}

func (s *notificationsScreen) remove(index int) {
	n, ok := s.at(index)
	if !ok {
		return
	}
	s.a.async(func(ctx context.Context) error { return s.a.Notify.Delete(ctx, n.ID) }, nil, nil)
}

// decide approves or rejects the join request a JOIN_REQUEST notification
// refers to, then marks the notification read.
func (s *notificationsScreen) decide(index int, approve bool) {
	n, ok := s.at(index)
	if !ok || n.Type != models.NotificationJoin || n.ReferenceID.IsZero() {
		return
	}
	a := s.a
	f := forms.JoinDecision{RequestID: n.ReferenceID}
	a.async(func(ctx context.Context) error {
		return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
			var err error
			if approve {
				_, err = a.API.ApproveJoin(ctx, f.RequestID)
			} else {
				_, err = a.API.RejectJoin(ctx, f.RequestID)
			}
			if err != nil {
				return err
			}
			if !n.Read {
				return a.Notify.MarkRead(ctx, n.ID)
			}
			return nil
		})
	}, func() {
		if approve {
			a.toast(a.t("toast.join_approved"), false)
		} else {
			a.toast(a.t("toast.join_rejected"), false)
		}
	}, nil)
}

const createNotificationPage = "create-notification"

// showCreate is the admin form for sending a notification to one user.
func (s *notificationsScreen) showCreate() {
	a := s.a
	var users []models.User
	a.async(func(ctx context.Context) error {
		var err error
		users, err = a.API.Users(ctx)
		return err
	}, func() { s.createForm(users) }, nil)
}

func (s *notificationsScreen) createForm(users []models.User) {
	a := s.a
	form := styledForm(a.t("ui.notifications.create"))
	errs := errorLine()

	types := make([]string, 0, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		types = append(types, string(t))
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, userLabel(u))
	}

	form.AddInputField(a.t("ui.field.title"), "", 36, nil, nil)
	form.AddInputField(a.t("ui.field.message"), "", 36, nil, nil)
	form.AddDropDown(a.t("ui.field.type"), types, 0, nil)
	form.AddDropDown(a.t("ui.field.user"), names, -1, nil)

	form.AddButton(a.t("ui.button.send"), func() {
		_, typ := form.GetFormItem(2).(*tview.DropDown).GetCurrentOption()
		userIndex, _ := form.GetFormItem(3).(*tview.DropDown).GetCurrentOption()
		f := forms.Notification{
			Title:   form.GetFormItem(0).(*tview.InputField).GetText(),
			Message: form.GetFormItem(1).(*tview.InputField).GetText(),
			Type:    typ,
		}
		if userIndex >= 0 && userIndex < len(users) {
			f.UserID = users[userIndex].ID
		}
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				_, err := a.Notify.Create(ctx, f.Input())
				return err
			})
		}, func() {
			a.closeModal(createNotificationPage)
			a.toast(a.t("toast.notification_created"), false)
			a.app.SetFocus(s.list)
		}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.cancel"), func() {
		a.closeModal(createNotificationPage)
		a.app.SetFocus(s.list)
	})

	a.showModal(createNotificationPage, formWithErrors(form, errs), 60, 17)
}
