package ui

import (
	"context"
	"errors"
	"strings"

	"chatflow/client/internal/chat"
	"chatflow/client/internal/forms"
	"chatflow/client/internal/models"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type entryKind int

const (
	entryHeader entryKind = iota
	entryRoom
	entryDiscover
	entryPerson
)

type roomEntry struct {
	kind entryKind
	room models.Room
	user models.User
}

type chatScreen struct {
	a *App

	root     *tview.Flex
	rooms    *tview.List
	messages *tview.TextView
	input    *tview.InputField
	entries  []roomEntry
}

func newChatScreen(a *App) *chatScreen {
	s := &chatScreen{a: a}

	s.rooms = styledList(a.t("ui.nav.chat"))
	s.rooms.ShowSecondaryText(false)
	s.rooms.SetSelectedFunc(func(index int, _, _ string, _ rune) { s.open(index) })

	s.messages = styledText(a.t("ui.chat.no_room"))
	s.messages.SetScrollable(true)
	s.messages.SetWordWrap(true)

	s.input = tview.NewInputField()
	s.input.SetLabel("> ")
	s.input.SetFieldWidth(0)
	s.input.SetBackgroundColor(ColorBg)
	s.input.SetFieldBackgroundColor(ColorField)
	s.input.SetFieldTextColor(ColorFg)
	s.input.SetLabelColor(ColorHighlight)
	s.input.SetBorder(true)
	s.input.SetBorderColor(ColorBorder)
	s.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := s.input.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		s.input.SetText("")
		s.send(text)
	})

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.messages, 0, 1, false).
		AddItem(s.input, 3, 0, true)

	s.root = tview.NewFlex().
		AddItem(s.rooms, 34, 0, true).
		AddItem(right, 0, 1, false)

	s.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyTab:
			if s.rooms.HasFocus() {
				a.app.SetFocus(s.input)
			} else {
				a.app.SetFocus(s.rooms)
			}
			return nil
		case tcell.KeyCtrlN:
			s.showCreateChannel()
			return nil
		case tcell.KeyCtrlR:
			s.reload()
			return nil
		}
		return event
	})
	return s
}

func (s *chatScreen) self() models.ID {
	if u, ok := s.a.Session.User(s.a.ctx); ok {
		return u.ID
	}
	return ""
}

func (s *chatScreen) refresh() {
	a := s.a
	self := s.self()

	s.entries = s.entries[:0]
	header := func(key string) {
		s.entries = append(s.entries, roomEntry{kind: entryHeader, room: models.Room{Name: a.t(key)}})
	}
	header("ui.chat.channels")
	for _, r := range a.Chat.Channels() {
		s.entries = append(s.entries, roomEntry{kind: entryRoom, room: r})
	}
	header("ui.chat.direct")
	for _, r := range a.Chat.DirectMessages() {
		s.entries = append(s.entries, roomEntry{kind: entryRoom, room: r})
	}
	header("ui.chat.discover")
	for _, r := range a.Chat.Discover() {
		s.entries = append(s.entries, roomEntry{kind: entryDiscover, room: r})
	}
	header("ui.chat.people")
	for _, u := range a.Chat.Users() {
		s.entries = append(s.entries, roomEntry{kind: entryPerson, user: u})
	}

	current := s.rooms.GetCurrentItem()
	s.rooms.Clear()
	for _, e := range s.entries {
		switch e.kind {
		case entryHeader:
			s.rooms.AddItem("[::b]"+tview.Escape(e.room.Name)+"[::-]", "", 0, nil)
		case entryRoom:
			s.rooms.AddItem("  "+roomLabel(e.room, self, a.Chat.Unread(e.room.ID)), "", 0, nil)
		case entryDiscover:
			s.rooms.AddItem("  "+roomLabel(e.room, self, 0)+" "+tagMuted+a.t("ui.chat.join")+tagReset, "", 0, nil)
		case entryPerson:
			s.rooms.AddItem("  "+tview.Escape(userLabel(e.user)), "", 0, nil)
		}
	}
	if current < s.rooms.GetItemCount() {
		s.rooms.SetCurrentItem(current)
	}

	room, ok := a.Chat.Selected()
	if !ok {
		s.messages.SetTitle(" " + a.t("ui.chat.no_room") + " ")
		s.messages.SetText("")
		return
	}
	s.messages.SetTitle(" " + tview.Escape(room.Title(self)) + " ")

	var b strings.Builder
	if err := a.Chat.Err(); err != nil {
		b.WriteString(tagError + tview.Escape(err.Error()) + tagReset + "\n")
	}
	sending := a.t("ui.chat.sending")
	for _, m := range a.Chat.Visible() {
		b.WriteString(messageLine(m, self, sending))
		b.WriteString("\n")
	}
	s.messages.SetText(b.String())
	s.messages.ScrollToEnd()
}

func (s *chatScreen) open(index int) {
	if index < 0 || index >= len(s.entries) {
		return
	}
	a := s.a
	e := s.entries[index]

	switch e.kind {
	case entryRoom:
		a.async(func(ctx context.Context) error {
			return a.Chat.SelectRoom(ctx, e.room)
		}, nil, nil)
		a.app.SetFocus(s.input)

	case entryDiscover:
		var status models.JoinStatus
		a.async(func(ctx context.Context) error {
			jr, err := a.API.RequestJoin(ctx, e.room.ID)
			if err != nil {
				return err
			}
			status = jr.Status
			return a.Chat.RefreshRooms(ctx)
		}, func() {
			if status == models.JoinApproved {
				a.toast(a.t("toast.join_approved"), false)
			} else {
				a.toast(a.t("toast.join_requested"), false)
			}
		}, nil)

	case entryPerson:
		a.async(func(ctx context.Context) error {
			room, err := a.API.CreateDirectMessage(ctx, e.user.ID)
			if err != nil {
				return err
			}
			if err := a.Chat.RefreshRooms(ctx); err != nil {
				return err
			}
			return a.Chat.SelectRoom(ctx, room)
		}, func() { a.app.SetFocus(s.input) }, nil)
	}
}

func (s *chatScreen) send(text string) {
	a := s.a
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		err := a.Chat.Submit(ctx, text)
		if err == nil || errors.Is(err, chat.ErrEmptyMessage) {
			return
		}
		msg := err.Error()
		if errors.Is(err, chat.ErrNoRoom) {
			msg = a.t("ui.chat.no_room")
		}
		a.redraw(func() { a.toast(msg, true) })
	}()
}

func (s *chatScreen) reload() {
	a := s.a
	a.async(func(ctx context.Context) error {
		if err := a.Chat.RefreshRooms(ctx); err != nil {
			return err
		}
		if _, ok := a.Chat.Selected(); ok {
			return a.Chat.Refresh(ctx)
		}
		return nil
	}, nil, nil)
}

const createChannelPage = "create-channel"

func (s *chatScreen) showCreateChannel() {
	a := s.a
	form := styledForm(a.t("ui.chat.new_channel"))
	errs := errorLine()

	form.AddInputField(a.t("ui.field.channel_name"), "", 30, nil, nil)
	form.AddInputField(a.t("ui.field.description"), "", 30, nil, nil)
	form.AddCheckbox(a.t("ui.field.private"), false, nil)

	form.AddButton(a.t("ui.button.create"), func() {
		f := forms.Channel{
			Name:        form.GetFormItem(0).(*tview.InputField).GetText(),
			Description: form.GetFormItem(1).(*tview.InputField).GetText(),
			Private:     form.GetFormItem(2).(*tview.Checkbox).IsChecked(),
		}
		var created models.Room
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				room, err := a.API.CreateRoom(ctx, f.Input())
				if err != nil {
					return err
				}
				created = room
				if err := a.Chat.RefreshRooms(ctx); err != nil {
					return err
				}
				return a.Chat.SelectRoom(ctx, created)
			})
		}, func() {
			a.closeModal(createChannelPage)
			a.toast(a.t("toast.channel_created"), false)
			a.app.SetFocus(s.input)
		}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.cancel"), func() {
		a.closeModal(createChannelPage)
		a.app.SetFocus(s.rooms)
	})

	a.showModal(createChannelPage, formWithErrors(form, errs), 56, 15)
}
