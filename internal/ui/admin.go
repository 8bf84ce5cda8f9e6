package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatflow/client/internal/forms"
	"chatflow/client/internal/models"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// adminScreen lists users and rooms and carries the administrator actions:
// bulk room deletion, join request decisions and workspace management.
type adminScreen struct {
	a *App

	root       *tview.Flex
	users      *tview.List
	rooms      *tview.List
	workspaces *tview.TextView

	roomList []models.Room
	selected map[models.ID]bool
}

func newAdminScreen(a *App) *adminScreen {
	s := &adminScreen{a: a, selected: make(map[models.ID]bool)}

	s.users = styledList(a.t("ui.admin.users"))
	s.rooms = styledList(a.t("ui.admin.rooms"))
	s.rooms.ShowSecondaryText(false)
	s.rooms.SetSelectedFunc(func(index int, _, _ string, _ rune) { s.toggle(index) })
	s.workspaces = styledText(a.t("ui.admin.workspaces"))
	s.workspaces.SetScrollable(true)

	footer := tview.NewTextView()
	footer.SetBackgroundColor(ColorBg)
	footer.SetTextColor(ColorHighlight)
	footer.SetText(a.t("ui.admin.keys"))

	panes := tview.NewFlex().
		AddItem(s.users, 0, 1, true).
		AddItem(s.rooms, 0, 1, false).
		AddItem(s.workspaces, 0, 1, false)

	s.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(panes, 0, 1, true).
		AddItem(footer, 1, 0, false)

	s.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyTab {
			switch {
			case s.users.HasFocus():
				a.app.SetFocus(s.rooms)
			case s.rooms.HasFocus():
				a.app.SetFocus(s.workspaces)
			default:
				a.app.SetFocus(s.users)
			}
			return nil
		}
		switch event.Rune() {
		case 'x':
			s.deleteSelected()
		case 'j':
			s.showJoinDecision()
		case 'w':
			s.showCreateWorkspace()
		case 'i':
			s.showInvite()
		case 'g':
			s.load()
		default:
			return event
		}
		return nil
	})
	return s
}

func (s *adminScreen) isAdmin() bool {
	u, ok := s.a.Session.User(s.a.ctx)
	return ok && u.IsAdmin()
}

// requireAdmin toasts and reports false for non-administrators.
func (s *adminScreen) requireAdmin() bool {
	if s.isAdmin() {
		return true
	}
	s.a.toast(s.a.t("ui.admin.only"), true)
	return false
}

func (s *adminScreen) load() {
	a := s.a
	admin := s.isAdmin()

	var (
		users       []models.User
		rooms       []models.Room
		workspaces  []models.Workspace
		invitations []models.Invitation
	)
	a.async(func(ctx context.Context) error {
		var err error
		if users, err = a.API.Users(ctx); err != nil {
			return err
		}
		if rooms, err = a.API.MyRooms(ctx); err != nil {
			return err
		}
		// Workspace queries are optional on older servers.
		if admin {
			if workspaces, err = a.API.Workspaces(ctx); err != nil {
				a.Log.WithError(err).Debug("workspaces unavailable")
			}
			if invitations, err = a.API.WorkspaceInvitations(ctx); err != nil {
				a.Log.WithError(err).Debug("invitations unavailable")
			}
		} else if ws, err := a.API.MyWorkspace(ctx); err == nil && !ws.ID.IsZero() {
			workspaces = []models.Workspace{ws}
		}
		return nil
	}, func() {
		s.showUsers(users)
		s.showRooms(rooms)
		s.showWorkspaces(workspaces, invitations)
	}, nil)
}

func (s *adminScreen) showUsers(users []models.User) {
	s.users.Clear()
	for _, u := range users {
		s.users.AddItem(tview.Escape(userLabel(u)), tview.Escape(u.Email), 0, nil)
	}
}

func (s *adminScreen) showRooms(rooms []models.Room) {
	s.roomList = rooms
	known := make(map[models.ID]bool, len(rooms))
	for _, r := range rooms {
		known[r.ID] = true
	}
	for id := range s.selected {
		if !known[id] {
			delete(s.selected, id)
		}
	}
	s.renderRooms()
}

func (s *adminScreen) renderRooms() {
	current := s.rooms.GetCurrentItem()
	self := models.ID("")
	if u, ok := s.a.Session.User(s.a.ctx); ok {
		self = u.ID
	}
	s.rooms.Clear()
	for _, r := range s.roomList {
		mark := "[ ] "
		if s.selected[r.ID] {
			mark = "[x] "
		}
		s.rooms.AddItem(tview.Escape(mark)+roomLabel(r, self, 0), "", 0, nil)
	}
	if current < len(s.roomList) {
		s.rooms.SetCurrentItem(current)
	}
}

func (s *adminScreen) toggle(index int) {
	if index < 0 || index >= len(s.roomList) {
		return
	}
	id := s.roomList[index].ID
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	s.renderRooms()
}

func (s *adminScreen) showWorkspaces(workspaces []models.Workspace, invitations []models.Invitation) {
	a := s.a
	var b strings.Builder
	if len(workspaces) == 0 {
		b.WriteString(tagMuted + a.t("ui.admin.no_workspaces") + tagReset + "\n")
	}
	for _, w := range workspaces {
		fmt.Fprintf(&b, "%s%s%s (%s)\n", tagSelf, tview.Escape(w.Name), tagReset, tview.Escape(w.Slug))
		if w.Description != "" {
			b.WriteString("  " + tview.Escape(w.Description) + "\n")
		}
	}
	if len(invitations) > 0 {
		b.WriteString("\n" + tagMuted + a.t("ui.admin.invitations") + tagReset + "\n")
		for _, inv := range invitations {
			fmt.Fprintf(&b, "  %s  %s\n", tview.Escape(inv.Email), tview.Escape(inv.Status))
		}
	}
	s.workspaces.SetText(b.String())
}

func (s *adminScreen) deleteSelected() {
	if !s.requireAdmin() {
		return
	}
	a := s.a
	f := forms.DeleteRooms{}
	for _, r := range s.roomList {
		if s.selected[r.ID] {
			f.RoomIDs = append(f.RoomIDs, r.ID)
		}
	}
	a.async(func(ctx context.Context) error {
		return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
			ok, err := a.API.DeleteRooms(ctx, f.RoomIDs)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("rooms were not deleted")
			}
			return a.Chat.RefreshRooms(ctx)
		})
	}, func() {
		s.selected = make(map[models.ID]bool)
		a.toast(a.tf("toast.rooms_deleted", len(f.RoomIDs)), false)
		s.load()
	}, func(fe forms.FieldErrors) { a.toast(fe[forms.FieldRooms], true) })
}

const (
	joinDecisionPage    = "join-decision"
	createWorkspacePage = "create-workspace"
	invitePage          = "invite"
)

func (s *adminScreen) showJoinDecision() {
	a := s.a
	form := styledForm(a.t("ui.admin.join_request"))
	errs := errorLine()
	form.AddInputField(a.t("ui.field.request"), "", 30, nil, nil)

	decide := func(approve bool) func() {
		return func() {
			f := forms.JoinDecision{RequestID: models.ID(strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText()))}
			a.async(func(ctx context.Context) error {
				return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
					var err error
					if approve {
						_, err = a.API.ApproveJoin(ctx, f.RequestID)
					} else {
						_, err = a.API.RejectJoin(ctx, f.RequestID)
					}
					return err
				})
			}, func() {
				a.closeModal(joinDecisionPage)
				a.app.SetFocus(s.users)
				if approve {
					a.toast(a.t("toast.join_approved"), false)
				} else {
					a.toast(a.t("toast.join_rejected"), false)
				}
			}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
		}
	}
	form.AddButton(a.t("ui.admin.approve"), decide(true))
	form.AddButton(a.t("ui.admin.reject"), decide(false))
	form.AddButton(a.t("ui.button.cancel"), func() {
		a.closeModal(joinDecisionPage)
		a.app.SetFocus(s.users)
	})
	a.showModal(joinDecisionPage, formWithErrors(form, errs), 56, 11)
}

func (s *adminScreen) showCreateWorkspace() {
	if !s.requireAdmin() {
		return
	}
	a := s.a
	form := styledForm(a.t("ui.admin.new_workspace"))
	errs := errorLine()
	form.AddInputField(a.t("ui.field.workspace_name"), "", 30, nil, nil)
	form.AddInputField(a.t("ui.field.slug"), "", 30, nil, nil)
	form.AddInputField(a.t("ui.field.description"), "", 30, nil, nil)

	text := func(i int) string { return form.GetFormItem(i).(*tview.InputField).GetText() }
	form.AddButton(a.t("ui.button.create"), func() {
		f := forms.Workspace{Name: text(0), Slug: text(1), Description: text(2)}
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				_, err := a.API.CreateWorkspace(ctx, f.Input())
				return err
			})
		}, func() {
			a.closeModal(createWorkspacePage)
			a.app.SetFocus(s.users)
			a.toast(a.t("toast.workspace_created"), false)
			s.load()
		}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.cancel"), func() {
		a.closeModal(createWorkspacePage)
		a.app.SetFocus(s.users)
	})
	a.showModal(createWorkspacePage, formWithErrors(form, errs), 56, 15)
}

func (s *adminScreen) showInvite() {
	if !s.requireAdmin() {
		return
	}
	a := s.a
	form := styledForm(a.t("ui.admin.invite"))
	errs := errorLine()
	form.AddInputField(a.t("ui.field.email"), "", 36, nil, nil)

	form.AddButton(a.t("ui.button.send"), func() {
		f := forms.Invite{Email: form.GetFormItem(0).(*tview.InputField).GetText()}
		var message string
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				res, err := a.API.InviteUser(ctx, strings.TrimSpace(f.Email))
				if err != nil {
					return err
				}
				message = res.Message
				if !res.Success {
					return errors.New(res.Message)
				}
				return nil
			})
		}, func() {
			a.closeModal(invitePage)
			a.app.SetFocus(s.users)
			if message == "" {
				message = a.t("toast.invited")
			}
			a.toast(message, false)
			s.load()
		}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.cancel"), func() {
		a.closeModal(invitePage)
		a.app.SetFocus(s.users)
	})
	a.showModal(invitePage, formWithErrors(form, errs), 56, 11)
}
