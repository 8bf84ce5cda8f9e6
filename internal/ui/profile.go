package ui

import (
	"context"
	"errors"

	"chatflow/client/internal/forms"
	"chatflow/client/internal/models"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var errPasswordNotChanged = errors.New("password was not changed")

type profileScreen struct {
	a *App

	root      *tview.Flex
	form      *tview.Form
	formErrs  *tview.TextView
	password  *tview.Form
	passErrs  *tview.TextView
	loadedFor models.ID
}

func newProfileScreen(a *App) *profileScreen {
	s := &profileScreen{a: a}

	s.form = styledForm(a.t("ui.nav.profile"))
	s.formErrs = errorLine()
	s.form.AddInputField(a.t("ui.field.first_name"), "", 30, nil, nil)
	s.form.AddInputField(a.t("ui.field.last_name"), "", 30, nil, nil)
	s.form.AddInputField(a.t("ui.field.email"), "", 30, nil, nil)
	s.form.AddButton(a.t("ui.button.save"), s.saveProfile)

	s.password = styledForm(a.t("ui.profile.change_password"))
	s.passErrs = errorLine()
	s.password.AddPasswordField(a.t("ui.field.current_password"), "", 30, '*', nil)
	s.password.AddPasswordField(a.t("ui.field.new_password"), "", 30, '*', nil)
	s.password.AddPasswordField(a.t("ui.field.confirm_password"), "", 30, '*', nil)
	s.password.AddButton(a.t("ui.button.save"), s.changePassword)

	s.root = tview.NewFlex().
		AddItem(formWithErrors(s.form, s.formErrs), 0, 1, true).
		AddItem(formWithErrors(s.password, s.passErrs), 0, 1, false)

	s.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() != tcell.KeyCtrlP {
			return event
		}
		if s.form.HasFocus() {
			a.app.SetFocus(s.password)
		} else {
			a.app.SetFocus(s.form)
		}
		return nil
	})
	return s
}

func field(f *tview.Form, i int) *tview.InputField {
	return f.GetFormItem(i).(*tview.InputField)
}

// load fills the profile form from the server once per signed-in user.
func (s *profileScreen) load() {
	a := s.a
	var me models.User
	a.async(func(ctx context.Context) error {
		var err error
		me, err = a.API.Me(ctx)
		return err
	}, func() {
		if me.ID == s.loadedFor {
			return
		}
		s.loadedFor = me.ID
		field(s.form, 0).SetText(me.FirstName)
		field(s.form, 1).SetText(me.LastName)
		field(s.form, 2).SetText(me.Email)
		s.formErrs.SetText("")
	}, nil)
}

func (s *profileScreen) saveProfile() {
	a := s.a
	f := forms.Profile{
		FirstName: field(s.form, 0).GetText(),
		LastName:  field(s.form, 1).GetText(),
		Email:     field(s.form, 2).GetText(),
	}
	s.formErrs.SetText("")
	a.async(func(ctx context.Context) error {
		return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
			_, err := a.API.UpdateProfile(ctx, f.Input())
			return err
		})
	}, func() {
		a.toast(a.t("toast.profile_updated"), false)
		a.main.refreshHeader()
	}, func(fe forms.FieldErrors) { s.formErrs.SetText(fieldErrorText(fe)) })
}

func (s *profileScreen) changePassword() {
	a := s.a
	f := forms.PasswordChange{
		Current:         field(s.password, 0).GetText(),
		New:             field(s.password, 1).GetText(),
		ConfirmPassword: field(s.password, 2).GetText(),
	}
	s.passErrs.SetText("")
	a.async(func(ctx context.Context) error {
		return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
			ok, err := a.API.ChangePassword(ctx, f.Current, f.New)
			if err != nil {
				return err
			}
			if !ok {
				return errPasswordNotChanged
			}
			return nil
		})
	}, func() {
		for i := 0; i < 3; i++ {
			field(s.password, i).SetText("")
		}
		a.toast(a.t("toast.password_changed"), false)
	}, func(fe forms.FieldErrors) { s.passErrs.SetText(fieldErrorText(fe)) })
}

// reset forgets the loaded user so the next sign-in reloads the form.
func (s *profileScreen) reset() {
	s.loadedFor = ""
	for i := 0; i < 3; i++ {
		field(s.form, i).SetText("")
		field(s.password, i).SetText("")
	}
}
