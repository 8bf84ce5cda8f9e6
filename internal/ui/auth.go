package ui

import (
	"context"

	"chatflow/client/internal/forms"

	"github.com/rivo/tview"
)

const authPage = "auth"

func (a *App) showAuth(p tview.Primitive, height int) {
	a.pages.HidePage("main")
	a.pages.ShowPage("background")
	a.pages.RemovePage(authPage)
	a.pages.AddPage(authPage, centered(p, 60, height), true, true)
	a.app.SetFocus(p)
}

func (a *App) showLogin() {
	form := styledForm(a.t("ui.login.title"))
	errs := errorLine()

	form.AddInputField(a.t("ui.field.email"), "", 36, nil, nil)
	form.AddPasswordField(a.t("ui.field.password"), "", 36, '*', nil)

	form.AddButton(a.t("ui.button.sign_in"), func() {
		f := forms.Login{
			Email:    form.GetFormItem(0).(*tview.InputField).GetText(),
			Password: form.GetFormItem(1).(*tview.InputField).GetText(),
		}
		errs.SetText("")
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				pair, err := a.API.Login(ctx, f.Credentials())
				if err != nil {
					return err
				}
				return a.Session.Login(ctx, pair)
			})
		}, nil, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.register"), a.showRegister)
	form.AddButton(a.t("ui.button.create_admin"), a.showBootstrap)
	form.AddButton(a.t("ui.button.forgot"), a.showForgotPassword)
	form.AddButton(a.t("ui.button.quit"), a.quit)

	a.showAuth(formWithErrors(form, errs), 14)
}

// registerForm builds the shared register/bootstrap form. submit receives
// the validated input.
func (a *App) registerForm(title, button string, submit func(ctx context.Context, f forms.Register) error, onOK func()) tview.Primitive {
	form := styledForm(title)
	errs := errorLine()

	form.AddInputField(a.t("ui.field.first_name"), "", 30, nil, nil)
	form.AddInputField(a.t("ui.field.last_name"), "", 30, nil, nil)
	form.AddInputField(a.t("ui.field.email"), "", 30, nil, nil)
	form.AddPasswordField(a.t("ui.field.password"), "", 30, '*', nil)
	form.AddPasswordField(a.t("ui.field.confirm_password"), "", 30, '*', nil)

	text := func(i int) string { return form.GetFormItem(i).(*tview.InputField).GetText() }
	form.AddButton(button, func() {
		f := forms.Register{
			FirstName:       text(0),
			LastName:        text(1),
			Email:           text(2),
			Password:        text(3),
			ConfirmPassword: text(4),
		}
		errs.SetText("")
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error { return submit(ctx, f) })
		}, onOK, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.back"), a.showLogin)
	return formWithErrors(form, errs)
}

func (a *App) showRegister() {
	p := a.registerForm(a.t("ui.register.title"), a.t("ui.button.register"),
		func(ctx context.Context, f forms.Register) error {
			_, err := a.API.Register(ctx, f.User())
			return err
		},
		func() {
			a.showLogin()
			a.toast(a.t("toast.registered"), false)
		})
	a.showAuth(p, 20)
}

// showBootstrap creates the first administrator and signs them in.
func (a *App) showBootstrap() {
	p := a.registerForm(a.t("ui.bootstrap.title"), a.t("ui.button.create_admin"),
		func(ctx context.Context, f forms.Register) error {
			pair, err := a.API.BootstrapAdmin(ctx, f.User())
			if err != nil {
				return err
			}
			return a.Session.Login(ctx, pair)
		},
		func() { a.toast(a.t("toast.admin_created"), false) })
	a.showAuth(p, 20)
}

func (a *App) showForgotPassword() {
	form := styledForm(a.t("ui.forgot.title"))
	errs := errorLine()
	form.AddInputField(a.t("ui.field.email"), "", 36, nil, nil)

	form.AddButton(a.t("ui.button.send"), func() {
		f := forms.ForgotPassword{Email: form.GetFormItem(0).(*tview.InputField).GetText()}
		var message string
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				res, err := a.API.ForgotPassword(ctx, f.Email)
				message = res.Message
				return err
			})
		}, func() {
			a.showResetPassword()
			if message != "" {
				a.toast(message, false)
			}
		}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.have_token"), a.showResetPassword)
	form.AddButton(a.t("ui.button.back"), a.showLogin)
	a.showAuth(formWithErrors(form, errs), 11)
}

func (a *App) showResetPassword() {
	form := styledForm(a.t("ui.reset.title"))
	errs := errorLine()
	form.AddInputField(a.t("ui.field.token"), "", 36, nil, nil)
	form.AddPasswordField(a.t("ui.field.new_password"), "", 36, '*', nil)
	form.AddPasswordField(a.t("ui.field.confirm_password"), "", 36, '*', nil)

	text := func(i int) string { return form.GetFormItem(i).(*tview.InputField).GetText() }
	form.AddButton(a.t("ui.button.save"), func() {
		f := forms.ResetPassword{Token: text(0), Password: text(1), ConfirmPassword: text(2)}
		var message string
		a.async(func(ctx context.Context) error {
			return forms.Submit(ctx, a.msgs, f, func(ctx context.Context) error {
				res, err := a.API.ResetPassword(ctx, f.Token, f.Password)
				message = res.Message
				return err
			})
		}, func() {
			a.showLogin()
			if message != "" {
				a.toast(message, false)
			}
		}, func(fe forms.FieldErrors) { errs.SetText(fieldErrorText(fe)) })
	})
	form.AddButton(a.t("ui.button.back"), a.showLogin)
	a.showAuth(formWithErrors(form, errs), 15)
}
