// Package ui is the terminal front-end: sign-in, registration and admin
// bootstrap forms, the dashboard with chat, notifications, users and
// profile screens, a realtime status line and toasts.
package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatflow/client/internal/api"
	"chatflow/client/internal/chat"
	"chatflow/client/internal/forms"
	"chatflow/client/internal/graphql"
	"chatflow/client/internal/localization"
	"chatflow/client/internal/notify"
	"chatflow/client/internal/session"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"
)

const (
	toastDuration = 4 * time.Second
	callTimeout   = 30 * time.Second
)

// Deps are the services the screens are bound to.
type Deps struct {
	API       *api.Client
	Transport *graphql.Transport
	Session   *session.Provider
	Chat      *chat.ViewModel
	Notify    *notify.Center
	Localizer *localization.Localizer
	Lang      string
	Log       *logrus.Entry
}

// App is the terminal application.
type App struct {
	Deps

	app       *tview.Application
	pages     *tview.Pages
	toastView *tview.TextView
	toastSeq  int
	msgs      forms.Messages

	ctx    context.Context
	mu     sync.Mutex
	cancel context.CancelFunc // stops the logged-in background loops

	main     *mainScreen
	realtime *realtime
}

// New builds the application; Run starts it.
func New(d Deps) *App {
	if d.Localizer == nil {
		d.Localizer = localization.Default()
	}
	if d.Lang == "" {
		d.Lang = localization.DefaultLanguage
	}
	a := &App{
		Deps:      d,
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		toastView: tview.NewTextView(),
		msgs:      forms.NewMessages(d.Localizer, d.Lang),
	}
	a.toastView.SetDynamicColors(true)
	a.toastView.SetTextAlign(tview.AlignCenter)
	a.toastView.SetBackgroundColor(ColorBg)
	a.realtime = newRealtime(a)
	return a
}

// Run shows the entry screen, or the dashboard for a restored session, and
// blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx

	background := tview.NewBox()
	background.SetBackgroundColor(tcell.NewRGBColor(64, 64, 64))
	a.pages.AddPage("background", background, true, true)

	a.Session.OnChange(a.onSession)
	a.Chat.OnChange(func() { a.redraw(func() { a.main.refreshChat() }) })
	a.Notify.OnChange(func() { a.redraw(func() { a.main.refreshNotifications() }) })

	a.main = newMainScreen(a)
	a.pages.AddPage("main", a.main.root, true, false)

	if a.Session.IsLoggedIn() {
		a.enterDashboard()
	} else {
		a.showLogin()
	}

	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.toastView, 1, 0, false)

	err := a.app.SetRoot(root, true).EnableMouse(true).Run()
	a.stopLoops()
	a.Transport.Close()
	return err
}

func (a *App) t(key string) string { return a.Localizer.GetString(a.Lang, key) }

func (a *App) tf(key string, args ...any) string { return a.Localizer.Format(a.Lang, key, args...) }

// redraw runs fn on the event loop. Callers are never the event loop itself:
// every state change happens in a worker goroutine started by async.
func (a *App) redraw(fn func()) {
	a.app.QueueUpdateDraw(fn)
}

// async runs call off the event loop and reports its outcome back on it.
// Field errors go to onInvalid when given; every other error is toasted
// verbatim.
func (a *App) async(call func(ctx context.Context) error, onOK func(), onInvalid func(forms.FieldErrors)) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		err := call(ctx)

		a.redraw(func() {
			var fe forms.FieldErrors
			switch {
			case err == nil:
				if onOK != nil {
					onOK()
				}
			case errors.As(err, &fe) && onInvalid != nil:
				onInvalid(fe)
			case errors.Is(err, graphql.ErrSessionExpired):
				// the session listener already moved to the login screen
			default:
				a.Log.WithError(err).Debug("request failed")
				a.toast(err.Error(), true)
			}
		})
	}()
}

func (a *App) onSession(ev session.Event) {
	switch ev.Kind {
	case session.EventLoggedIn:
		a.redraw(a.enterDashboard)
	case session.EventLoggedOut:
		a.leaveDashboard()
		a.redraw(func() {
			a.main.profile.reset()
			a.showLogin()
			a.toast(a.t("toast.signed_out"), false)
		})
	case session.EventExpired:
		a.leaveDashboard()
		a.redraw(func() {
			a.main.profile.reset()
			a.showLogin()
			a.toast(a.t("toast.session_expired"), true)
		})
	}
}

// enterDashboard switches to the main page and starts polling, realtime
// and the initial loads.
func (a *App) enterDashboard() {
	a.pages.RemovePage("auth")
	a.pages.HidePage("background")
	a.pages.ShowPage("main")
	a.main.show(screenOverview)

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	a.mu.Unlock()

	go a.Chat.Run(ctx)
	a.realtime.start(ctx)
	a.main.loadAll()
}

func (a *App) leaveDashboard() {
	a.stopLoops()
	a.Transport.Close()
	a.Chat.Reset()
	a.Notify.Reset()
}

func (a *App) stopLoops() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *App) logout() {
	a.async(func(ctx context.Context) error {
		return a.Session.Logout(ctx)
	}, nil, nil)
}

func (a *App) quit() {
	a.app.Stop()
}
