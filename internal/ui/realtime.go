package ui

import (
	"context"
	"sync"

	"chatflow/client/internal/api"
	"chatflow/client/internal/models"
)

// realtime owns the two subscriptions of a logged-in session. There is no
// automatic reconnect; the status line offers a retry key instead.
type realtime struct {
	a *App

	mu        sync.Mutex
	ctx       context.Context
	running   bool
	connected bool
	err       error
}

func newRealtime(a *App) *realtime {
	return &realtime{a: a}
}

func (r *realtime) start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.run(ctx)
}

// retry reconnects after a drop.
func (r *realtime) retry() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	r.start(ctx)
}

func (r *realtime) status() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, r.err
}

func (r *realtime) set(connected bool, err error) {
	r.mu.Lock()
	r.connected = connected
	r.err = err
	if !connected {
		r.running = false
	}
	r.mu.Unlock()
	r.a.redraw(func() { r.a.main.refreshStatus() })
}

func (r *realtime) run(ctx context.Context) {
	log := r.a.Log.WithField("component", "realtime")

	msgs, err := r.a.API.MessageAdded(ctx, log)
	if err != nil {
		log.WithError(err).Warn("messageAdded subscription failed")
		r.set(false, err)
		return
	}
	notes, err := r.a.API.NotificationAdded(ctx, log)
	if err != nil {
		msgs.Close()
		log.WithError(err).Warn("notificationAdded subscription failed")
		r.set(false, err)
		return
	}
	r.set(true, nil)
	log.Info("realtime connected")

	err = r.pump(ctx, msgs, notes)
	msgs.Close()
	notes.Close()
	if ctx.Err() != nil {
		err = nil
	}
	log.WithError(err).Info("realtime disconnected")
	r.set(false, err)
}

func (r *realtime) pump(ctx context.Context, msgs *api.Stream[models.Message], notes *api.Stream[models.Notification]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs.Items:
			if !ok {
				return msgs.Err()
			}
			if err := r.a.Chat.OnPush(ctx, m); err != nil {
				r.a.Log.WithError(err).Debug("refetch after push failed")
			}
		case n, ok := <-notes.Items:
			if !ok {
				return notes.Err()
			}
			if r.a.Notify.OnPush(n) {
				title := n.Title
				r.a.redraw(func() { r.a.toast("🔔 "+title, false) })
			}
		}
	}
}
