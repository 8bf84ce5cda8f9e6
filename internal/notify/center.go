// Package notify is the notification center view-model: the caller's
// notifications, a read/unread filter and the pushes that arrive while the
// client runs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatflow/client/internal/api"
	"chatflow/client/internal/models"

	"github.com/sirupsen/logrus"
)

// ErrNotDeleted is returned when the server answers deleteNotification with false.
var ErrNotDeleted = errors.New("notification was not deleted")

// Service is the subset of the API the center needs. *api.Client satisfies it.
type Service interface {
	MyNotifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id models.ID) (models.Notification, error)
	DeleteNotification(ctx context.Context, id models.ID) (bool, error)
	CreateNotification(ctx context.Context, in api.NewNotification) (models.Notification, error)
}

// Filter selects which notifications Items returns.
type Filter int

const (
	FilterAll Filter = iota
	FilterUnread
	FilterRead
)

func (f Filter) String() string {
	switch f {
	case FilterUnread:
		return "unread"
	case FilterRead:
		return "read"
	}
	return "all"
}

// ParseFilter accepts "all", "unread" and "read"; anything else is all.
func ParseFilter(s string) Filter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unread":
		return FilterUnread
	case "read":
		return FilterRead
	}
	return FilterAll
}

func (f Filter) keep(n models.Notification) bool {
	switch f {
	case FilterUnread:
		return !n.Read
	case FilterRead:
		return n.Read
	}
	return true
}

// Center keeps the notification list, newest first.
type Center struct {
	svc Service
	log *logrus.Entry

	mu        sync.Mutex
	items     []models.Notification
	filter    Filter
	listeners []func()
}

// NewCenter returns an empty center; call Load to fill it.
func NewCenter(svc Service, log *logrus.Entry) *Center {
	return &Center{svc: svc, log: log}
}

// OnChange registers fn to run after every change.
func (c *Center) OnChange(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Center) notify() {
	c.mu.Lock()
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Load replaces the list with the server's.
func (c *Center) Load(ctx context.Context) error {
	items, err := c.svc.MyNotifications(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetFilter changes the active filter.
func (c *Center) SetFilter(f Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	c.notify()
}

// Filter returns the active filter.
func (c *Center) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Items returns the notifications passing the active filter.
func (c *Center) Items() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked(c.filter)
}

// ItemsFor returns the notifications passing f.
func (c *Center) ItemsFor(f Filter) []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked(f)
}

func (c *Center) itemsLocked(f Filter) []models.Notification {
	out := make([]models.Notification, 0, len(c.items))
	for _, n := range c.items {
		if f.keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount counts unread notifications in the list.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead marks id read on the server, then locally.
func (c *Center) MarkRead(ctx context.Context, id models.ID) error {
	if _, err := c.svc.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = true
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// MarkAllRead marks every unread notification read. It stops at the first
// failure; the ones already marked stay marked.
func (c *Center) MarkAllRead(ctx context.Context) error {
	for _, n := range c.ItemsFor(FilterUnread) {
		if err := c.MarkRead(ctx, n.ID); err != nil {
			return fmt.Errorf("mark %s read: %w", n.ID, err)
		}
	}
	return nil
}

// Delete removes id on the server, then from the list.
func (c *Center) Delete(ctx context.Context, id models.ID) error {
	ok, err := c.svc.DeleteNotification(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotDeleted
	}
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Create sends a notification to another user. Admin only; the server
// enforces it.
func (c *Center) Create(ctx context.Context, in api.NewNotification) (models.Notification, error) {
	n, err := c.svc.CreateNotification(ctx, in)
	if err != nil {
		return models.Notification{}, err
	}
	c.log.WithFields(logrus.Fields{"id": n.ID, "user": in.UserID, "type": n.Type}).Info("notification created")
	return n, nil
}

// OnPush prepends a pushed notification unless it is already listed.
// It reports whether the list changed.
func (c *Center) OnPush(n models.Notification) bool {
	c.mu.Lock()
	for _, have := range c.items {
		if have.ID == n.ID {
			c.mu.Unlock()
			return false
		}
	}
	c.items = append([]models.Notification{n}, c.items...)
	c.mu.Unlock()
	c.notify()
	return true
}

// Reset empties the list, as after logout.
func (c *Center) Reset() {
	c.mu.Lock()
	c.items = nil
	c.filter = FilterAll
	c.mu.Unlock()
	c.notify()
}
