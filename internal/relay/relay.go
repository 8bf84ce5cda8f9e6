// Package relay fans the caller's realtime pushes out to external sinks:
// a Telegram chat and a Redis pub/sub channel.
package relay

import (
	"context"
	"errors"
	"time"

	"chatflow/client/internal/api"
	"chatflow/client/internal/graphql"
	"chatflow/client/internal/models"
	"chatflow/client/internal/storage"

	"github.com/sirupsen/logrus"
)

const defaultRetryDelay = 5 * time.Second

// Sink receives relayed pushes. *telegram.Forwarder satisfies it.
type Sink interface {
	Message(m models.Message)
	Notification(n models.Notification)
}

// Source opens the two subscriptions. *api.Client satisfies it.
type Source interface {
	MessageAdded(ctx context.Context, log *logrus.Entry) (*api.Stream[models.Message], error)
	NotificationAdded(ctx context.Context, log *logrus.Entry) (*api.Stream[models.Notification], error)
}

// Publisher is the Redis side. *storage.EventPublisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) error
}

// RedisSink publishes every push as a storage.Event.
type RedisSink struct {
	pub Publisher
	log *logrus.Entry
	ctx context.Context
}

// NewRedisSink binds pub to ctx, which bounds every publish.
func NewRedisSink(ctx context.Context, pub Publisher, log *logrus.Entry) *RedisSink {
	return &RedisSink{pub: pub, log: log, ctx: ctx}
}

func (s *RedisSink) Message(m models.Message) {
	if err := s.pub.Publish(s.ctx, storage.EventMessageAdded, m); err != nil {
		s.log.WithError(err).Warn("publish message failed")
	}
}

func (s *RedisSink) Notification(n models.Notification) {
	if err := s.pub.Publish(s.ctx, storage.EventNotificationAdded, n); err != nil {
		s.log.WithError(err).Warn("publish notification failed")
	}
}

// Relay copies pushes from a Source into its sinks.
type Relay struct {
	src        Source
	sinks      []Sink
	log        *logrus.Entry
	retryDelay time.Duration

	// counters, read by tests and the final log line
	Messages      int
	Notifications int
}

// New returns a relay; sinks may be empty, in which case pushes are only logged.
func New(src Source, log *logrus.Entry, sinks ...Sink) *Relay {
	return &Relay{src: src, sinks: sinks, log: log, retryDelay: defaultRetryDelay}
}

// SetRetryDelay sets the pause before resubscribing after a drop.
func (r *Relay) SetRetryDelay(d time.Duration) { r.retryDelay = d }

// Run subscribes and relays until ctx is done. Unlike the terminal client,
// the relay is unattended, so it resubscribes after every drop. It returns
// graphql.ErrSessionExpired once the refresh token is refused.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.once(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, graphql.ErrSessionExpired) {
			r.log.WithError(err).Error("relay session expired")
			return err
		}
		r.log.WithError(err).WithField("retry_in", r.retryDelay).Warn("relay disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *Relay) once(ctx context.Context) error {
	msgs, err := r.src.MessageAdded(ctx, r.log)
	if err != nil {
		return err
	}
	defer msgs.Close()
	notes, err := r.src.NotificationAdded(ctx, r.log)
	if err != nil {
		return err
	}
	defer notes.Close()

	r.log.Info("relay subscribed")
	err = r.Pump(ctx, msgs.Items, notes.Items)
	if errors.Is(err, errMessagesEnded) {
		return msgs.Err()
	}
	if errors.Is(err, errNotificationsEnded) {
		return notes.Err()
	}
	return err
}

var (
	errMessagesEnded      = errors.New("message stream ended")
	errNotificationsEnded = errors.New("notification stream ended")
)

// Pump forwards items until ctx is done or a channel closes.
func (r *Relay) Pump(ctx context.Context, msgs <-chan models.Message, notes <-chan models.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return errMessagesEnded
			}
			r.Messages++
			r.log.WithFields(logrus.Fields{"room": m.RoomID, "message": m.ID}).Debug("relay message")
			for _, s := range r.sinks {
				s.Message(m)
			}
		case n, ok := <-notes:
			if !ok {
				return errNotificationsEnded
			}
			r.Notifications++
			r.log.WithFields(logrus.Fields{"type": n.Type, "notification": n.ID}).Debug("relay notification")
			for _, s := range r.sinks {
				s.Notification(n)
			}
		}
	}
}
