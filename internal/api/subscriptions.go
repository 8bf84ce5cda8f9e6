package api

import (
	"context"
	"encoding/json"

	"chatflow/client/internal/graphql"
	"chatflow/client/internal/models"

	"github.com/sirupsen/logrus"
)

const messageAddedSubscription = `subscription MessageAdded {
  messageAdded {
    id
    content
    senderId
    sender {
      id
      firstName
      lastName
    }
    roomId
    createdAt
  }
}`

const notificationAddedSubscription = `subscription NotificationAdded {
  notificationAdded {
    id
    title
    message
    type
    userId
    read
    createdAt
  }
}`

// Stream is a decoded subscription. Items is closed when the subscription
// ends; Err then reports why.
type Stream[T any] struct {
	Items <-chan T
	sub   *graphql.Subscription
}

// Close unsubscribes.
func (s *Stream[T]) Close() { s.sub.Unsubscribe() }

// Err is the end cause, nil for a clean completion.
func (s *Stream[T]) Err() error { return s.sub.Err() }

// Raw returns the underlying subscription.
func (s *Stream[T]) Raw() *graphql.Subscription { return s.sub }

// MessageAdded streams every message pushed to the caller.
func (c *Client) MessageAdded(ctx context.Context, log *logrus.Entry) (*Stream[models.Message], error) {
	return subscribe(ctx, c.t, log, "MessageAdded", messageAddedSubscription, "messageAdded", func(m *models.Message) {
		if m.Sender.ID.IsZero() {
			m.Sender.ID = m.SenderID
		}
	})
}

// NotificationAdded streams every notification pushed to the caller.
func (c *Client) NotificationAdded(ctx context.Context, log *logrus.Entry) (*Stream[models.Notification], error) {
	return subscribe(ctx, c.t, log, "NotificationAdded", notificationAddedSubscription, "notificationAdded", func(n *models.Notification) {
		n.Type = models.ParseNotificationType(string(n.Type))
	})
}

func subscribe[T any](ctx context.Context, t Transport, log *logrus.Entry, op, query, field string, fix func(*T)) (*Stream[T], error) {
	sub, err := t.Subscribe(ctx, graphql.Request{Query: query, OperationName: op})
	if err != nil {
		return nil, err
	}

	items := make(chan T)
	go func() {
		defer close(items)
		for ev := range sub.Events {
			var data map[string]json.RawMessage
			if err := ev.Decode(&data); err != nil {
				log.WithError(err).WithField("operation", op).Warn("subscription event rejected")
				continue
			}
			var item T
			if err := json.Unmarshal(data[field], &item); err != nil {
				log.WithError(err).WithField("operation", op).Warn("undecodable subscription event")
				continue
			}
			fix(&item)
			select {
			case items <- item:
			case <-sub.Done():
				return
			}
		}
	}()
	return &Stream[T]{Items: items, sub: sub}, nil
}
