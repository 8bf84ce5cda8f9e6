package relay

import (
	"context"
	"errors"
	"testing"

	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"
	"chatflow/client/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	messages      []models.Message
	notifications []models.Notification
}

func (s *recordingSink) Message(m models.Message)           { s.messages = append(s.messages, m) }
func (s *recordingSink) Notification(n models.Notification) { s.notifications = append(s.notifications, n) }

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, kind string, payload any) error {
	args := m.Called(ctx, kind, payload)
	return args.Error(0)
}

func TestPumpFansOutUntilStreamEnds(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	r := New(nil, logging.Discard().WithField("test", t.Name()), a, b)

	msgs := make(chan models.Message, 2)
	notes := make(chan models.Notification, 1)
	msgs <- models.Message{ID: "1", Content: "hi"}
	notes <- models.Notification{ID: "n1", Title: "t"}
	msgs <- models.Message{ID: "2", Content: "there"}
	close(msgs)

	err := r.Pump(context.Background(), msgs, notes)
	require.ErrorIs(t, err, errMessagesEnded)

	assert.Equal(t, 2, r.Messages)
	for _, s := range []*recordingSink{a, b} {
		assert.Len(t, s.messages, 2)
	}
	// the notification may or may not have been picked before the close
	assert.Equal(t, r.Notifications, len(a.notifications))
}

func TestPumpStopsOnContext(t *testing.T) {
	r := New(nil, logging.Discard().WithField("test", t.Name()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Pump(ctx, make(chan models.Message), make(chan models.Notification))
	assert.NoError(t, err)
}

func TestRedisSinkPublishesEvents(t *testing.T) {
	pub := new(MockPublisher)
	ctx := context.Background()
	m := models.Message{ID: "7", Content: "x"}
	n := models.Notification{ID: "9", Title: "y"}
	pub.On("Publish", ctx, storage.EventMessageAdded, m).Return(nil).Once()
	pub.On("Publish", ctx, storage.EventNotificationAdded, n).Return(errors.New("redis down")).Once()

	s := NewRedisSink(ctx, pub, logging.Discard().WithField("test", t.Name()))
	s.Message(m)
	s.Notification(n)

	pub.AssertExpectations(t)
}
