package telegram

import (
	"errors"
	"testing"

	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockSender is a mock implementation of the Sender interface
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func textIs(want string) any {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.ParseMode == tgbotapi.ModeMarkdown && msg.Text == want
	})
}

func newForwarder(bot Sender, opts ...Option) *Forwarder {
	return NewForwarder(bot, 42, logging.Component(logging.Discard(), "telegram"), opts...)
}

func TestForwarder_Notification(t *testing.T) {
	bot := new(MockSender)
	bot.On("Send", textIs("⚠️ *Disk\\_space low*\nclean up \\*now\\*")).Return(tgbotapi.Message{MessageID: 1}, nil)

	f := newForwarder(bot)
	f.Notification(models.Notification{ID: "1", Title: "Disk_space low", Message: "clean up *now*", Type: models.NotificationWarning})
	f.Close()

	bot.AssertExpectations(t)
}

func TestForwarder_MessagesOptIn(t *testing.T) {
	bot := new(MockSender)
	f := newForwarder(bot)
	f.Message(models.Message{ID: "1", RoomID: "3", Content: "hi"})
	f.Close()
	bot.AssertNotCalled(t, "Send", mock.Anything)

	bot = new(MockSender)
	bot.On("Send", textIs("💬 *New message* in room 3 from Ada Lovelace\nhi")).Return(tgbotapi.Message{}, nil)
	f = newForwarder(bot, WithMessages(true))
	f.Message(models.Message{ID: "1", RoomID: "3", Content: "hi", Sender: models.UserRef{FirstName: "Ada", LastName: "Lovelace"}})
	f.Close()
	bot.AssertExpectations(t)
}

// TestForwarder_SendFailureIsNotFatal keeps forwarding after an error.
func TestForwarder_SendFailureIsNotFatal(t *testing.T) {
	bot := new(MockSender)
	bot.On("Send", textIs("🔔 *first*")).Return(tgbotapi.Message{}, errors.New("Bad Request: chat not found")).Once()
	bot.On("Send", textIs("✅ *second*")).Return(tgbotapi.Message{MessageID: 2}, nil).Once()

	f := newForwarder(bot)
	f.Notification(models.Notification{Title: "first", Type: models.NotificationInfo})
	f.Notification(models.Notification{Title: "second", Type: models.NotificationSuccess})
	f.Close()

	bot.AssertExpectations(t)
}

func TestForwarder_PushAfterCloseIsDropped(t *testing.T) {
	bot := new(MockSender)
	f := newForwarder(bot)
	f.Close()
	f.Close()

	assert.NotPanics(t, func() { f.Notification(models.Notification{Title: "late"}) })
	bot.AssertNotCalled(t, "Send", mock.Anything)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "a\\_b \\*c\\* \\`d\\` \\[e]", escapeMarkdown("a_b *c* `d` [e]"))
}
