// Package telegram forwards ChatFlow pushes (new notifications and,
// optionally, new messages) to a Telegram chat through the Bot API.
package telegram

import (
	"fmt"
	"strings"
	"sync"

	"chatflow/client/internal/localization"
	"chatflow/client/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const sendBuffer = 64

// Sender is the part of the Bot API the forwarder uses. *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type outgoing struct {
	notification *models.Notification
	message      *models.Message
}

// Forwarder queues pushes and sends them from one goroutine, like a hub
// client's write pump. A failed send is logged and skipped.
type Forwarder struct {
	bot      Sender
	chatID   int64
	log      *logrus.Entry
	loc      *localization.Localizer
	lang     string
	messages bool

	mu     sync.Mutex
	closed bool
	send   chan outgoing
	done   chan struct{}
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithMessages forwards chat messages as well as notifications.
func WithMessages(on bool) Option {
	return func(f *Forwarder) { f.messages = on }
}

// WithLocalizer sets the strings used for message headers.
func WithLocalizer(loc *localization.Localizer, lang string) Option {
	return func(f *Forwarder) {
		f.loc = loc
		f.lang = lang
	}
}

// NewForwarder starts a forwarder writing to chatID. Call Close to flush
// and stop it.
func NewForwarder(bot Sender, chatID int64, log *logrus.Entry, opts ...Option) *Forwarder {
	f := &Forwarder{
		bot:    bot,
		chatID: chatID,
		log:    log,
		lang:   localization.DefaultLanguage,
		send:   make(chan outgoing, sendBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.loc == nil {
		f.loc = localization.Default()
	}
	go f.writePump()
	return f
}

// NewBotForwarder authorizes token with Telegram and returns a forwarder over it.
func NewBotForwarder(token string, chatID int64, log *logrus.Entry, opts ...Option) (*Forwarder, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	bot.Debug = false
	log.WithField("bot", bot.Self.UserName).Info("authorized on telegram")
	return NewForwarder(bot, chatID, log, opts...), nil
}

// Notification queues n.
func (f *Forwarder) Notification(n models.Notification) {
	f.enqueue(outgoing{notification: &n})
}

// Message queues m when message forwarding is on.
func (f *Forwarder) Message(m models.Message) {
	if !f.messages {
		return
	}
	f.enqueue(outgoing{message: &m})
}

func (f *Forwarder) enqueue(o outgoing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.send <- o:
	default:
		f.log.Warn("telegram queue full, dropping push")
	}
}

// Close stops accepting pushes, sends what is queued and waits.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.send)
	}
	f.mu.Unlock()
	<-f.done
}

func (f *Forwarder) writePump() {
	defer func() {
		close(f.done)
		f.log.Debug("telegram write pump stopped")
	}()

	for o := range f.send {
		var text string
		switch {
		case o.notification != nil:
			text = f.formatNotification(*o.notification)
		case o.message != nil:
			text = f.formatMessage(*o.message)
		default:
			continue
		}

		msg := tgbotapi.NewMessage(f.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := f.bot.Send(msg); err != nil {
			f.log.WithError(err).WithField("chat", f.chatID).Error("telegram send failed")
		}
	}
}

func (f *Forwarder) formatNotification(n models.Notification) string {
	var b strings.Builder
	b.WriteString(icon(n.Type))
	b.WriteString(" *")
	b.WriteString(escapeMarkdown(n.Title))
	b.WriteString("*")
	if n.Message != "" {
		b.WriteString("\n")
		b.WriteString(escapeMarkdown(n.Message))
	}
	return b.String()
}

func (f *Forwarder) formatMessage(m models.Message) string {
	sender := m.Sender.DisplayName()
	if sender == "" {
		sender = m.SenderID.String()
	}
	header := f.loc.Format(f.lang, "telegram.message_header", escapeMarkdown(m.RoomID.String()), escapeMarkdown(sender))
	return header + "\n" + escapeMarkdown(m.Content)
}

func icon(t models.NotificationType) string {
	switch t {
	case models.NotificationWarning:
		return "⚠️"
	case models.NotificationError:
		return "🚫"
	case models.NotificationSuccess:
		return "✅"
	case models.NotificationJoin:
		return "🚪"
	case models.NotificationMessage:
		return "💬"
	case models.NotificationSystem:
		return "🛠"
	}
	return "🔔"
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// escapeMarkdown escapes the characters legacy Markdown treats as markup.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
