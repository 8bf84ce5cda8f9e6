package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatflow/client/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the graphql-ws library's protocol name.
const Subprotocol = "graphql-transport-ws"

// graphql-transport-ws message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1 << 20
	defaultAckTimeout = 10 * time.Second
	sendBuffer        = 64
	eventBuffer       = 64

	// closeUnauthorized is the graphql-ws close code for a rejected connection_init.
	closeUnauthorized = 4401
)

// RejectedError reports that the server refused connection_init because
// Token was not accepted.
type RejectedError struct {
	Token string
	Err   error
}

func (e *RejectedError) Error() string { return "connection rejected: " + e.Err.Error() }

func (e *RejectedError) Unwrap() []error { return []error{ErrUnauthorized, e.Err} }

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one `next` payload of a subscription.
type Event struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors,omitempty"`
}

// Decode unmarshals the event data into out.
func (e Event) Decode(out any) error {
	r := Response{Data: e.Data, Errors: e.Errors}
	return r.Decode(out)
}

// Subscription is one active operation on the socket. Events is closed when
// the server completes the operation, on Unsubscribe, or when the socket drops.
type Subscription struct {
	ID     string
	Events <-chan Event

	events  chan Event
	owner   *Subscriber
	done    chan struct{}
	once    sync.Once
	sending sync.RWMutex

	mu  sync.Mutex
	err error
}

// Err reports why the subscription ended, or nil while it is running or
// after a clean completion.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe stops the operation on the server and closes Events.
func (s *Subscription) Unsubscribe() {
	s.owner.unsubscribe(s)
}

// deliver blocks until ev is consumed or the subscription ends.
func (s *Subscription) deliver(ev Event) {
	s.sending.RLock()
	defer s.sending.RUnlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		// wait for an in-flight deliver before closing the channel
		s.sending.Lock()
		close(s.events)
		s.sending.Unlock()
	})
}

// Subscriber owns one graphql-transport-ws socket. The access token is sent
// once, in connection_init; a later token refresh does not reconnect. There
// is no automatic reconnect: after the socket drops every subscription is
// closed and Connect must be called again.
type Subscriber struct {
	url        string
	tokens     storage.TokenStore
	dialer     *websocket.Dialer
	log        *logrus.Entry
	ackTimeout time.Duration

	// connectMu serialises Connect so only one socket is ever dialled.
	connectMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string]*Subscription
	send   chan wsMessage
	closed chan struct{}
	err    error
	wg     sync.WaitGroup
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) SubscriberOption {
	return func(s *Subscriber) { s.dialer = d }
}

// WithSubscriberLogger sets the logger entry.
func WithSubscriberLogger(log *logrus.Entry) SubscriberOption {
	return func(s *Subscriber) { s.log = log }
}

// WithAckTimeout bounds the wait for connection_ack.
func WithAckTimeout(d time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.ackTimeout = d }
}

// NewSubscriber returns a disconnected subscriber for url (ws:// or wss://).
func NewSubscriber(url string, tokens storage.TokenStore, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:        url,
		tokens:     tokens,
		dialer:     websocket.DefaultDialer,
		log:        logrus.NewEntry(logrus.StandardLogger()),
		ackTimeout: defaultAckTimeout,
		subs:       make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials, sends connection_init with the current access token and
// waits for connection_ack.
func (s *Subscriber) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	token, err := storage.AccessToken(ctx, s.tokens)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}

	dialer := *s.dialer
	dialer.Subprotocols = []string{Subprotocol}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	authorization := ""
	if token != "" {
		authorization = "Bearer " + token
	}
	initPayload, _ := json.Marshal(map[string]string{"authorization": authorization})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(wsMessage{Type: msgConnectionInit, Payload: initPayload}); err != nil {
		conn.Close()
		return fmt.Errorf("send connection_init: %w", err)
	}

	if err := awaitAck(ctx, conn, s.ackTimeout); err != nil {
		conn.Close()
		if websocket.IsCloseError(errors.Unwrap(err), closeUnauthorized) {
			return &RejectedError{Token: token, Err: err}
		}
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.send = make(chan wsMessage, sendBuffer)
	s.closed = make(chan struct{})
	s.err = nil
	s.mu.Unlock()

	s.wg.Add(2)
	go s.writePump(conn, s.send, s.closed)
	go s.readPump(conn)

	s.log.WithField("url", s.url).Info("subscription socket connected")
	return nil
}

func awaitAck(ctx context.Context, conn *websocket.Conn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("wait for connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsMessage{Type: msgPong}); err != nil {
				return fmt.Errorf("answer ping: %w", err)
			}
		default:
			return fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
}

// Connected reports whether the socket is up.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Err reports why the last socket dropped.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the current socket drops or is closed. It returns nil
// before the first Connect.
func (s *Subscriber) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Subscribe starts req on the socket.
func (s *Subscriber) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode subscription: %w", err)
	}

	events := make(chan Event, eventBuffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Events: events,
		events: events,
		owner:  s,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.subs[sub.ID] = sub
	send, closed := s.send, s.closed
	s.mu.Unlock()

	select {
	case send <- wsMessage{ID: sub.ID, Type: msgSubscribe, Payload: payload}:
	case <-closed:
		return nil, ErrNotConnected
	case <-ctx.Done():
		s.drop(sub.ID)
		return nil, ctx.Err()
	}

	s.log.WithFields(logrus.Fields{"id": sub.ID, "operation": req.OperationName}).Debug("subscribed")
	return sub, nil
}

func (s *Subscriber) unsubscribe(sub *Subscription) {
	if !s.drop(sub.ID) {
		return
	}
	s.mu.Lock()
	send, closed := s.send, s.closed
	s.mu.Unlock()

	if send != nil {
		select {
		case send <- wsMessage{ID: sub.ID, Type: msgComplete}:
		case <-closed:
		}
	}
	sub.finish(nil)
}

// drop removes id from the table and reports whether it was present.
func (s *Subscriber) drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return false
	}
	delete(s.subs, id)
	return true
}

func (s *Subscriber) lookup(id string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

// Close ends every subscription and closes the socket.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.shutdown(conn, nil)
	s.wg.Wait()
	return nil
}

// shutdown tears down conn once; later calls for the same conn are no-ops.
func (s *Subscriber) shutdown(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.err = cause
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	close(s.closed)
	s.mu.Unlock()

	conn.Close()
	for _, sub := range subs {
		sub.finish(cause)
	}
	if cause != nil {
		s.log.WithError(cause).Warn("subscription socket dropped")
	}
}

func (s *Subscriber) readPump(conn *websocket.Conn) {
	defer s.wg.Done()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			s.shutdown(conn, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.WithError(err).Warn("undecodable subscription frame")
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Subscriber) dispatch(msg wsMessage) {
	switch msg.Type {
	case msgPing:
		s.mu.Lock()
		send, closed := s.send, s.closed
		s.mu.Unlock()
		select {
		case send <- wsMessage{Type: msgPong}:
		case <-closed:
		}

	case msgPong:

	case msgNext:
		sub := s.lookup(msg.ID)
		if sub == nil {
			return
		}
		var ev Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			s.log.WithError(err).WithField("id", msg.ID).Warn("undecodable subscription payload")
			return
		}
		sub.deliver(ev)

	case msgError:
		sub := s.lookup(msg.ID)
		if sub == nil {
			return
		}
		var errs Errors
		if err := json.Unmarshal(msg.Payload, &errs); err != nil || len(errs) == 0 {
			errs = Errors{{Message: "subscription failed"}}
		}
		s.drop(msg.ID)
		sub.finish(errs)

	case msgComplete:
		if sub := s.lookup(msg.ID); sub != nil {
			s.drop(msg.ID)
			sub.finish(nil)
		}

	default:
		s.log.WithField("type", msg.Type).Debug("ignoring subscription frame")
	}
}

// writePump serialises every outgoing frame and keeps the socket alive with
// websocket pings.
func (s *Subscriber) writePump(conn *websocket.Conn, send <-chan wsMessage, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.wg.Done()
	}()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.shutdown(conn, fmt.Errorf("write %s: %w", msg.Type, err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.shutdown(conn, fmt.Errorf("ping: %w", err))
				return
			}
		case <-closed:
			return
		}
	}
}
