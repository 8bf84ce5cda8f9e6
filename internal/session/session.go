// Package session owns the logged-in flag and the display identity derived
// from the access token. There is exactly one Provider per running client; it
// is created at startup and passed to whatever needs it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"chatflow/client/internal/models"
	"chatflow/client/internal/storage"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// EventKind describes a session transition.
type EventKind int

const (
	EventLoggedIn EventKind = iota
	EventLoggedOut
	// EventExpired is emitted when a token refresh failed and the session was dropped.
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventLoggedIn:
		return "logged_in"
	case EventLoggedOut:
		return "logged_out"
	case EventExpired:
		return "expired"
	}
	return "unknown"
}

// Event is delivered to listeners after every transition.
type Event struct {
	Kind EventKind
	Err  error
}

// Provider is the session context: login/logout operations, a logged-in
// flag and a lazily decoded identity.
type Provider struct {
	store storage.TokenStore
	log   *logrus.Entry

	mu        sync.RWMutex
	loggedIn  bool
	identity  *models.Session
	decoded   bool
	listeners []func(Event)
}

// NewProvider returns a logged-out provider over store. Call Restore to pick
// up a persisted login.
func NewProvider(store storage.TokenStore, log *logrus.Entry) *Provider {
	return &Provider{store: store, log: log}
}

// Store exposes the underlying token store to the transport.
func (p *Provider) Store() storage.TokenStore { return p.store }

// OnChange registers fn for every transition. Listeners run synchronously
// after the state lock is released.
func (p *Provider) OnChange(fn func(Event)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Restore sets the flag from the presence of a stored access token. The
// identity is decoded on first access.
func (p *Provider) Restore(ctx context.Context) error {
	pair, err := p.store.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	p.mu.Lock()
	p.loggedIn = pair.AccessToken != ""
	p.identity = nil
	p.decoded = false
	p.mu.Unlock()

	p.log.WithField("logged_in", pair.AccessToken != "").Debug("session restored")
	return nil
}

// Login persists both tokens, flips the flag and decodes the identity. A
// token that cannot be decoded leaves the identity unset but the session
// logged in.
func (p *Provider) Login(ctx context.Context, pair models.TokenPair) error {
	if pair.AccessToken == "" {
		return errors.New("login: empty access token")
	}
	if err := p.store.SaveTokens(ctx, pair); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	identity, err := DecodeIdentity(pair.AccessToken)
	if err != nil {
		p.log.WithError(err).Warn("could not decode access token")
	}

	p.mu.Lock()
	p.loggedIn = true
	p.identity = identity
	p.decoded = true
	p.mu.Unlock()

	p.emit(Event{Kind: EventLoggedIn})
	return nil
}

// Logout clears tokens, identity and flag, then tells listeners to return
// to the entry screen. State is cleared even when the store fails.
func (p *Provider) Logout(ctx context.Context) error {
	err := p.clear(ctx)
	p.emit(Event{Kind: EventLoggedOut})
	return err
}

// Expire drops the session after a failed token refresh.
func (p *Provider) Expire(ctx context.Context, cause error) {
	if err := p.clear(ctx); err != nil {
		p.log.WithError(err).Error("clear tokens after expiry")
	}
	p.log.WithError(cause).Warn("session expired")
	p.emit(Event{Kind: EventExpired, Err: cause})
}

func (p *Provider) clear(ctx context.Context) error {
	err := p.store.ClearTokens(ctx)

	p.mu.Lock()
	p.loggedIn = false
	p.identity = nil
	p.decoded = false
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// IsLoggedIn reports the flag.
func (p *Provider) IsLoggedIn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loggedIn
}

// User returns the display identity, decoding it from the stored token on
// first use. ok is false when logged out or when the token is malformed;
// callers must treat identity fields as possibly absent.
func (p *Provider) User(ctx context.Context) (models.Session, bool) {
	p.mu.RLock()
	if !p.loggedIn {
		p.mu.RUnlock()
		return models.Session{}, false
	}
	if p.decoded {
		defer p.mu.RUnlock()
		if p.identity == nil {
			return models.Session{}, false
		}
		return *p.identity, true
	}
	p.mu.RUnlock()

	token, err := storage.AccessToken(ctx, p.store)
	if err != nil {
		p.log.WithError(err).Warn("read access token")
		return models.Session{}, false
	}
	identity, err := DecodeIdentity(token)
	if err != nil {
		p.log.WithError(err).Warn("could not decode access token")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loggedIn {
		return models.Session{}, false
	}
	p.identity = identity
	p.decoded = true
	if identity == nil {
		return models.Session{}, false
	}
	return *identity, true
}

func (p *Provider) emit(ev Event) {
	p.mu.RLock()
	listeners := append([]func(Event){}, p.listeners...)
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// DecodeIdentity reads {sub, email, role} from the token payload without
// checking the signature or the header's alg. The result is for display only.
func DecodeIdentity(token string) (*models.Session, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("decode token: %w", jwt.ErrTokenMalformed)
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}

	id := claimID(claims["sub"])
	email, _ := claims["email"].(string)
	if id == "" && email == "" {
		return nil, errors.New("decode token: payload has neither sub nor email")
	}

	role, _ := claims["role"].(string)
	s := &models.Session{
		ID:    id,
		Email: email,
		Role:  models.ParseRole(role),
	}
	s.DisplayName = displayName(claims, email)
	return s, nil
}

func claimID(v any) models.ID {
	switch sub := v.(type) {
	case string:
		return models.ID(sub)
	case float64:
		return models.ID(strconv.FormatFloat(sub, 'f', -1, 64))
	}
	return ""
}

func displayName(claims jwt.MapClaims, email string) string {
	first, _ := claims["firstName"].(string)
	last, _ := claims["lastName"].(string)
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	if name, ok := claims["name"].(string); ok && name != "" {
		return name
	}
	return models.EmailLocalPart(email)
}
