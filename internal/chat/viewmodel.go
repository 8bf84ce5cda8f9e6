// Package chat is the message view-model behind the chat screen. It merges
// server-confirmed history with optimistic local entries, polls the selected
// room and keeps per-room unread counters for pushed messages.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"chatflow/client/internal/config"
	"chatflow/client/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoRoom       = errors.New("no room selected")
)

// MessageService is the subset of the API the view-model needs.
type MessageService interface {
	RoomMessages(ctx context.Context, roomID models.ID) ([]models.Message, error)
	SendMessage(ctx context.Context, roomID models.ID, content string) (models.Message, error)
}

// Identity supplies the display identity used as the sender of optimistic
// messages. *session.Provider satisfies it.
type Identity interface {
	User(ctx context.Context) (models.Session, bool)
}

// ViewModel holds the state of the chat screen. All methods are safe for
// concurrent use; fetches run in the caller's goroutine.
type ViewModel struct {
	svc          MessageService
	rooms        RoomDirectory
	identity     Identity
	log          *logrus.Entry
	now          func() time.Time
	pollInterval time.Duration
	matchWindow  time.Duration
	refetchDelay time.Duration

	mu        sync.Mutex
	selected  *models.Room
	confirmed []models.Message
	pending   []*pending
	claimed   map[models.ID]struct{}
	unread    map[models.ID]int
	seq       uint64
	applied   uint64
	lastErr   error
	lists     roomLists
	listeners []func()
}

// Option configures a ViewModel.
type Option func(*ViewModel)

func WithLogger(log *logrus.Entry) Option {
	return func(vm *ViewModel) { vm.log = log }
}

// WithClock replaces time.Now for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(vm *ViewModel) { vm.now = now }
}

func WithPollInterval(d time.Duration) Option {
	return func(vm *ViewModel) { vm.pollInterval = d }
}

// WithMatchWindow sets how far apart an optimistic entry and its server echo
// may be timestamped.
func WithMatchWindow(d time.Duration) Option {
	return func(vm *ViewModel) { vm.matchWindow = d }
}

// WithRefetchDelay sets the pause between a successful send and the refetch.
func WithRefetchDelay(d time.Duration) Option {
	return func(vm *ViewModel) { vm.refetchDelay = d }
}

// WithRooms enables RefreshRooms.
func WithRooms(rooms RoomDirectory) Option {
	return func(vm *ViewModel) { vm.rooms = rooms }
}

// New returns a view-model with no room selected.
func New(svc MessageService, identity Identity, opts ...Option) *ViewModel {
	vm := &ViewModel{
		svc:          svc,
		identity:     identity,
		log:          logrus.NewEntry(logrus.StandardLogger()),
		now:          time.Now,
		pollInterval: config.DefaultPollInterval,
		matchWindow:  config.MatchWindow,
		refetchDelay: config.SendRefetchDelay,
		claimed:      make(map[models.ID]struct{}),
		unread:       make(map[models.ID]int),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// OnChange registers fn to run after every state change.
func (vm *ViewModel) OnChange(fn func()) {
	vm.mu.Lock()
	vm.listeners = append(vm.listeners, fn)
	vm.mu.Unlock()
}

func (vm *ViewModel) notify() {
	vm.mu.Lock()
	listeners := append([]func(){}, vm.listeners...)
	vm.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// SelectRoom makes room the active one, clears its unread counter and loads
// its history. Responses still in flight for the previous room are dropped.
func (vm *ViewModel) SelectRoom(ctx context.Context, room models.Room) error {
	vm.mu.Lock()
	vm.selected = &room
	vm.confirmed = nil
	vm.applied = vm.seq
	vm.lastErr = nil
	delete(vm.unread, room.ID)
	vm.mu.Unlock()
	vm.notify()

	return vm.fetch(ctx, room.ID)
}

// Selected returns the active room.
func (vm *ViewModel) Selected() (models.Room, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.selected == nil {
		return models.Room{}, false
	}
	return *vm.selected, true
}

// Refresh refetches the active room.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	vm.mu.Lock()
	sel := vm.selected
	vm.mu.Unlock()
	if sel == nil {
		return ErrNoRoom
	}
	return vm.fetch(ctx, sel.ID)
}

// Submit shows text immediately as an optimistic message, sends it and
// refetches. A failed send removes the optimistic entry and returns the
// server error; a failed refetch after a good send is only logged.
func (vm *ViewModel) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	vm.mu.Lock()
	if vm.selected == nil {
		vm.mu.Unlock()
		return ErrNoRoom
	}
	roomID := vm.selected.ID
	entry := &pending{
		msg: models.Message{
			Content:    text,
			RoomID:     roomID,
			CreatedAt:  models.NewTimestamp(vm.now()),
			Optimistic: true,
			ClientID:   uuid.NewString(),
		},
		before: make(map[models.ID]struct{}, len(vm.confirmed)),
	}
	for _, m := range vm.confirmed {
		entry.before[m.ID] = struct{}{}
	}
	vm.mu.Unlock()

	if vm.identity != nil {
		if self, ok := vm.identity.User(ctx); ok {
			entry.msg.SenderID = self.ID
			entry.msg.Sender = models.UserRef{ID: self.ID, FirstName: self.DisplayName, Email: self.Email}
		}
	}

	vm.mu.Lock()
	vm.pending = append(vm.pending, entry)
	vm.mu.Unlock()
	vm.notify()

	sent, err := vm.svc.SendMessage(ctx, roomID, text)
	if err != nil {
		vm.mu.Lock()
		vm.removePendingLocked(entry)
		vm.mu.Unlock()
		vm.notify()
		vm.log.WithError(err).WithField("room", roomID).Warn("send failed")
		return err
	}

	vm.mu.Lock()
	entry.echo = sent.ID
	vm.mu.Unlock()

	if vm.refetchDelay > 0 {
		select {
		case <-time.After(vm.refetchDelay):
		case <-ctx.Done():
			return nil
		}
	}
	if err := vm.fetch(ctx, roomID); err != nil {
		vm.log.WithError(err).WithField("room", roomID).Warn("refetch after send failed")
	}
	return nil
}

func (vm *ViewModel) removePendingLocked(entry *pending) {
	for i, p := range vm.pending {
		if p == entry {
			vm.pending = append(vm.pending[:i], vm.pending[i+1:]...)
			break
		}
	}
	if len(vm.pending) == 0 {
		vm.claimed = make(map[models.ID]struct{})
	}
}

// fetch loads roomID's history and applies it only when the room is still
// selected and no fetch issued later has been applied already.
func (vm *ViewModel) fetch(ctx context.Context, roomID models.ID) error {
	vm.mu.Lock()
	vm.seq++
	seq := vm.seq
	vm.mu.Unlock()

	msgs, err := vm.svc.RoomMessages(ctx, roomID)

	vm.mu.Lock()
	current := vm.selected != nil && vm.selected.ID == roomID
	if !current || seq <= vm.applied {
		vm.mu.Unlock()
		vm.log.WithError(err).WithFields(logrus.Fields{"room": roomID, "seq": seq}).Debug("discarding stale fetch")
		return nil
	}
	if err != nil {
		vm.lastErr = err
		vm.mu.Unlock()
		vm.notify()
		return err
	}

	vm.applied = seq
	vm.confirmed = msgs
	vm.lastErr = nil

	var mine, others []*pending
	for _, p := range vm.pending {
		if p.msg.RoomID == roomID {
			mine = append(mine, p)
		} else {
			others = append(others, p)
		}
	}
	unmatched, used := match(msgs, mine, vm.claimed, vm.matchWindow)
	vm.pending = append(others, unmatched...)
	if len(vm.pending) == 0 {
		vm.claimed = make(map[models.ID]struct{})
	} else {
		for id := range used {
			vm.claimed[id] = struct{}{}
		}
	}
	vm.mu.Unlock()
	vm.notify()
	return nil
}

// Visible returns the messages to render for the active room: confirmed
// history followed by optimistic entries that no server message accounts for.
func (vm *ViewModel) Visible() []models.Message {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.selected == nil {
		return nil
	}
	out := make([]models.Message, 0, len(vm.confirmed)+len(vm.pending))
	out = append(out, vm.confirmed...)

	var mine []*pending
	for _, p := range vm.pending {
		if p.msg.RoomID == vm.selected.ID {
			mine = append(mine, p)
		}
	}
	unmatched, _ := match(vm.confirmed, mine, vm.claimed, vm.matchWindow)
	for _, p := range unmatched {
		out = append(out, p.msg)
	}
	return out
}

// OnPush handles a message delivered by the messageAdded subscription.
func (vm *ViewModel) OnPush(ctx context.Context, msg models.Message) error {
	vm.mu.Lock()
	active := vm.selected != nil && vm.selected.ID == msg.RoomID
	if !active {
		vm.unread[msg.RoomID]++
	}
	vm.mu.Unlock()

	if active {
		return vm.fetch(ctx, msg.RoomID)
	}
	vm.notify()
	return nil
}

// Unread returns the number of pushed messages for roomID since it was last
// selected.
func (vm *ViewModel) Unread(roomID models.ID) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.unread[roomID]
}

// UnreadTotal sums every room's unread counter.
func (vm *ViewModel) UnreadTotal() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	total := 0
	for _, n := range vm.unread {
		total += n
	}
	return total
}

// Err is the error of the last failed fetch for the active room.
func (vm *ViewModel) Err() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.lastErr
}

// Reset drops all state, as after logout.
func (vm *ViewModel) Reset() {
	vm.mu.Lock()
	vm.selected = nil
	vm.confirmed = nil
	vm.pending = nil
	vm.claimed = make(map[models.ID]struct{})
	vm.unread = make(map[models.ID]int)
	vm.applied = vm.seq
	vm.lastErr = nil
	vm.lists = roomLists{}
	vm.mu.Unlock()
	vm.notify()
}

// Run polls the active room every poll interval until ctx is done.
func (vm *ViewModel) Run(ctx context.Context) {
	ticker := time.NewTicker(vm.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := vm.Refresh(ctx); err != nil && !errors.Is(err, ErrNoRoom) && ctx.Err() == nil {
				vm.log.WithError(err).Debug("poll failed")
			}
		}
	}
}
