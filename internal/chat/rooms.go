package chat

import (
	"context"
	"fmt"

	"chatflow/client/internal/models"
)

// RoomDirectory lists the rooms and people shown beside the conversation.
// *api.Client satisfies it.
type RoomDirectory interface {
	MyChannels(ctx context.Context) ([]models.Room, error)
	MyDirectMessages(ctx context.Context) ([]models.Room, error)
	DiscoverChannels(ctx context.Context) ([]models.Room, error)
	Users(ctx context.Context) ([]models.User, error)
}

type roomLists struct {
	channels []models.Room
	direct   []models.Room
	discover []models.Room
	users    []models.User
}

// RefreshRooms reloads the channel, direct-message, discover and people
// lists. Discoverable channels the caller already belongs to and the caller
// themself are left out.
func (vm *ViewModel) RefreshRooms(ctx context.Context) error {
	if vm.rooms == nil {
		return nil
	}

	channels, err := vm.rooms.MyChannels(ctx)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	direct, err := vm.rooms.MyDirectMessages(ctx)
	if err != nil {
		return fmt.Errorf("load direct messages: %w", err)
	}
	discover, err := vm.rooms.DiscoverChannels(ctx)
	if err != nil {
		return fmt.Errorf("load discoverable channels: %w", err)
	}
	users, err := vm.rooms.Users(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	var self models.ID
	if vm.identity != nil {
		if s, ok := vm.identity.User(ctx); ok {
			self = s.ID
		}
	}

	joined := make(map[models.ID]struct{}, len(channels))
	for _, r := range channels {
		joined[r.ID] = struct{}{}
	}
	open := discover[:0:0]
	for _, r := range discover {
		if _, ok := joined[r.ID]; ok {
			continue
		}
		if !self.IsZero() && r.HasParticipant(self) {
			continue
		}
		open = append(open, r)
	}
	others := users[:0:0]
	for _, u := range users {
		if u.ID != self {
			others = append(others, u)
		}
	}

	vm.mu.Lock()
	vm.lists = roomLists{channels: channels, direct: direct, discover: open, users: others}
	vm.mu.Unlock()
	vm.notify()
	return nil
}

// Channels returns the channels the caller belongs to.
func (vm *ViewModel) Channels() []models.Room {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]models.Room(nil), vm.lists.channels...)
}

// DirectMessages returns the caller's direct-message rooms.
func (vm *ViewModel) DirectMessages() []models.Room {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]models.Room(nil), vm.lists.direct...)
}

// Discover returns channels the caller may join.
func (vm *ViewModel) Discover() []models.Room {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]models.Room(nil), vm.lists.discover...)
}

// Users returns everyone except the caller.
func (vm *ViewModel) Users() []models.User {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]models.User(nil), vm.lists.users...)
}
