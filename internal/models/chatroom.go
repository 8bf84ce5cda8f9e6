package models

import "strings"

// RoomKind distinguishes channels from direct-message rooms.
type RoomKind string

const (
	RoomChannel RoomKind = "CHANNEL"
	RoomDirect  RoomKind = "DIRECT"
)

// ParseRoomKind normalises the server's `type` field.
func ParseRoomKind(s string) RoomKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DIRECT", "DM", "DIRECT_MESSAGE":
		return RoomDirect
	default:
		return RoomChannel
	}
}

// Room is a channel (multi-party, discoverable) or a direct-message
// conversation. Rooms are server-owned; the client only reads and creates them.
type Room struct {
	// ID is the room identifier; RoomMessages and SendMessage take it as a number.
	ID ID `json:"id"`
	// Name is the channel name, or the server-generated name of a DM.
	Name string `json:"name"`
	// Type is the raw server kind; use Kind for comparisons.
	Type string `json:"type"`
	// Description is set on channels only.
	Description string `json:"description,omitempty"`
	// IsPrivate channels require an approved join request.
	IsPrivate bool `json:"isPrivate"`
	// AdminID is the user who created the channel.
	AdminID ID `json:"adminId"`
	// Participants is empty for discoverable channels the caller has not joined.
	Participants []UserRef `json:"participants"`
}

// Kind returns the normalised room kind.
func (r Room) Kind() RoomKind { return ParseRoomKind(r.Type) }

// Title is the label shown in room lists. For a DM it is the other
// participant's display name when self is known.
func (r Room) Title(self ID) string {
	if r.Kind() == RoomDirect {
		for _, p := range r.Participants {
			if p.ID != self {
				return p.DisplayName()
			}
		}
	}
	if r.Name != "" {
		return r.Name
	}
	return "room " + r.ID.String()
}

// HasParticipant reports whether id is a member of the room.
func (r Room) HasParticipant(id ID) bool {
	for _, p := range r.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// JoinStatus is the lifecycle state of a JoinRequest.
type JoinStatus string

const (
	JoinPending  JoinStatus = "PENDING"
	JoinApproved JoinStatus = "APPROVED"
	JoinRejected JoinStatus = "REJECTED"
)

// JoinRequest asks a private channel's admin for membership.
type JoinRequest struct {
	ID          ID         `json:"id"`
	RoomID      ID         `json:"roomId"`
	RequesterID ID         `json:"requesterId"`
	Status      JoinStatus `json:"status"`
	CreatedAt   Timestamp  `json:"createdAt"`
}
