package models

// Message is a chat message in a room.
//
// Optimistic messages are client-local placeholders created at submit time.
// They carry a ClientID instead of a server ID and are never sent back to the
// server; the JSON tags on the client-only fields keep them out of payloads.
type Message struct {
	ID        ID        `json:"id"`
	Content   string    `json:"content"`
	SenderID  ID        `json:"senderId"`
	RoomID    ID        `json:"roomId"`
	CreatedAt Timestamp `json:"createdAt"`
	Sender    UserRef   `json:"sender"`

	Optimistic bool   `json:"-"`
	ClientID   string `json:"-"`
}

// Key identifies a message for list rendering: the server ID for confirmed
// messages, the client ID for optimistic ones.
func (m Message) Key() string {
	if m.Optimistic {
		return "optimistic-" + m.ClientID
	}
	return m.ID.String()
}
