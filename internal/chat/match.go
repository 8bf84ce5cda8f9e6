package chat

import (
	"time"

	"chatflow/client/internal/models"
)

// pending is an optimistic message waiting for its server echo.
type pending struct {
	msg models.Message
	// before holds the ids already confirmed in the room when the entry was
	// created; none of them can be its echo.
	before map[models.ID]struct{}
	// echo is the id the server returned for the send, once known.
	echo models.ID
}

// echoes reports whether server message m can stand for p.
func (p *pending) echoes(m models.Message, window time.Duration) bool {
	if !p.echo.IsZero() {
		return m.ID == p.echo
	}
	if m.RoomID != p.msg.RoomID && !m.RoomID.IsZero() {
		return false
	}
	if m.Content != p.msg.Content {
		return false
	}
	if !p.msg.SenderID.IsZero() && m.SenderID != p.msg.SenderID {
		return false
	}
	if _, old := p.before[m.ID]; old {
		return false
	}
	d := m.CreatedAt.Sub(p.msg.CreatedAt.Time)
	if d < 0 {
		d = -d
	}
	return d < window
}

// match pairs optimistic entries with confirmed messages one to one, oldest
// entry first. It returns the entries left without an echo and the ids of
// the server messages that absorbed one. A server message in claimed has
// already absorbed an entry in an earlier pass and is not offered again.
func match(confirmed []models.Message, entries []*pending, claimed map[models.ID]struct{}, window time.Duration) (unmatched []*pending, used map[models.ID]struct{}) {
	used = make(map[models.ID]struct{})
	for _, p := range entries {
		found := false
		for _, m := range confirmed {
			if _, taken := used[m.ID]; taken {
				continue
			}
			if _, taken := claimed[m.ID]; taken {
				continue
			}
			if p.echoes(m, window) {
				used[m.ID] = struct{}{}
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, p)
		}
	}
	return unmatched, used
}
