package stub

import (
	"strconv"
	"time"
)

type user struct {
	id        int
	firstName string
	lastName  string
	email     string
	hash      []byte
	role      string
	workspace int
}

type room struct {
	id           int
	name         string
	kind         string
	description  string
	private      bool
	adminID      int
	participants []int
}

func (r *room) has(uid int) bool {
	for _, p := range r.participants {
		if p == uid {
			return true
		}
	}
	return false
}

type message struct {
	id        int
	roomID    int
	senderID  int
	content   string
	createdAt time.Time
}

type notification struct {
	id            int
	userID        int
	title         string
	message       string
	kind          string
	referenceID   int
	referenceType string
	read          bool
	createdAt     time.Time
}

type joinRequest struct {
	id          int
	roomID      int
	requesterID int
	status      string
	createdAt   time.Time
}

type workspace struct {
	id          int
	name        string
	slug        string
	description string
}

type invitation struct {
	id          int
	workspaceID int
	email       string
	token       string
	status      string
	createdAt   time.Time
}

// The views below mimic the real server's mixed shapes: `id` fields are
// GraphQL IDs (strings) while foreign keys are Floats, and message
// timestamps are epoch milliseconds in a string.

func idString(id int) string { return strconv.Itoa(id) }

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func userRefView(u *user) map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":        idString(u.id),
		"firstName": u.firstName,
		"lastName":  u.lastName,
		"email":     u.email,
	}
}

func userView(u *user) map[string]any {
	v := userRefView(u)
	v["role"] = u.role
	return v
}

func (s *Server) roomView(r *room) map[string]any {
	participants := make([]map[string]any, 0, len(r.participants))
	for _, id := range r.participants {
		if u := s.users[id]; u != nil {
			participants = append(participants, userRefView(u))
		}
	}
	return map[string]any{
		"id":           idString(r.id),
		"name":         r.name,
		"type":         r.kind,
		"description":  r.description,
		"isPrivate":    r.private,
		"adminId":      r.adminID,
		"participants": participants,
	}
}

func (s *Server) messageView(m *message) map[string]any {
	return map[string]any{
		"id":        idString(m.id),
		"content":   m.content,
		"senderId":  m.senderID,
		"roomId":    m.roomID,
		"createdAt": millis(m.createdAt),
		"sender":    userRefView(s.users[m.senderID]),
	}
}

func notificationView(n *notification) map[string]any {
	v := map[string]any{
		"id":        idString(n.id),
		"title":     n.title,
		"message":   n.message,
		"type":      n.kind,
		"userId":    n.userID,
		"read":      n.read,
		"createdAt": n.createdAt.UTC().Format(time.RFC3339Nano),
	}
	if n.referenceID != 0 {
		v["referenceId"] = n.referenceID
		v["referenceType"] = n.referenceType
	}
	return v
}

func joinView(j *joinRequest) map[string]any {
	return map[string]any{
		"id":          idString(j.id),
		"roomId":      j.roomID,
		"requesterId": j.requesterID,
		"status":      j.status,
		"createdAt":   j.createdAt.UTC().Format(time.RFC3339Nano),
	}
}

func workspaceView(w *workspace) map[string]any {
	return map[string]any{
		"id":          idString(w.id),
		"name":        w.name,
		"slug":        w.slug,
		"description": w.description,
	}
}

func invitationView(i *invitation) map[string]any {
	return map[string]any{
		"id":        idString(i.id),
		"email":     i.email,
		"status":    i.status,
		"createdAt": i.createdAt.UTC().Format(time.RFC3339Nano),
	}
}
