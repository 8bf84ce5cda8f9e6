package stub

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

func operations() map[string]operation {
	return map[string]operation{
		"Login":          {field: "login", public: true, fn: resolveLogin},
		"Register":       {field: "register", public: true, fn: resolveRegister},
		"BootstrapAdmin": {field: "bootstrapAdmin", public: true, fn: resolveBootstrapAdmin},
		"RefreshToken":   {field: "refreshToken", public: true, fn: resolveRefreshToken},
		"ForgotPassword": {field: "forgotPassword", public: true, fn: resolveForgotPassword},
		"ResetPassword":  {field: "resetPassword", public: true, fn: resolveResetPassword},

		"Users":          {field: "users", fn: resolveUsers},
		"Me":             {field: "me", fn: resolveMe},
		"User":           {field: "user", fn: resolveUser},
		"UpdateProfile":  {field: "updateProfile", fn: resolveUpdateProfile},
		"ChangePassword": {field: "changePassword", fn: resolveChangePassword},

		"MyRooms":             {field: "myRooms", fn: resolveMyRooms},
		"MyChannels":          {field: "myChannels", fn: resolveMyChannels},
		"MyDirectMessages":    {field: "myDirectMessages", fn: resolveMyDirectMessages},
		"DiscoverChannels":    {field: "discoverChannels", fn: resolveDiscoverChannels},
		"RoomMessages":        {field: "roomMessages", fn: resolveRoomMessages},
		"CreateRoom":          {field: "createRoom", fn: resolveCreateRoom},
		"CreateDirectMessage": {field: "createDirectMessage", fn: resolveCreateDirectMessage},
		"SendMessage":         {field: "sendMessage", fn: resolveSendMessage},
		"RequestJoin":         {field: "requestToJoin", fn: resolveRequestJoin},
		"ApproveJoin":         {field: "approveJoin", fn: resolveDecideJoin("approveJoinInput", "APPROVED")},
		"RejectJoin":          {field: "rejectJoin", fn: resolveDecideJoin("rejectJoinInput", "REJECTED")},
		"DeleteRooms":         {field: "deleteRooms", fn: resolveDeleteRooms},

		"MyNotifications":      {field: "myNotifications", fn: resolveMyNotifications},
		"UnreadCount":          {field: "unreadCount", fn: resolveUnreadCount},
		"CreateNotification":   {field: "createNotification", fn: resolveCreateNotification},
		"MarkNotificationRead": {field: "markNotificationRead", fn: resolveMarkNotificationRead},
		"DeleteNotification":   {field: "deleteNotification", fn: resolveDeleteNotification},

		"CreateWorkspace":      {field: "createWorkspace", fn: resolveCreateWorkspace},
		"Workspaces":           {field: "workspaces", fn: resolveWorkspaces},
		"Workspace":            {field: "workspace", fn: resolveWorkspace},
		"WorkspaceBySlug":      {field: "workspaceBySlug", fn: resolveWorkspaceBySlug},
		"MyWorkspace":          {field: "myWorkspace", fn: resolveMyWorkspace},
		"InviteUser":           {field: "inviteUser", fn: resolveInviteUser},
		"AcceptInvitation":     {field: "acceptInvitation", fn: resolveAcceptInvitation},
		"WorkspaceInvitations": {field: "workspaceInvitations", fn: resolveWorkspaceInvitations},
	}
}

func requireAdmin(c *call) error {
	if c.user.role != RoleAdmin {
		return errForbidden
	}
	return nil
}

// users

func (s *Server) sortedUsers() []*user {
	list := make([]*user, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

func resolveUsers(s *Server, c *call) (any, error) {
	out := []map[string]any{}
	for _, u := range s.sortedUsers() {
		out = append(out, userView(u))
	}
	return out, nil
}

func resolveMe(s *Server, c *call) (any, error) {
	return userView(c.user), nil
}

func resolveUser(s *Server, c *call) (any, error) {
	id, err := integer(c.vars, "id")
	if err != nil {
		return nil, err
	}
	u := s.users[id]
	if u == nil {
		return nil, fmt.Errorf("User with ID %d not found", id)
	}
	return userView(u), nil
}

func resolveUpdateProfile(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "updateProfileInput")
	if err != nil {
		return nil, err
	}
	if v := text(in, "firstName"); v != "" {
		c.user.firstName = v
	}
	if v := text(in, "lastName"); v != "" {
		c.user.lastName = v
	}
	if v := strings.ToLower(text(in, "email")); v != "" && v != c.user.email {
		if s.userByEmail(v) != nil {
			return nil, errors.New("User with this email already exists")
		}
		c.user.email = v
	}
	return userRefView(c.user), nil
}

func resolveChangePassword(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "changePasswordInput")
	if err != nil {
		return nil, err
	}
	current, _ := in["currentPassword"].(string)
	next, _ := in["newPassword"].(string)
	if bcryptMismatch(c.user.hash, current) {
		return nil, errors.New("Current password is incorrect")
	}
	if len(next) < 6 {
		return nil, errors.New("password must be longer than or equal to 6 characters")
	}
	hash, err := hashPassword(next)
	if err != nil {
		return nil, err
	}
	c.user.hash = hash
	return true, nil
}

// rooms

func (s *Server) roomsWhere(keep func(*room) bool) []map[string]any {
	ids := make([]int, 0, len(s.rooms))
	for id, r := range s.rooms {
		if keep(r) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.roomView(s.rooms[id]))
	}
	return out
}

func resolveMyRooms(s *Server, c *call) (any, error) {
	return s.roomsWhere(func(r *room) bool { return r.has(c.user.id) }), nil
}

func resolveMyChannels(s *Server, c *call) (any, error) {
	return s.roomsWhere(func(r *room) bool { return r.kind == "channel" && r.has(c.user.id) }), nil
}

func resolveMyDirectMessages(s *Server, c *call) (any, error) {
	return s.roomsWhere(func(r *room) bool { return r.kind == "direct" && r.has(c.user.id) }), nil
}

func resolveDiscoverChannels(s *Server, c *call) (any, error) {
	rooms := s.roomsWhere(func(r *room) bool { return r.kind == "channel" && !r.has(c.user.id) })
	for _, r := range rooms {
		delete(r, "participants")
	}
	return rooms, nil
}

func (s *Server) memberRoom(c *call, key string, vars map[string]any) (*room, error) {
	id, err := integer(vars, key)
	if err != nil {
		return nil, err
	}
	r := s.rooms[id]
	if r == nil {
		return nil, fmt.Errorf("Room with ID %d not found", id)
	}
	if !r.has(c.user.id) && c.user.role != RoleAdmin {
		return nil, errors.New("You are not a participant of this room")
	}
	return r, nil
}

func resolveRoomMessages(s *Server, c *call) (any, error) {
	r, err := s.memberRoom(c, "roomId", c.vars)
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for _, m := range s.messages {
		if m.roomID == r.id {
			out = append(out, s.messageView(m))
		}
	}
	return out, nil
}

func resolveCreateRoom(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "createRoomInput")
	if err != nil {
		return nil, err
	}
	name := text(in, "name")
	if name == "" {
		return nil, errors.New("name should not be empty")
	}
	private, _ := in["isPrivate"].(bool)
	r := s.addRoomLocked(name, text(in, "description"), "channel", private, c.user.id, integers(in, "participantIds"))
	return s.roomView(r), nil
}

func (s *Server) addRoomLocked(name, description, kind string, private bool, admin int, participants []int) *room {
	r := &room{
		id:          s.id(),
		name:        name,
		kind:        kind,
		description: description,
		private:     private,
		adminID:     admin,
	}
	seen := map[int]bool{}
	for _, id := range append([]int{admin}, participants...) {
		if s.users[id] != nil && !seen[id] {
			seen[id] = true
			r.participants = append(r.participants, id)
		}
	}
	s.rooms[r.id] = r
	return r
}

// AddChannel seeds a channel and returns its id.
func (s *Server) AddChannel(name string, admin int, participants ...int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRoomLocked(name, "", "channel", false, admin, participants).id
}

func resolveCreateDirectMessage(s *Server, c *call) (any, error) {
	other, err := integer(c.vars, "otherUserId")
	if err != nil {
		return nil, err
	}
	peer := s.users[other]
	if peer == nil {
		return nil, fmt.Errorf("User with ID %d not found", other)
	}
	if other == c.user.id {
		return nil, errors.New("Cannot create a direct message with yourself")
	}
	for _, r := range s.rooms {
		if r.kind == "direct" && r.has(c.user.id) && r.has(other) {
			return s.roomView(r), nil
		}
	}
	name := fmt.Sprintf("dm-%d-%d", c.user.id, other)
	r := s.addRoomLocked(name, "", "direct", true, c.user.id, []int{other})
	return s.roomView(r), nil
}

func resolveSendMessage(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "sendMessageInput")
	if err != nil {
		return nil, err
	}
	content, _ := in["content"].(string)
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("content should not be empty")
	}
	r, err := s.memberRoom(c, "roomId", in)
	if err != nil {
		return nil, err
	}
	return s.postLocked(r, c.user.id, content), nil
}

func (s *Server) postLocked(r *room, sender int, content string) map[string]any {
	m := &message{
		id:        s.id(),
		roomID:    r.id,
		senderID:  sender,
		content:   content,
		createdAt: time.Now(),
	}
	s.messages = append(s.messages, m)
	view := s.messageView(m)
	for _, uid := range r.participants {
		s.hub.Publish(uid, "messageAdded", view)
	}
	return view
}

// Post stores a message from sender as if sent by another client and
// pushes it to the room's participants.
func (s *Server) Post(roomID, sender int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rooms[roomID]
	if r == nil {
		return fmt.Errorf("Room with ID %d not found", roomID)
	}
	s.postLocked(r, sender, content)
	return nil
}

func resolveRequestJoin(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "requestJoinInput")
	if err != nil {
		return nil, err
	}
	id, err := integer(in, "roomId")
	if err != nil {
		return nil, err
	}
	r := s.rooms[id]
	if r == nil || r.kind != "channel" {
		return nil, fmt.Errorf("Channel with ID %d not found", id)
	}
	if r.has(c.user.id) {
		return nil, errors.New("You are already a participant of this channel")
	}
	jr := &joinRequest{id: s.id(), roomID: r.id, requesterID: c.user.id, status: "PENDING", createdAt: time.Now()}
	if !r.private {
		jr.status = "APPROVED"
		r.participants = append(r.participants, c.user.id)
	} else {
		s.notifyLocked(r.adminID, "Join request",
			fmt.Sprintf("%s %s asked to join %s", c.user.firstName, c.user.lastName, r.name),
			"join_request", jr.id, "JOIN_REQUEST")
	}
	s.joins[jr.id] = jr
	return joinView(jr), nil
}

func resolveDecideJoin(input, status string) func(*Server, *call) (any, error) {
	return func(s *Server, c *call) (any, error) {
		in, err := object(c.vars, input)
		if err != nil {
			return nil, err
		}
		id, err := integer(in, "requestId")
		if err != nil {
			return nil, err
		}
		jr := s.joins[id]
		if jr == nil {
			return nil, fmt.Errorf("Join request with ID %d not found", id)
		}
		r := s.rooms[jr.roomID]
		if r == nil {
			return nil, fmt.Errorf("Room with ID %d not found", jr.roomID)
		}
		if r.adminID != c.user.id && c.user.role != RoleAdmin {
			return nil, errForbidden
		}
		if jr.status != "PENDING" {
			return nil, errors.New("Join request already processed")
		}
		jr.status = status
		if status == "APPROVED" && !r.has(jr.requesterID) {
			r.participants = append(r.participants, jr.requesterID)
		}
		s.notifyLocked(jr.requesterID, "Join request "+strings.ToLower(status),
			fmt.Sprintf("Your request to join %s was %s", r.name, strings.ToLower(status)),
			"info", r.id, "ROOM")
		return joinView(jr), nil
	}
}

// PendingJoinRequests returns the ids of undecided join requests.
func (s *Server) PendingJoinRequests() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for id, jr := range s.joins {
		if jr.status == "PENDING" {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func resolveDeleteRooms(s *Server, c *call) (any, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	in, err := object(c.vars, "deleteRoomsInput")
	if err != nil {
		return nil, err
	}
	for _, id := range integers(in, "roomIds") {
		delete(s.rooms, id)
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.roomID != id {
				kept = append(kept, m)
			}
		}
		s.messages = kept
	}
	return true, nil
}

// notifications

var notificationKinds = map[string]bool{
	"info": true, "warning": true, "error": true, "success": true,
	"system": true, "admin": true, "join_request": true, "message": true,
}

func (s *Server) notifyLocked(uid int, title, body, kind string, refID int, refType string) *notification {
	n := &notification{
		id:            s.id(),
		userID:        uid,
		title:         title,
		message:       body,
		kind:          kind,
		referenceID:   refID,
		referenceType: refType,
		createdAt:     time.Now(),
	}
	s.notifications[n.id] = n
	s.hub.Publish(uid, "notificationAdded", notificationView(n))
	return n
}

// Notify creates a notification for uid and pushes it.
func (s *Server) Notify(uid int, title, body, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked(uid, title, body, kind, 0, "")
}

func (s *Server) notificationsOf(uid int) []*notification {
	var list []*notification
	for _, n := range s.notifications {
		if n.userID == uid {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id > list[j].id })
	return list
}

func resolveMyNotifications(s *Server, c *call) (any, error) {
	out := []map[string]any{}
	for _, n := range s.notificationsOf(c.user.id) {
		out = append(out, notificationView(n))
	}
	return out, nil
}

func resolveUnreadCount(s *Server, c *call) (any, error) {
	count := 0
	for _, n := range s.notificationsOf(c.user.id) {
		if !n.read {
			count++
		}
	}
	return count, nil
}

func resolveCreateNotification(s *Server, c *call) (any, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	in, err := object(c.vars, "createNotificationInput")
	if err != nil {
		return nil, err
	}
	title, body := text(in, "title"), text(in, "message")
	if title == "" || body == "" {
		return nil, errors.New("title and message should not be empty")
	}
	kind := strings.ToLower(text(in, "type"))
	if !notificationKinds[kind] {
		return nil, fmt.Errorf("Invalid notification type %q", kind)
	}
	uid, err := integer(in, "userId")
	if err != nil {
		return nil, err
	}
	if s.users[uid] == nil {
		return nil, fmt.Errorf("User with ID %d not found", uid)
	}
	return notificationView(s.notifyLocked(uid, title, body, kind, 0, "")), nil
}

func (s *Server) ownNotification(c *call) (*notification, error) {
	id, err := integer(c.vars, "id")
	if err != nil {
		return nil, err
	}
	n := s.notifications[id]
	if n == nil || n.userID != c.user.id {
		return nil, fmt.Errorf("Notification with ID %d not found", id)
	}
	return n, nil
}

func resolveMarkNotificationRead(s *Server, c *call) (any, error) {
	n, err := s.ownNotification(c)
	if err != nil {
		return nil, err
	}
	n.read = true
	return map[string]any{"id": idString(n.id), "read": true}, nil
}

func resolveDeleteNotification(s *Server, c *call) (any, error) {
	n, err := s.ownNotification(c)
	if err != nil {
		return nil, err
	}
	delete(s.notifications, n.id)
	return true, nil
}

// workspaces

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func resolveCreateWorkspace(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "createWorkspaceInput")
	if err != nil {
		return nil, err
	}
	name, slug := text(in, "name"), text(in, "slug")
	if name == "" {
		return nil, errors.New("name should not be empty")
	}
	if !slugPattern.MatchString(slug) {
		return nil, errors.New("slug must contain only lowercase letters, numbers and hyphens")
	}
	for _, w := range s.workspaces {
		if w.slug == slug {
			return nil, errors.New("Workspace with this slug already exists")
		}
	}
	w := &workspace{id: s.id(), name: name, slug: slug, description: text(in, "description")}
	s.workspaces[w.id] = w
	if c.user.workspace == 0 {
		c.user.workspace = w.id
	}
	return workspaceView(w), nil
}

func resolveWorkspaces(s *Server, c *call) (any, error) {
	ids := make([]int, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, workspaceView(s.workspaces[id]))
	}
	return out, nil
}

func resolveWorkspace(s *Server, c *call) (any, error) {
	id, err := integer(c.vars, "id")
	if err != nil {
		return nil, err
	}
	w := s.workspaces[id]
	if w == nil {
		return nil, fmt.Errorf("Workspace with ID %d not found", id)
	}
	return workspaceView(w), nil
}

func resolveWorkspaceBySlug(s *Server, c *call) (any, error) {
	slug := text(c.vars, "slug")
	for _, w := range s.workspaces {
		if w.slug == slug {
			return workspaceView(w), nil
		}
	}
	return nil, fmt.Errorf("Workspace %q not found", slug)
}

func resolveMyWorkspace(s *Server, c *call) (any, error) {
	w := s.workspaces[c.user.workspace]
	if w == nil {
		return nil, errors.New("You are not a member of any workspace")
	}
	return workspaceView(w), nil
}

func resolveInviteUser(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "inviteUserInput")
	if err != nil {
		return nil, err
	}
	w := s.workspaces[c.user.workspace]
	if w == nil {
		return map[string]any{"success": false, "message": "You are not a member of any workspace"}, nil
	}
	email := strings.ToLower(text(in, "email"))
	if !strings.Contains(email, "@") {
		return nil, errors.New("email must be an email")
	}
	inv := &invitation{
		id:          s.id(),
		workspaceID: w.id,
		email:       email,
		token:       uuid.NewString(),
		status:      "PENDING",
		createdAt:   time.Now(),
	}
	s.invitations[inv.id] = inv
	return map[string]any{"success": true, "message": "Invitation sent to " + email}, nil
}

func resolveAcceptInvitation(s *Server, c *call) (any, error) {
	token := text(c.vars, "token")
	for _, inv := range s.invitations {
		if inv.token == token && inv.status == "PENDING" {
			inv.status = "ACCEPTED"
			c.user.workspace = inv.workspaceID
			return map[string]any{"success": true, "message": "Invitation accepted"}, nil
		}
	}
	return map[string]any{"success": false, "message": "Invalid or expired invitation"}, nil
}

func resolveWorkspaceInvitations(s *Server, c *call) (any, error) {
	var list []*invitation
	for _, inv := range s.invitations {
		if inv.workspaceID == c.user.workspace {
			list = append(list, inv)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	out := make([]map[string]any, 0, len(list))
	for _, inv := range list {
		out = append(out, invitationView(inv))
	}
	return out, nil
}

// InvitationToken returns the token of the pending invitation for email.
func (s *Server) InvitationToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.email == strings.ToLower(email) && inv.status == "PENDING" {
			return inv.token
		}
	}
	return ""
}
