package forms

import (
	"regexp"
	"strings"

	"chatflow/client/internal/api"
	"chatflow/client/internal/models"
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	slugUnsafe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Notification is the admin "send notification" form.
type Notification struct {
	Title   string
	Message string
	Type    string
	UserID  models.ID
}

func (f Notification) Validate(m Messages) error {
	c := newChecker(m)
	c.required(FieldTitle, f.Title)
	c.required(FieldMessage, f.Message)
	if !validNotificationType(f.Type) {
		c.fail(FieldType, "validation.notification_type_invalid")
	}
	if f.UserID.IsZero() {
		c.fail(FieldUser, "validation.required.user")
	}
	return c.result()
}

func validNotificationType(s string) bool {
	t := models.ParseNotificationType(s)
	for _, known := range models.NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Input returns the createNotification input.
func (f Notification) Input() api.NewNotification {
	return api.NewNotification{
		Title:   strings.TrimSpace(f.Title),
		Message: strings.TrimSpace(f.Message),
		Type:    models.ParseNotificationType(f.Type),
		UserID:  f.UserID,
	}
}

// Channel is the create-channel form.
type Channel struct {
	Name           string
	Description    string
	Private        bool
	ParticipantIDs []models.ID
}

func (f Channel) Validate(m Messages) error {
	c := newChecker(m)
	c.required(FieldChannelName, f.Name)
	return c.result()
}

// Input returns the createRoom input.
func (f Channel) Input() api.NewRoom {
	return api.NewRoom{
		Name:           strings.TrimSpace(f.Name),
		Description:    strings.TrimSpace(f.Description),
		IsPrivate:      f.Private,
		ParticipantIDs: f.ParticipantIDs,
	}
}

// DirectMessage starts a conversation with one user.
type DirectMessage struct {
	UserID models.ID
}

func (f DirectMessage) Validate(m Messages) error {
	c := newChecker(m)
	if f.UserID.IsZero() {
		c.fail(FieldUser, "validation.required.user")
	}
	return c.result()
}

// DeleteRooms is the admin bulk delete selection.
type DeleteRooms struct {
	RoomIDs []models.ID
}

func (f DeleteRooms) Validate(m Messages) error {
	c := newChecker(m)
	if len(f.RoomIDs) == 0 {
		c.fail(FieldRooms, "validation.required.rooms")
	}
	return c.result()
}

// JoinDecision approves or rejects one join request.
type JoinDecision struct {
	RequestID models.ID
}

func (f JoinDecision) Validate(m Messages) error {
	c := newChecker(m)
	if f.RequestID.IsZero() {
		c.fail(FieldRequest, "validation.required.request")
	}
	return c.result()
}

// Workspace is the create-workspace form. A blank slug is derived from the name.
type Workspace struct {
	Name        string
	Slug        string
	Description string
}

func (f Workspace) Validate(m Messages) error {
	c := newChecker(m)
	c.required(FieldWorkspaceName, f.Name)
	if slug := f.slug(); slug != "" && !slugPattern.MatchString(slug) {
		c.fail(FieldSlug, "validation.slug_invalid")
	}
	return c.result()
}

func (f Workspace) slug() string {
	if s := strings.TrimSpace(f.Slug); s != "" {
		return s
	}
	return Slugify(f.Name)
}

// Input returns the createWorkspace input.
func (f Workspace) Input() api.NewWorkspace {
	return api.NewWorkspace{
		Name:        strings.TrimSpace(f.Name),
		Slug:        f.slug(),
		Description: strings.TrimSpace(f.Description),
	}
}

// Slugify lower-cases s and joins its letter/digit runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Invite invites an email address to the caller's workspace.
type Invite struct {
	Email string
}

func (f Invite) Validate(m Messages) error {
	c := newChecker(m)
	c.email(FieldEmail, f.Email)
	return c.result()
}
