package models

import "strings"

// NotificationType is the category shown as the notification's icon/colour.
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationSystem  NotificationType = "SYSTEM"
	NotificationJoin    NotificationType = "JOIN_REQUEST"
	NotificationMessage NotificationType = "MESSAGE"
)

// NotificationTypes lists the types an admin may pick when creating one.
var NotificationTypes = []NotificationType{
	NotificationInfo,
	NotificationWarning,
	NotificationError,
	NotificationSuccess,
	NotificationSystem,
}

// ParseNotificationType upper-cases s; unknown values are kept as-is.
func ParseNotificationType(s string) NotificationType {
	return NotificationType(strings.ToUpper(strings.TrimSpace(s)))
}

// Notification is server-owned; the client lists, creates, marks read and deletes.
type Notification struct {
	ID            ID               `json:"id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	UserID        ID               `json:"userId,omitempty"`
	ReferenceID   ID               `json:"referenceId,omitempty"`
	ReferenceType string           `json:"referenceType,omitempty"`
	Read          bool             `json:"read"`
	CreatedAt     Timestamp        `json:"createdAt"`
}
