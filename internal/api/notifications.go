package api

import (
	"context"
	"strings"

	"chatflow/client/internal/models"
)

const myNotificationsQuery = `query MyNotifications {
  myNotifications {
    id
    title
    message
    type
    referenceId
    referenceType
    read
    createdAt
  }
}`

const unreadCountQuery = `query UnreadCount {
  unreadCount
}`

const createNotificationMutation = `mutation CreateNotification($createNotificationInput: CreateNotificationDto!) {
  createNotification(createNotificationInput: $createNotificationInput) {
    id
    title
    message
    type
    userId
    read
    createdAt
  }
}`

const markNotificationReadMutation = `mutation MarkNotificationRead($id: Float!) {
  markNotificationRead(id: $id) {
    id
    read
  }
}`

const deleteNotificationMutation = `mutation DeleteNotification($id: Float!) {
  deleteNotification(id: $id)
}`

// NewNotification is the createNotification input.
type NewNotification struct {
	Title   string
	Message string
	Type    models.NotificationType
	UserID  models.ID
}

// MyNotifications lists the caller's notifications, newest first.
func (c *Client) MyNotifications(ctx context.Context) ([]models.Notification, error) {
	var list []models.Notification
	if err := c.do(ctx, "MyNotifications", myNotificationsQuery, nil, "myNotifications", &list); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Type = models.ParseNotificationType(string(list[i].Type))
	}
	return list, nil
}

// UnreadCount returns the server's unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var n int
	err := c.do(ctx, "UnreadCount", unreadCountQuery, nil, "unreadCount", &n)
	return n, err
}

// CreateNotification sends a notification to one user. The type goes out
// lower-case, as the server's enum expects.
func (c *Client) CreateNotification(ctx context.Context, in NewNotification) (models.Notification, error) {
	uid, err := number("CreateNotification", in.UserID)
	if err != nil {
		return models.Notification{}, err
	}
	vars := map[string]any{"createNotificationInput": map[string]any{
		"title":   in.Title,
		"message": in.Message,
		"type":    strings.ToLower(string(in.Type)),
		"userId":  uid,
	}}
	var n models.Notification
	err = c.do(ctx, "CreateNotification", createNotificationMutation, vars, "createNotification", &n)
	n.Type = models.ParseNotificationType(string(n.Type))
	return n, err
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id models.ID) (models.Notification, error) {
	n, err := number("MarkNotificationRead", id)
	if err != nil {
		return models.Notification{}, err
	}
	var out models.Notification
	err = c.do(ctx, "MarkNotificationRead", markNotificationReadMutation, map[string]any{"id": n}, "markNotificationRead", &out)
	return out, err
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id models.ID) (bool, error) {
	n, err := number("DeleteNotification", id)
	if err != nil {
		return false, err
	}
	var ok bool
	err = c.do(ctx, "DeleteNotification", deleteNotificationMutation, map[string]any{"id": n}, "deleteNotification", &ok)
	return ok, err
}
