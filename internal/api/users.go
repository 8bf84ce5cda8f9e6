package api

import (
	"context"

	"chatflow/client/internal/models"
)

const usersQuery = `query Users {
  users {
    id
    firstName
    lastName
    email
    role
  }
}`

const meQuery = `query Me {
  me {
    id
    email
    firstName
    lastName
    role
  }
}`

const userQuery = `query User($id: ID!) {
  user(id: $id) {
    id
    firstName
    lastName
    email
    role
  }
}`

const updateProfileMutation = `mutation UpdateProfile($updateProfileInput: UpdateProfileInput!) {
  updateProfile(updateProfileInput: $updateProfileInput) {
    id
    firstName
    lastName
    email
  }
}`

const changePasswordMutation = `mutation ChangePassword($changePasswordInput: ChangePasswordInput!) {
  changePassword(changePasswordInput: $changePasswordInput)
}`

// ProfileUpdate is the updateProfile input. Empty fields are left unchanged.
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Users lists every account.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := c.do(ctx, "Users", usersQuery, nil, "users", &users)
	return users, err
}

// Me returns the server's view of the logged-in user.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.do(ctx, "Me", meQuery, nil, "me", &u)
	return u, err
}

// User returns one account.
func (c *Client) User(ctx context.Context, id models.ID) (models.User, error) {
	var u models.User
	err := c.do(ctx, "User", userQuery, map[string]any{"id": id}, "user", &u)
	return u, err
}

// UpdateProfile changes the caller's name or email.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (models.UserRef, error) {
	var u models.UserRef
	err := c.do(ctx, "UpdateProfile", updateProfileMutation, map[string]any{"updateProfileInput": in}, "updateProfile", &u)
	return u, err
}

// ChangePassword replaces the caller's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) (bool, error) {
	var ok bool
	vars := map[string]any{"changePasswordInput": map[string]any{
		"currentPassword": current,
		"newPassword":     next,
	}}
	err := c.do(ctx, "ChangePassword", changePasswordMutation, vars, "changePassword", &ok)
	return ok, err
}
