package api

import (
	"context"

	"chatflow/client/internal/models"
)

const loginMutation = `mutation Login($loginInput: LoginInput!) {
  login(loginInput: $loginInput) {
    access_token
    refresh_token
  }
}`

const registerMutation = `mutation Register($registerInput: CreateUserInput!) {
  register(registerInput: $registerInput) {
    message
  }
}`

const bootstrapAdminMutation = `mutation BootstrapAdmin($bootstrapInput: CreateUserInput!) {
  bootstrapAdmin(bootstrapInput: $bootstrapInput) {
    access_token
    refresh_token
  }
}`

const forgotPasswordMutation = `mutation ForgotPassword($forgotPasswordInput: ForgotPasswordInput!) {
  forgotPassword(forgotPasswordInput: $forgotPasswordInput) {
    message
  }
}`

const resetPasswordMutation = `mutation ResetPassword($resetPasswordInput: ResetPasswordInput!) {
  resetPassword(resetPasswordInput: $resetPasswordInput) {
    message
  }
}`

// Credentials is the login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewUser is the register and bootstrap input.
type NewUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, in Credentials) (models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(ctx, "Login", loginMutation, map[string]any{"loginInput": in}, "login", &pair)
	return pair, err
}

// Register creates a regular account. The server answers with a message;
// the caller still has to log in.
func (c *Client) Register(ctx context.Context, in NewUser) (models.MessageResult, error) {
	var res models.MessageResult
	err := c.do(ctx, "Register", registerMutation, map[string]any{"registerInput": in}, "register", &res)
	return res, err
}

// BootstrapAdmin creates the first administrator and returns its tokens.
func (c *Client) BootstrapAdmin(ctx context.Context, in NewUser) (models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(ctx, "BootstrapAdmin", bootstrapAdminMutation, map[string]any{"bootstrapInput": in}, "bootstrapAdmin", &pair)
	return pair, err
}

// ForgotPassword asks the server to mail a reset token.
func (c *Client) ForgotPassword(ctx context.Context, email string) (models.MessageResult, error) {
	var res models.MessageResult
	vars := map[string]any{"forgotPasswordInput": map[string]any{"email": email}}
	err := c.do(ctx, "ForgotPassword", forgotPasswordMutation, vars, "forgotPassword", &res)
	return res, err
}

// ResetPassword sets a new password with a mailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (models.MessageResult, error) {
	var res models.MessageResult
	vars := map[string]any{"resetPasswordInput": map[string]any{"token": token, "newPassword": password}}
	err := c.do(ctx, "ResetPassword", resetPasswordMutation, vars, "resetPassword", &res)
	return res, err
}
