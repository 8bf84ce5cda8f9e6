package forms

import (
	"strings"

	"chatflow/client/internal/api"
)

// Login is the sign-in form.
type Login struct {
	Email    string
	Password string
}

func (f Login) Validate(m Messages) error {
	c := newChecker(m)
	c.email(FieldEmail, f.Email)
	c.password(FieldPassword, f.Password)
	return c.result()
}

// Credentials returns the login input.
func (f Login) Credentials() api.Credentials {
	return api.Credentials{Email: strings.TrimSpace(f.Email), Password: f.Password}
}

// Register is the sign-up form. The admin bootstrap screen uses it too.
type Register struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

func (f Register) Validate(m Messages) error {
	c := newChecker(m)
	c.required(FieldFirstName, f.FirstName)
	c.required(FieldLastName, f.LastName)
	c.email(FieldEmail, f.Email)
	c.password(FieldPassword, f.Password)
	c.confirmation(FieldConfirmPassword, f.Password, f.ConfirmPassword)
	return c.result()
}

// User returns the register/bootstrapAdmin input.
func (f Register) User() api.NewUser {
	return api.NewUser{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Email:     strings.TrimSpace(f.Email),
		Password:  f.Password,
	}
}

// ForgotPassword asks for a reset link.
type ForgotPassword struct {
	Email string
}

func (f ForgotPassword) Validate(m Messages) error {
	c := newChecker(m)
	c.email(FieldEmail, f.Email)
	return c.result()
}

// ResetPassword sets a new password with a reset token.
type ResetPassword struct {
	Token           string
	Password        string
	ConfirmPassword string
}

func (f ResetPassword) Validate(m Messages) error {
	c := newChecker(m)
	c.required(FieldToken, f.Token)
	c.password(FieldPassword, f.Password)
	c.confirmation(FieldConfirmPassword, f.Password, f.ConfirmPassword)
	return c.result()
}
