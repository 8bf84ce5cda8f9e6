package forms

import (
	"strings"

	"chatflow/client/internal/api"
)

// Profile edits the caller's name and email.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
}

func (f Profile) Validate(m Messages) error {
	c := newChecker(m)
	c.required(FieldFirstName, f.FirstName)
	c.required(FieldLastName, f.LastName)
	c.optionalEmail(FieldEmail, f.Email)
	return c.result()
}

// Input returns the updateProfile input; an empty email is left unchanged.
func (f Profile) Input() api.ProfileUpdate {
	return api.ProfileUpdate{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Email:     strings.TrimSpace(f.Email),
	}
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	Current         string
	New             string
	ConfirmPassword string
}

func (f PasswordChange) Validate(m Messages) error {
	c := newChecker(m)
	if f.Current == "" {
		c.fail(FieldCurrentPassword, "validation.required.current_password")
	}
	c.password(FieldPassword, f.New)
	c.confirmation(FieldConfirmPassword, f.New, f.ConfirmPassword)
	return c.result()
}
