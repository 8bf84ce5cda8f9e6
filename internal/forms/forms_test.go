package forms_test

import (
	"context"
	"errors"
	"testing"

	"chatflow/client/internal/forms"
	"chatflow/client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var en = forms.NewMessages(nil, "en")

func fieldErrors(t *testing.T, err error) forms.FieldErrors {
	t.Helper()
	var fe forms.FieldErrors
	require.True(t, errors.As(err, &fe), "want FieldErrors, got %v", err)
	return fe
}

func TestRegister_ShortAndMismatchedPassword(t *testing.T) {
	f := forms.Register{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Password:        "abc",
		ConfirmPassword: "abcd",
	}

	called := false
	err := forms.Submit(context.Background(), en, f, func(context.Context) error {
		called = true
		return nil
	})

	fe := fieldErrors(t, err)
	assert.Len(t, fe, 2)
	assert.Equal(t, "Password must be at least 6 characters", fe[forms.FieldPassword])
	assert.Equal(t, "Passwords do not match", fe[forms.FieldConfirmPassword])
	assert.False(t, called, "invalid forms are never submitted")
}

func TestRegister_Valid(t *testing.T) {
	f := forms.Register{FirstName: " Ada ", LastName: "Lovelace", Email: "ada@example.com", Password: "secret1", ConfirmPassword: "secret1"}
	require.NoError(t, f.Validate(en))

	u := f.User()
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "secret1", u.Password)

	called := false
	err := forms.Submit(context.Background(), en, f, func(context.Context) error {
		called = true
		return errors.New("User with this email already exists")
	})
	assert.True(t, called)
	assert.EqualError(t, err, "User with this email already exists")
}

func TestRegister_Required(t *testing.T) {
	fe := fieldErrors(t, forms.Register{FirstName: "  "}.Validate(en))

	assert.Equal(t, "First name is required", fe[forms.FieldFirstName])
	assert.Equal(t, "Last name is required", fe[forms.FieldLastName])
	assert.Equal(t, "Email is required", fe[forms.FieldEmail])
	assert.Equal(t, "Password is required", fe[forms.FieldPassword])
	assert.Equal(t, "Please confirm your password", fe[forms.FieldConfirmPassword])
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name   string
		form   forms.Login
		fields []string
	}{
		{"valid", forms.Login{Email: "ada@example.com", Password: "secret1"}, nil},
		{"empty", forms.Login{}, []string{forms.FieldEmail, forms.FieldPassword}},
		{"bad email", forms.Login{Email: "ada.example.com", Password: "secret1"}, []string{forms.FieldEmail}},
		{"no tld", forms.Login{Email: "ada@example", Password: "secret1"}, []string{forms.FieldEmail}},
		{"short password", forms.Login{Email: "ada@example.com", Password: "12345"}, []string{forms.FieldPassword}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate(en)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			fe := fieldErrors(t, err)
			assert.Len(t, fe, len(tt.fields))
			for _, f := range tt.fields {
				assert.True(t, fe.Has(f), f)
			}
		})
	}
}

func TestPasswordLengthCountsCharacters(t *testing.T) {
	assert.NoError(t, forms.Login{Email: "a@b.co", Password: "пароль"}.Validate(en))
}

func TestNotification(t *testing.T) {
	fe := fieldErrors(t, forms.Notification{Type: "URGENT"}.Validate(en))
	assert.True(t, fe.Has(forms.FieldTitle))
	assert.True(t, fe.Has(forms.FieldMessage))
	assert.Equal(t, "Unknown notification type", fe[forms.FieldType])
	assert.Equal(t, "Please select a user", fe[forms.FieldUser])

	f := forms.Notification{Title: "Hi", Message: "there", Type: "warning", UserID: "2"}
	require.NoError(t, f.Validate(en))
	assert.Equal(t, models.NotificationWarning, f.Input().Type)

	assert.Error(t, forms.Notification{Title: "Hi", Message: "there", Type: "JOIN_REQUEST", UserID: "2"}.Validate(en),
		"system-generated types cannot be created by hand")
}

func TestWorkspaceSlug(t *testing.T) {
	f := forms.Workspace{Name: "Acme Corp  Team!"}
	require.NoError(t, f.Validate(en))
	assert.Equal(t, "acme-corp-team", f.Input().Slug)

	fe := fieldErrors(t, forms.Workspace{Name: "Acme", Slug: "Acme_Corp"}.Validate(en))
	assert.Equal(t, "Slug may only contain lowercase letters, digits and dashes", fe[forms.FieldSlug])

	fe = fieldErrors(t, forms.Workspace{}.Validate(en))
	assert.True(t, fe.Has(forms.FieldWorkspaceName))
	assert.False(t, fe.Has(forms.FieldSlug))
}

func TestProfileAndPasswordChange(t *testing.T) {
	assert.NoError(t, forms.Profile{FirstName: "Ada", LastName: "Lovelace"}.Validate(en), "email is optional")
	fe := fieldErrors(t, forms.Profile{FirstName: "Ada", LastName: "Lovelace", Email: "nope"}.Validate(en))
	assert.True(t, fe.Has(forms.FieldEmail))

	fe = fieldErrors(t, forms.PasswordChange{New: "secret2", ConfirmPassword: "secret3"}.Validate(en))
	assert.Equal(t, "Current password is required", fe[forms.FieldCurrentPassword])
	assert.Equal(t, "Passwords do not match", fe[forms.FieldConfirmPassword])
	assert.False(t, fe.Has(forms.FieldPassword))
}

func TestSelections(t *testing.T) {
	assert.Error(t, forms.DeleteRooms{}.Validate(en))
	assert.NoError(t, forms.DeleteRooms{RoomIDs: []models.ID{"1"}}.Validate(en))
	assert.Error(t, forms.JoinDecision{}.Validate(en))
	assert.Error(t, forms.DirectMessage{}.Validate(en))
	assert.Error(t, forms.Channel{Name: " "}.Validate(en))
	assert.NoError(t, forms.Channel{Name: "general"}.Validate(en))
	assert.Error(t, forms.Invite{Email: "bob"}.Validate(en))
	assert.Error(t, forms.ResetPassword{Password: "secret1", ConfirmPassword: "secret1"}.Validate(en))
}

func TestLocalizedMessages(t *testing.T) {
	fe := fieldErrors(t, forms.Login{}.Validate(forms.NewMessages(nil, "uk")))
	assert.Equal(t, "Email обов'язковий", fe[forms.FieldEmail])
}

func TestFieldErrorsError(t *testing.T) {
	fe := forms.FieldErrors{"password": "too short", "email": "missing"}
	assert.Equal(t, "email: missing; password: too short", fe.Error())
}
