package models

import "strings"

// Role is the account role carried in the access token and in `users`.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole upper-cases r and falls back to RoleUser when it is empty.
func ParseRole(r string) Role {
	r = strings.ToUpper(strings.TrimSpace(r))
	if r == "" {
		return RoleUser
	}
	return Role(r)
}

// UserRef is the participant/sender shape embedded in rooms and messages.
type UserRef struct {
	ID        ID     `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DisplayName returns "First Last", or the email local part when no name is set.
func (u UserRef) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return EmailLocalPart(u.Email)
}

// User is an account as returned by `users`, `user` and `me`.
type User struct {
	UserRef
	Role Role `json:"role"`
}

// IsAdmin reports whether the account holds the ADMIN role.
func (u User) IsAdmin() bool { return ParseRole(string(u.Role)) == RoleAdmin }

// Session is the display identity derived from the access token payload.
// It is never used for authorization decisions; the server owns those.
type Session struct {
	ID          ID
	Email       string
	DisplayName string
	Role        Role
}

// IsAdmin reports whether the decoded role is ADMIN.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// EmailLocalPart returns the part of an address before '@'.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
