// Package forms holds the input models behind every screen and their
// client-side validation. Validation failures are never sent to the server.
package forms

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"chatflow/client/internal/config"
	"chatflow/client/internal/localization"
)

// Field names used as FieldErrors keys.
const (
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldCurrentPassword = "current_password"
	FieldTitle           = "title"
	FieldMessage         = "message"
	FieldType            = "type"
	FieldUser            = "user"
	FieldChannelName     = "channel_name"
	FieldWorkspaceName   = "workspace_name"
	FieldSlug            = "slug"
	FieldRooms           = "rooms"
	FieldRequest         = "request"
	FieldToken           = "token"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// FieldErrors maps a field name to its localized message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}

// Has reports whether field failed.
func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Messages resolves validation keys for one language.
type Messages struct {
	loc  *localization.Localizer
	lang string
}

// NewMessages binds loc to lang. A nil loc uses the embedded tables.
func NewMessages(loc *localization.Localizer, lang string) Messages {
	if loc == nil {
		loc = localization.Default()
	}
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	return Messages{loc: loc, lang: lang}
}

// Form is implemented by every input model.
type Form interface {
	Validate(m Messages) error
}

// Submit validates f and calls send only when it is valid. The returned
// error is a FieldErrors for invalid input, otherwise send's error.
func Submit(ctx context.Context, m Messages, f Form, send func(ctx context.Context) error) error {
	if err := f.Validate(m); err != nil {
		return err
	}
	return send(ctx)
}

// checker accumulates the errors of one Validate call.
type checker struct {
	m    Messages
	errs FieldErrors
}

func newChecker(m Messages) *checker {
	if m.loc == nil {
		m = NewMessages(nil, "")
	}
	return &checker{m: m, errs: make(FieldErrors)}
}

func (c *checker) fail(field, key string, args ...any) {
	if c.errs.Has(field) {
		return
	}
	msg := c.m.loc.GetString(c.m.lang, key)
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	c.errs[field] = msg
}

func (c *checker) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.fail(field, "validation.required."+field)
		return false
	}
	return true
}

func (c *checker) email(field, value string) {
	if c.required(field, value) && !emailPattern.MatchString(value) {
		c.fail(field, "validation.email_invalid")
	}
}

func (c *checker) optionalEmail(field, value string) {
	if strings.TrimSpace(value) != "" && !emailPattern.MatchString(value) {
		c.fail(field, "validation.email_invalid")
	}
}

func (c *checker) password(field, value string) {
	if value == "" {
		c.fail(field, "validation.required."+field)
		return
	}
	if utf8.RuneCountInString(value) < config.MinPasswordLength {
		c.fail(field, "validation.password_too_short", config.MinPasswordLength)
	}
}

func (c *checker) confirmation(field, password, confirm string) {
	if confirm == "" {
		c.fail(field, "validation.required.confirm_password")
		return
	}
	if password != confirm {
		c.fail(field, "validation.passwords_mismatch")
	}
}

func (c *checker) result() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}
