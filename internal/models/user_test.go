package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"chatflow/client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRole verifies roles are upper-cased and default to USER.
func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want models.Role
	}{
		{name: "lower admin", in: "admin", want: models.RoleAdmin},
		{name: "upper user", in: "USER", want: models.RoleUser},
		{name: "empty", in: "", want: models.RoleUser},
		{name: "whitespace", in: "  ", want: models.RoleUser},
		{name: "unknown kept", in: "moderator", want: models.Role("MODERATOR")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ParseRole(tt.in))
		})
	}
}

// TestUserRefDisplayName covers the name fallback chain.
func TestUserRefDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", models.UserRef{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "Ada", models.UserRef{FirstName: "Ada", Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "ada", models.UserRef{Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "", models.UserRef{}.DisplayName())
}

// TestUserDecode checks that embedded UserRef fields decode from the flat GraphQL shape.
func TestUserDecode(t *testing.T) {
	// Arrange
	payload := `{"id": 7, "firstName": "Grace", "lastName": "Hopper", "email": "grace@example.com", "role": "admin"}`

	// Act
	var u models.User
	err := json.Unmarshal([]byte(payload), &u)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.ID("7"), u.ID)
	assert.Equal(t, "Grace Hopper", u.DisplayName())
	assert.True(t, u.IsAdmin(), "lower-case admin role should still count as admin")
}

// TestIDUnmarshal accepts strings, integers and integral floats.
func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want models.ID
	}{
		{in: `"12"`, want: "12"},
		{in: `12`, want: "12"},
		{in: `12.0`, want: "12"},
		{in: `null`, want: ""},
		{in: `"abc-uuid"`, want: "abc-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var id models.ID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

// TestIDNumber converts numeric ids for Float! arguments.
func TestIDNumber(t *testing.T) {
	n, err := models.ID("42").Number()
	require.NoError(t, err)
	assert.Equal(t, float64(42), n)

	_, err = models.ID("room-a").Number()
	assert.Error(t, err)
}

// TestTimestampUnmarshal covers the createdAt encodings the API has been seen to use.
func TestTimestampUnmarshal(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	ms := want.UnixMilli()

	tests := []struct {
		name string
		in   string
	}{
		{name: "rfc3339", in: `"2025-03-01T12:30:00Z"`},
		{name: "epoch millis number", in: mustJSON(t, ms)},
		{name: "epoch millis string", in: mustJSON(t, mustJSON(t, ms))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts models.Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var empty models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())
}

// TestRoomTitle uses the other participant's name for direct messages.
func TestRoomTitle(t *testing.T) {
	dm := models.Room{
		ID:   "3",
		Name: "dm-1-2",
		Type: "direct",
		Participants: []models.UserRef{
			{ID: "1", FirstName: "Me"},
			{ID: "2", FirstName: "Other", LastName: "Person"},
		},
	}
	channel := models.Room{ID: "4", Name: "general", Type: "channel"}

	assert.Equal(t, models.RoomDirect, dm.Kind())
	assert.Equal(t, "Other Person", dm.Title("1"))
	assert.Equal(t, models.RoomChannel, channel.Kind())
	assert.Equal(t, "general", channel.Title("1"))
	assert.True(t, dm.HasParticipant("2"))
	assert.False(t, channel.HasParticipant("2"))
}

// TestMessageClientFieldsNotSerialized keeps optimistic bookkeeping off the wire.
func TestMessageClientFieldsNotSerialized(t *testing.T) {
	msg := models.Message{Content: "hi", Optimistic: true, ClientID: "tmp"}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "optimistic")
	assert.NotContains(t, string(data), "tmp")
	assert.Equal(t, "optimistic-tmp", msg.Key())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
