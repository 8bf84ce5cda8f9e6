package session_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"
	"chatflow/client/internal/session"
	"chatflow/client/internal/storage"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newProvider(store storage.TokenStore) *session.Provider {
	return session.NewProvider(store, logging.Component(logging.Discard(), "session"))
}

// TestDecodeIdentity covers role normalisation and the USER fallback.
func TestDecodeIdentity(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		wantID   models.ID
		wantRole models.Role
		wantName string
	}{
		{
			name:     "lower-case role is upper-cased",
			claims:   jwt.MapClaims{"sub": "12", "email": "ada@example.com", "role": "admin"},
			wantID:   "12",
			wantRole: models.RoleAdmin,
			wantName: "ada",
		},
		{
			name:     "missing role falls back to USER",
			claims:   jwt.MapClaims{"sub": float64(7), "email": "bob@example.com"},
			wantID:   "7",
			wantRole: models.RoleUser,
			wantName: "bob",
		},
		{
			name:     "names in the payload win over the email",
			claims:   jwt.MapClaims{"sub": "3", "email": "c@example.com", "role": "user", "firstName": "Carol", "lastName": "Shaw"},
			wantID:   "3",
			wantRole: models.RoleUser,
			wantName: "Carol Shaw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := session.DecodeIdentity(signToken(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, s.ID)
			assert.Equal(t, tt.wantRole, s.Role)
			assert.Equal(t, tt.wantName, s.DisplayName)
		})
	}
}

func TestDecodeIdentityMalformed(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.bm90IGpzb24.sig"} {
		_, err := session.DecodeIdentity(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestDecodeIdentityIgnoresHeaderAlg(t *testing.T) {
	for _, header := range []string{`{"alg":"none","typ":"JWT"}`, `{"alg":"EdDSA448","typ":"JWT"}`} {
		token := base64.RawURLEncoding.EncodeToString([]byte(header)) + "." +
			base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"5","email":"eve@example.com","role":"admin"}`)) + ".c2ln"

		s, err := session.DecodeIdentity(token)
		require.NoError(t, err, header)
		assert.Equal(t, models.ID("5"), s.ID)
		assert.Equal(t, models.RoleAdmin, s.Role)
		assert.Equal(t, "eve", s.DisplayName)
	}
}

// TestLoginPersistsAndDecodes checks the eager decode on login.
func TestLoginPersistsAndDecodes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(models.TokenPair{})
	p := newProvider(store)

	var events []session.EventKind
	p.OnChange(func(ev session.Event) { events = append(events, ev.Kind) })

	access := signToken(t, jwt.MapClaims{"sub": "1", "email": "admin@example.com", "role": "admin"})
	require.NoError(t, p.Login(ctx, models.TokenPair{AccessToken: access, RefreshToken: "r1"}))

	assert.True(t, p.IsLoggedIn())
	u, ok := p.User(ctx)
	require.True(t, ok)
	assert.True(t, u.IsAdmin())

	pair, _ := store.Tokens(ctx)
	assert.Equal(t, access, pair.AccessToken)
	assert.Equal(t, "r1", pair.RefreshToken)
	assert.Equal(t, []session.EventKind{session.EventLoggedIn}, events)
}

// TestLoginWithUndecodableToken stays logged in without an identity.
func TestLoginWithUndecodableToken(t *testing.T) {
	ctx := context.Background()
	p := newProvider(storage.NewMemoryStore(models.TokenPair{}))

	require.NoError(t, p.Login(ctx, models.TokenPair{AccessToken: "opaque", RefreshToken: "r"}))

	assert.True(t, p.IsLoggedIn())
	_, ok := p.User(ctx)
	assert.False(t, ok)
}

// TestLogoutClearsState verifies nothing survives a logout.
func TestLogoutClearsState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(models.TokenPair{})
	p := newProvider(store)

	var got []session.EventKind
	p.OnChange(func(ev session.Event) { got = append(got, ev.Kind) })

	require.NoError(t, p.Login(ctx, models.TokenPair{AccessToken: signToken(t, jwt.MapClaims{"sub": "1"}), RefreshToken: "r"}))
	require.NoError(t, p.Logout(ctx))

	assert.False(t, p.IsLoggedIn())
	_, ok := p.User(ctx)
	assert.False(t, ok)
	pair, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.True(t, pair.IsZero(), "no token may remain in storage")
	assert.Equal(t, []session.EventKind{session.EventLoggedIn, session.EventLoggedOut}, got)
}

// TestRestoreDecodesLazily picks up a persisted token and decodes on first access.
func TestRestoreDecodesLazily(t *testing.T) {
	ctx := context.Background()
	access := signToken(t, jwt.MapClaims{
		"sub":   "9",
		"email": "dora@example.com",
		"exp":   time.Now().Add(-time.Hour).Unix(), // expired tokens still decode for display
	})
	p := newProvider(storage.NewMemoryStore(models.TokenPair{AccessToken: access, RefreshToken: "r"}))

	assert.False(t, p.IsLoggedIn(), "flag is false until Restore")
	require.NoError(t, p.Restore(ctx))
	assert.True(t, p.IsLoggedIn())

	u, ok := p.User(ctx)
	require.True(t, ok)
	assert.Equal(t, models.ID("9"), u.ID)
	assert.Equal(t, models.RoleUser, u.Role)
}

func TestRestoreEmptyStore(t *testing.T) {
	p := newProvider(storage.NewMemoryStore(models.TokenPair{}))
	require.NoError(t, p.Restore(context.Background()))
	assert.False(t, p.IsLoggedIn())
}

// TestExpireEmitsExpired carries the cause to listeners.
func TestExpireEmitsExpired(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(models.TokenPair{AccessToken: "a", RefreshToken: "r"})
	p := newProvider(store)
	require.NoError(t, p.Restore(ctx))

	cause := errors.New("refresh rejected")
	var got session.Event
	p.OnChange(func(ev session.Event) { got = ev })

	p.Expire(ctx, cause)

	assert.Equal(t, session.EventExpired, got.Kind)
	assert.ErrorIs(t, got.Err, cause)
	assert.False(t, p.IsLoggedIn())
	pair, _ := store.Tokens(ctx)
	assert.True(t, pair.IsZero())
}
