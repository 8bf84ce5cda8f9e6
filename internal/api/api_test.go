package api_test

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"chatflow/client/internal/api"
	"chatflow/client/internal/graphql"
	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"
	"chatflow/client/internal/storage"
	"chatflow/client/internal/stub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	stub *stub.Server
	ts   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := stub.New(stub.WithLogger(logging.Component(logging.Discard(), "stub")))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return &fixture{stub: s, ts: ts}
}

// client returns an api client with its own token store.
func (f *fixture) client() (*api.Client, storage.TokenStore, *graphql.Transport) {
	store := storage.NewMemoryStore(models.TokenPair{})
	log := logging.Component(logging.Discard(), "test")
	httpClient := graphql.NewClient(f.ts.URL+"/graphql", store, graphql.WithLogger(log))
	ws := graphql.NewSubscriber("ws"+strings.TrimPrefix(f.ts.URL, "http")+"/graphql", store,
		graphql.WithSubscriberLogger(log))
	tr := graphql.NewTransport(httpClient, ws)
	return api.New(tr), store, tr
}

func (f *fixture) loggedIn(t *testing.T, first, email, role string) (*api.Client, models.ID) {
	t.Helper()
	id, err := f.stub.AddUser(first, "Tester", email, "secret1", role)
	require.NoError(t, err)
	c, store, _ := f.client()
	pair, err := c.Login(context.Background(), api.Credentials{Email: email, Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTokens(context.Background(), pair))
	return c, models.ID(strconv.Itoa(id))
}

func TestClient_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	c, store, _ := f.client()
	ctx := context.Background()

	res, err := c.Register(ctx, api.NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message)

	_, err = c.Register(ctx, api.NewUser{FirstName: "Ada", LastName: "Again", Email: "ada@example.com", Password: "secret1"})
	assert.EqualError(t, err, "User with this email already exists")

	pair, err := c.Login(ctx, api.Credentials{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTokens(ctx, pair))

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.FirstName)
	assert.False(t, me.IsAdmin())
}

func TestClient_BootstrapAdminOnce(t *testing.T) {
	f := newFixture(t)
	c, _, _ := f.client()
	ctx := context.Background()
	in := api.NewUser{FirstName: "Root", LastName: "Admin", Email: "root@example.com", Password: "secret1"}

	pair, err := c.BootstrapAdmin(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	in.Email = "second@example.com"
	_, err = c.BootstrapAdmin(ctx, in)
	assert.EqualError(t, err, "An admin already exists")
}

func TestClient_RoomsAndMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada, adaID := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)
	bob, bobID := f.loggedIn(t, "Bob", "bob@example.com", stub.RoleUser)

	channel, err := ada.CreateRoom(ctx, api.NewRoom{Name: "general", ParticipantIDs: []models.ID{adaID}})
	require.NoError(t, err)
	assert.Equal(t, models.RoomChannel, channel.Kind())
	assert.Equal(t, adaID, channel.AdminID)

	discover, err := bob.DiscoverChannels(ctx)
	require.NoError(t, err)
	require.Len(t, discover, 1)

	jr, err := bob.RequestJoin(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinApproved, jr.Status, "public channels admit immediately")

	sent, err := bob.SendMessage(ctx, channel.ID, "hi all")
	require.NoError(t, err)
	assert.Equal(t, bobID, sent.SenderID)
	assert.Equal(t, channel.ID, sent.RoomID)

	msgs, err := ada.RoomMessages(ctx, channel.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi all", msgs[0].Content)
	assert.Equal(t, bobID, msgs[0].Sender.ID)
	assert.WithinDuration(t, time.Now(), msgs[0].CreatedAt.Time, time.Minute)

	dm, err := ada.CreateDirectMessage(ctx, bobID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomDirect, dm.Kind())
	assert.Equal(t, "Bob Tester", dm.Title(adaID))

	again, err := ada.CreateDirectMessage(ctx, bobID)
	require.NoError(t, err)
	assert.Equal(t, dm.ID, again.ID, "an existing DM is reused")

	dms, err := bob.MyDirectMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, dms, 1)

	_, err = ada.SendMessage(ctx, "not-a-number", "x")
	assert.Error(t, err)
}

func TestClient_PrivateJoinFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada, _ := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)
	bob, _ := f.loggedIn(t, "Bob", "bob@example.com", stub.RoleUser)

	channel, err := ada.CreateRoom(ctx, api.NewRoom{Name: "secret", IsPrivate: true})
	require.NoError(t, err)

	jr, err := bob.RequestJoin(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinPending, jr.Status)

	notes, err := ada.MyNotifications(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotificationJoin, notes[0].Type)

	_, err = bob.ApproveJoin(ctx, jr.ID)
	assert.EqualError(t, err, "Forbidden resource")

	approved, err := ada.ApproveJoin(ctx, jr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinApproved, approved.Status)

	channels, err := bob.MyChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestClient_Notifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.loggedIn(t, "Root", "root@example.com", stub.RoleAdmin)
	user, userID := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)

	_, err := user.CreateNotification(ctx, api.NewNotification{Title: "t", Message: "m", Type: models.NotificationInfo, UserID: userID})
	assert.EqualError(t, err, "Forbidden resource")

	created, err := admin.CreateNotification(ctx, api.NewNotification{
		Title:   "Maintenance",
		Message: "Tonight at 22:00",
		Type:    models.NotificationWarning,
		UserID:  userID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationWarning, created.Type)

	n, err := user.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	read, err := user.MarkNotificationRead(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	n, err = user.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ok, err := user.DeleteNotification(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := user.MyNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClient_DeleteRoomsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.loggedIn(t, "Root", "root@example.com", stub.RoleAdmin)
	user, _ := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)

	room, err := user.CreateRoom(ctx, api.NewRoom{Name: "doomed"})
	require.NoError(t, err)

	_, err = user.DeleteRooms(ctx, []models.ID{room.ID})
	assert.EqualError(t, err, "Forbidden resource")

	ok, err := admin.DeleteRooms(ctx, []models.ID{room.ID})
	require.NoError(t, err)
	assert.True(t, ok)

	rooms, err := user.MyRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestClient_Workspaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada, _ := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)
	bob, _ := f.loggedIn(t, "Bob", "bob@example.com", stub.RoleUser)

	ws, err := ada.CreateWorkspace(ctx, api.NewWorkspace{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	bySlug, err := ada.WorkspaceBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, bySlug.ID)

	byID, err := ada.Workspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", byID.Name)

	res, err := ada.InviteUser(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)

	invites, err := ada.WorkspaceInvitations(ctx)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "bob@example.com", invites[0].Email)

	res, err = bob.AcceptInvitation(ctx, f.stub.InvitationToken("bob@example.com"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	mine, err := bob.MyWorkspace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", mine.Slug)
}

func TestClient_ProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada, _ := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)

	updated, err := ada.UpdateProfile(ctx, api.ProfileUpdate{FirstName: "Augusta"})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)

	_, err = ada.ChangePassword(ctx, "wrong", "newsecret")
	assert.EqualError(t, err, "Current password is incorrect")

	ok, err := ada.ChangePassword(ctx, "secret1", "newsecret")
	require.NoError(t, err)
	assert.True(t, ok)

	anon, _, _ := f.client()
	_, err = anon.Login(ctx, api.Credentials{Email: "ada@example.com", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestClient_ForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.stub.AddUser("Ada", "L", "ada@example.com", "secret1", stub.RoleUser)
	require.NoError(t, err)
	c, _, _ := f.client()

	_, err = c.ForgotPassword(ctx, "ada@example.com")
	require.NoError(t, err)
	token := f.stub.ResetToken("ada@example.com")
	require.NotEmpty(t, token)

	_, err = c.ResetPassword(ctx, token, "brandnew")
	require.NoError(t, err)
	_, err = c.Login(ctx, api.Credentials{Email: "ada@example.com", Password: "brandnew"})
	assert.NoError(t, err)
}

func TestClient_Subscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.loggedIn(t, "Root", "root@example.com", stub.RoleAdmin)
	ada, adaID := f.loggedIn(t, "Ada", "ada@example.com", stub.RoleUser)
	log := logging.Component(logging.Discard(), "test")

	notes, err := ada.NotificationAdded(ctx, log)
	require.NoError(t, err)
	defer notes.Close()
	require.Eventually(t, func() bool { return f.stub.ActiveSubscriptions() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = admin.CreateNotification(ctx, api.NewNotification{Title: "Hello", Message: "World", Type: models.NotificationSystem, UserID: adaID})
	require.NoError(t, err)

	select {
	case n := <-notes.Items:
		assert.Equal(t, "Hello", n.Title)
		assert.Equal(t, models.NotificationSystem, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification pushed")
	}
}
