package graphql_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chatflow/client/internal/graphql"
	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"
	"chatflow/client/internal/storage"
	"chatflow/client/internal/stub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageAdded = `subscription MessageAdded { messageAdded { id content senderId roomId createdAt } }`

func newSubscriber(url string, store storage.TokenStore) *graphql.Subscriber {
	return graphql.NewSubscriber(url, store,
		graphql.WithSubscriberLogger(logging.Component(logging.Discard(), "ws")),
		graphql.WithAckTimeout(2*time.Second))
}

func TestOperationKind(t *testing.T) {
	tests := []struct {
		query string
		want  graphql.Kind
	}{
		{"{ me { id } }", graphql.KindQuery},
		{"query Me { me { id } }", graphql.KindQuery},
		{"mutation Login($i: LoginInput!) { login(loginInput: $i) { access_token } }", graphql.KindMutation},
		{"subscription { messageAdded { id } }", graphql.KindSubscription},
		{"# subscription in a comment\nmutation X { x }", graphql.KindMutation},
		{"fragment F on User { id }\nsubscription S { messageAdded { ...F } }", graphql.KindSubscription},
		{`"""doc mentioning mutation"""` + "\nquery Q { q }", graphql.KindQuery},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, graphql.OperationKind(tt.query), tt.query)
	}
}

func TestTransport_RoutesByKind(t *testing.T) {
	tr := graphql.NewTransport(graphql.NewClient("http://127.0.0.1:1/graphql", storage.NewMemoryStore(models.TokenPair{})), nil)

	err := tr.Do(context.Background(), graphql.Request{Query: messageAdded, OperationName: "MessageAdded"}, nil)
	assert.ErrorIs(t, err, graphql.ErrWrongTransport)

	_, err = tr.Subscribe(context.Background(), meRequest)
	assert.ErrorIs(t, err, graphql.ErrWrongTransport)

	_, err = tr.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	assert.ErrorIs(t, err, graphql.ErrNotConnected)
}

func TestSubscriber_SubscribeBeforeConnect(t *testing.T) {
	sub := graphql.NewSubscriber("ws://127.0.0.1:1/graphql", storage.NewMemoryStore(models.TokenPair{}))
	_, err := sub.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	assert.ErrorIs(t, err, graphql.ErrNotConnected)
}

// TestSubscriber_DeliversPushedMessages checks the token travels in
// connection_init and pushed events reach the subscription.
func TestSubscriber_DeliversPushedMessages(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	uid, err := s.AddUser("Bob", "Builder", "bob@example.com", "secret2", stub.RoleUser)
	require.NoError(t, err)
	room := s.AddChannel("general", uid, 1)

	sub := newSubscriber(wsEndpoint(ts), storage.NewMemoryStore(pair))
	ctx := context.Background()
	require.NoError(t, sub.Connect(ctx))
	defer sub.Close()
	assert.Equal(t, []string{pair.AccessToken}, s.ConnectionTokens())

	stream, err := sub.Subscribe(ctx, graphql.Request{Query: messageAdded, OperationName: "MessageAdded"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.ActiveSubscriptions() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Post(room, uid, "hello from bob"))

	select {
	case ev := <-stream.Events:
		var data struct {
			MessageAdded models.Message `json:"messageAdded"`
		}
		require.NoError(t, ev.Decode(&data))
		assert.Equal(t, "hello from bob", data.MessageAdded.Content)
		assert.Equal(t, models.ID("2"), data.MessageAdded.SenderID)
		assert.False(t, data.MessageAdded.CreatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no messageAdded event")
	}

	stream.Unsubscribe()
	_, open := <-stream.Events
	assert.False(t, open, "events channel closes on unsubscribe")
	assert.NoError(t, stream.Err())
	require.Eventually(t, func() bool { return s.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// TestSubscriber_TokenReadOnceAtConnect keeps the socket on the connect-time
// token after the stored pair changes.
func TestSubscriber_TokenReadOnceAtConnect(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	store := storage.NewMemoryStore(pair)

	sub := newSubscriber(wsEndpoint(ts), store)
	require.NoError(t, sub.Connect(context.Background()))
	defer sub.Close()

	require.NoError(t, store.SaveTokens(context.Background(), models.TokenPair{AccessToken: "rotated", RefreshToken: "r"}))
	_, err := sub.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	require.NoError(t, err)

	assert.Equal(t, []string{pair.AccessToken}, s.ConnectionTokens())
	assert.True(t, sub.Connected())
}

func TestSubscriber_RejectedToken(t *testing.T) {
	_, ts := newStub(t)
	sub := newSubscriber(wsEndpoint(ts), storage.NewMemoryStore(models.TokenPair{AccessToken: "garbage"}))

	err := sub.Connect(context.Background())
	var rejected *graphql.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "garbage", rejected.Token)
	assert.ErrorIs(t, err, graphql.ErrUnauthorized)
	assert.False(t, sub.Connected())
}

func TestSubscriber_ConcurrentConnectDialsOnce(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	sub := newSubscriber(wsEndpoint(ts), storage.NewMemoryStore(pair))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sub.Connect(context.Background())
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, s.ConnectionTokens(), 1)

	closed := make(chan error, 1)
	go func() { closed <- sub.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a leaked connection")
	}
}

func TestTransport_SubscribeRefreshesRejectedToken(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	store := storage.NewMemoryStore(pair)
	tr := graphql.NewTransport(newClient(ts, store), newSubscriber(wsEndpoint(ts), store))
	defer tr.Close()

	s.ExpireAccessTokens()

	stream, err := tr.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	require.NoError(t, err)
	defer stream.Unsubscribe()

	assert.Equal(t, 1, s.RefreshCalls())
	tokens := s.ConnectionTokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, pair.AccessToken, tokens[0])
	assert.NotEqual(t, pair.AccessToken, tokens[1])
	require.Eventually(t, func() bool { return s.ActiveSubscriptions() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_SubscribeExpiresSessionWhenRefreshFails(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	store := storage.NewMemoryStore(pair)
	expired := false
	client := newClient(ts, store, graphql.WithSessionExpired(func(context.Context, error) { expired = true }))
	tr := graphql.NewTransport(client, newSubscriber(wsEndpoint(ts), store))
	defer tr.Close()

	s.ExpireAccessTokens()
	s.SetRefreshFailure(true)

	_, err := tr.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	assert.ErrorIs(t, err, graphql.ErrSessionExpired)
	assert.True(t, expired)
	assert.Len(t, s.ConnectionTokens(), 1)
}

// TestSubscriber_ServerCloseEndsSubscriptions has no automatic reconnect.
func TestSubscriber_ServerCloseEndsSubscriptions(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)

	sub := newSubscriber(wsEndpoint(ts), storage.NewMemoryStore(pair))
	require.NoError(t, sub.Connect(context.Background()))
	stream, err := sub.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	require.NoError(t, err)

	s.Close()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("socket did not close")
	}
	_, open := <-stream.Events
	assert.False(t, open)
	assert.False(t, sub.Connected())

	_, err = sub.Subscribe(context.Background(), graphql.Request{Query: messageAdded})
	assert.ErrorIs(t, err, graphql.ErrNotConnected)
}

func TestEvent_DecodeErrors(t *testing.T) {
	ev := graphql.Event{Errors: graphql.Errors{{Message: "boom"}}}
	var out json.RawMessage
	err := ev.Decode(&out)
	assert.EqualError(t, err, "boom")
}
