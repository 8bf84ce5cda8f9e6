package relay_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatflow/client/internal/api"
	"chatflow/client/internal/graphql"
	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"
	"chatflow/client/internal/relay"
	"chatflow/client/internal/storage"
	"chatflow/client/internal/stub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSink struct {
	messages chan models.Message
}

func (s chanSink) Message(m models.Message)         { s.messages <- m }
func (s chanSink) Notification(models.Notification) {}

type relayFixture struct {
	stub   *stub.Server
	client *api.Client
	room   int
	bob    int
}

// newRelayFixture signs Ada in and returns a client holding her tokens.
func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	s := stub.New(stub.WithLogger(logging.Component(logging.Discard(), "stub")))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})

	ada, err := s.AddUser("Ada", "Lovelace", "ada@example.com", "secret1", stub.RoleUser)
	require.NoError(t, err)
	bob, err := s.AddUser("Bob", "Babbage", "bob@example.com", "secret1", stub.RoleUser)
	require.NoError(t, err)
	room := s.AddChannel("general", ada, bob)

	store := storage.NewMemoryStore(models.TokenPair{})
	log := logging.Component(logging.Discard(), "test")
	tr := graphql.NewTransport(
		graphql.NewClient(ts.URL+"/graphql", store, graphql.WithLogger(log)),
		graphql.NewSubscriber("ws"+strings.TrimPrefix(ts.URL, "http")+"/graphql", store,
			graphql.WithSubscriberLogger(log)),
	)
	t.Cleanup(func() { tr.Close() })
	c := api.New(tr)

	pair, err := c.Login(context.Background(), api.Credentials{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTokens(context.Background(), pair))
	return &relayFixture{stub: s, client: c, room: room, bob: bob}
}

func TestRunResubscribesWithRefreshedToken(t *testing.T) {
	f := newRelayFixture(t)
	f.stub.ExpireAccessTokens()

	sink := chanSink{messages: make(chan models.Message, 1)}
	r := relay.New(f.client, logging.Discard().WithField("test", t.Name()), sink)
	r.SetRetryDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return f.stub.ActiveSubscriptions() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, f.stub.Post(f.room, f.bob, "still relayed"))

	select {
	case m := <-sink.messages:
		assert.Equal(t, "still relayed", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("message not relayed after token expiry")
	}
	assert.GreaterOrEqual(t, f.stub.RefreshCalls(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStopsWhenSessionExpires(t *testing.T) {
	f := newRelayFixture(t)
	f.stub.ExpireAccessTokens()
	f.stub.SetRefreshFailure(true)

	r := relay.New(f.client, logging.Discard().WithField("test", t.Name()))
	r.SetRetryDelay(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, graphql.ErrSessionExpired)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept retrying with a refused refresh token")
	}
}
