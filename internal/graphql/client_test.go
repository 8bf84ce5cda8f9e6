package graphql_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
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

const (
	loginQuery = `mutation Login($loginInput: LoginInput!) { login(loginInput: $loginInput) { access_token refresh_token } }`
	meQuery    = `query Me { me { id email role } }`
)

var meRequest = graphql.Request{Query: meQuery, OperationName: "Me"}

func newStub(t *testing.T) (*stub.Server, *httptest.Server) {
	t.Helper()
	s := stub.New(stub.WithLogger(logging.Component(logging.Discard(), "stub")))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func endpoint(ts *httptest.Server) string { return ts.URL + "/graphql" }

func wsEndpoint(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/graphql"
}

func login(t *testing.T, ts *httptest.Server, email, password string) models.TokenPair {
	t.Helper()
	c := graphql.NewClient(endpoint(ts), storage.NewMemoryStore(models.TokenPair{}))
	var data struct {
		Login models.TokenPair `json:"login"`
	}
	err := c.Do(context.Background(), graphql.Request{
		Query:         loginQuery,
		OperationName: "Login",
		Variables: map[string]any{
			"loginInput": map[string]any{"email": email, "password": password},
		},
	}, &data)
	require.NoError(t, err)
	require.NotEmpty(t, data.Login.AccessToken)
	return data.Login
}

func seedUser(t *testing.T, s *stub.Server, ts *httptest.Server) models.TokenPair {
	t.Helper()
	_, err := s.AddUser("Ada", "Lovelace", "ada@example.com", "secret1", stub.RoleUser)
	require.NoError(t, err)
	return login(t, ts, "ada@example.com", "secret1")
}

func newClient(ts *httptest.Server, store storage.TokenStore, opts ...graphql.Option) *graphql.Client {
	opts = append([]graphql.Option{graphql.WithLogger(logging.Component(logging.Discard(), "graphql"))}, opts...)
	return graphql.NewClient(endpoint(ts), store, opts...)
}

func TestClient_Do(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	c := newClient(ts, storage.NewMemoryStore(pair))

	var data struct {
		Me models.User `json:"me"`
	}
	require.NoError(t, c.Do(context.Background(), meRequest, &data))
	assert.Equal(t, "ada@example.com", data.Me.Email)
	assert.Equal(t, 0, s.RefreshCalls())
}

// TestClient_ServerErrorVerbatim surfaces the first server message as is.
func TestClient_ServerErrorVerbatim(t *testing.T) {
	s, ts := newStub(t)
	seedUser(t, s, ts)
	c := newClient(ts, storage.NewMemoryStore(models.TokenPair{}))

	err := c.Do(context.Background(), graphql.Request{
		Query:         loginQuery,
		OperationName: "Login",
		Variables:     map[string]any{"loginInput": map[string]any{"email": "ada@example.com", "password": "wrong"}},
	}, nil)

	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
	var gqlErrs graphql.Errors
	assert.True(t, errors.As(err, &gqlErrs))
}

func TestClient_ConcurrentUnauthorizedRefreshesOnce(t *testing.T) {
	for _, mode := range []stub.UnauthorizedMode{stub.HTTP401, stub.GraphQLError} {
		t.Run(map[stub.UnauthorizedMode]string{stub.HTTP401: "http 401", stub.GraphQLError: "graphql error"}[mode], func(t *testing.T) {
			s, ts := newStub(t)
			pair := seedUser(t, s, ts)
			store := storage.NewMemoryStore(pair)
			c := newClient(ts, store)

			s.SetUnauthorizedMode(mode)
			s.ExpireAccessTokens()
			s.SetRefreshDelay(200 * time.Millisecond)

			const n = 8
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					var data struct {
						Me models.User `json:"me"`
					}
					errs[i] = c.Do(context.Background(), meRequest, &data)
					if errs[i] == nil && data.Me.Email != "ada@example.com" {
						errs[i] = errors.New("unexpected identity " + data.Me.Email)
					}
				}(i)
			}
			wg.Wait()

			for i, err := range errs {
				assert.NoError(t, err, "request %d", i)
			}
			assert.Equal(t, 1, s.RefreshCalls(), "exactly one refresh for all waiters")

			fresh, err := store.Tokens(context.Background())
			require.NoError(t, err)
			assert.NotEqual(t, pair.AccessToken, fresh.AccessToken)
			assert.NotEqual(t, pair.RefreshToken, fresh.RefreshToken, "refresh token rotates")
		})
	}
}

// TestClient_RefreshedTokenIsUsed checks later calls send the rotated token.
func TestClient_RefreshedTokenIsUsed(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	store := storage.NewMemoryStore(pair)
	c := newClient(ts, store)

	s.ExpireAccessTokens()
	require.NoError(t, c.Do(context.Background(), meRequest, nil))
	require.Equal(t, 1, s.RefreshCalls())

	// a second round with the now-current token must not refresh again
	require.NoError(t, c.Do(context.Background(), meRequest, nil))
	assert.Equal(t, 1, s.RefreshCalls())
}

func TestClient_RefreshFailureExpiresSession(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	store := storage.NewMemoryStore(pair)

	var hookCalls atomic.Int32
	c := newClient(ts, store, graphql.WithSessionExpired(func(context.Context, error) {
		hookCalls.Add(1)
	}))

	s.ExpireAccessTokens()
	s.SetRefreshFailure(true)
	s.SetRefreshDelay(100 * time.Millisecond)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), meRequest, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, graphql.ErrSessionExpired)
	}
	assert.Equal(t, int32(1), hookCalls.Load(), "expiry hook fires once")
	assert.Equal(t, 1, s.RefreshCalls())

	left, err := store.Tokens(context.Background())
	require.NoError(t, err)
	assert.True(t, left.IsZero(), "both tokens are cleared")
}

func TestClient_NoRefreshToken(t *testing.T) {
	s, ts := newStub(t)
	pair := seedUser(t, s, ts)
	store := storage.NewMemoryStore(models.TokenPair{AccessToken: pair.AccessToken})
	c := newClient(ts, store)

	s.ExpireAccessTokens()
	err := c.Do(context.Background(), meRequest, nil)

	assert.ErrorIs(t, err, graphql.ErrSessionExpired)
	assert.ErrorIs(t, err, graphql.ErrNoRefreshToken)
	assert.Equal(t, 0, s.RefreshCalls())
}

// TestClient_ReplaysOnce gives up when the replay is rejected too.
func TestClient_ReplaysOnce(t *testing.T) {
	var meCalls, refreshCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphql.Request
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.OperationName == "RefreshToken" {
			refreshCalls.Add(1)
			assert.Empty(t, r.Header.Get("Authorization"), "refresh carries no bearer token")
			w.Write([]byte(`{"data":{"refreshToken":{"access_token":"new-access","refresh_token":"new-refresh"}}}`))
			return
		}
		meCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"Unauthorized"}]}`))
	}))
	defer ts.Close()

	store := storage.NewMemoryStore(models.TokenPair{AccessToken: "old-access", RefreshToken: "old-refresh"})
	c := newClient(ts, store)

	err := c.Do(context.Background(), graphql.Request{Query: meQuery, OperationName: "Me"}, nil)

	assert.ErrorIs(t, err, graphql.ErrUnauthorized)
	assert.Equal(t, int32(2), meCalls.Load(), "original plus exactly one replay")
	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestClient_OmitsEmptyBearer(t *testing.T) {
	var header atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer ts.Close()

	c := newClient(ts, storage.NewMemoryStore(models.TokenPair{}))
	require.NoError(t, c.Do(context.Background(), graphql.Request{Query: "{ ok }"}, nil))
	assert.Equal(t, "", header.Load())
}

func TestClient_NonJSONErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := newClient(ts, storage.NewMemoryStore(models.TokenPair{}))
	err := c.Do(context.Background(), graphql.Request{Query: "{ ok }"}, nil)

	var httpErr *graphql.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}
