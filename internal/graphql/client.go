package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatflow/client/internal/models"
	"chatflow/client/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const refreshTokenMutation = `mutation RefreshToken($refreshTokenInput: RefreshTokenInput!) {
  refreshToken(refreshTokenInput: $refreshTokenInput) {
    access_token
    refresh_token
  }
}`

const (
	refreshKey            = "refresh"
	defaultRefreshTimeout = 15 * time.Second
	maxErrorBody          = 512
)

// Client sends queries and mutations over HTTP. Every request carries the
// access token read from the store at send time. When the server answers
// unauthorized, the client refreshes the token pair once for all concurrent
// callers and replays each original request once.
type Client struct {
	endpoint       string
	http           *http.Client
	tokens         storage.TokenStore
	log            *logrus.Entry
	onExpired      func(context.Context, error)
	refreshTimeout time.Duration

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger entry.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

// WithSessionExpired registers the hook run once per failed refresh, after
// the tokens were cleared. The session provider uses it to log out and send
// the user back to the entry screen.
func WithSessionExpired(fn func(context.Context, error)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithRefreshTimeout bounds the refresh call, which runs detached from the
// triggering caller's context so that one cancelled caller cannot fail
// everybody waiting on the same refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

// NewClient returns a client for endpoint (the /graphql URL).
func NewClient(endpoint string, tokens storage.TokenStore, opts ...Option) *Client {
	c := &Client{
		endpoint:       endpoint,
		http:           http.DefaultClient,
		tokens:         tokens,
		log:            logrus.NewEntry(logrus.StandardLogger()),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req and decodes `data` into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	token, err := storage.AccessToken(ctx, c.tokens)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}

	resp, unauthorized, err := c.send(ctx, req, token)
	if err != nil {
		return err
	}
	if !unauthorized {
		return resp.Decode(out)
	}

	c.log.WithField("operation", req.OperationName).Debug("unauthorized, waiting for token refresh")
	fresh, err := c.refresh(ctx, token)
	if err != nil {
		return err
	}

	resp, unauthorized, err = c.send(ctx, req, fresh)
	if err != nil {
		return err
	}
	if unauthorized {
		if len(resp.Errors) > 0 {
			return fmt.Errorf("%w: %w", ErrUnauthorized, resp.Errors)
		}
		return ErrUnauthorized
	}
	return resp.Decode(out)
}

// send performs one HTTP round trip. unauthorized is true for a 401 or an
// error payload mentioning "unauthorized".
func (c *Client) send(ctx context.Context, req Request, token string) (*Response, bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, false, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/graphql-response+json, application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", req.OperationName, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%s: read response: %w", req.OperationName, err)
	}

	var resp Response
	decodeErr := json.Unmarshal(raw, &resp)

	if httpResp.StatusCode == http.StatusUnauthorized {
		return &resp, true, nil
	}
	if decodeErr != nil {
		if httpResp.StatusCode/100 != 2 {
			return nil, false, &HTTPError{StatusCode: httpResp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
		}
		return nil, false, fmt.Errorf("%s: decode response: %w", req.OperationName, decodeErr)
	}
	if httpResp.StatusCode/100 != 2 && len(resp.Errors) == 0 {
		return nil, false, &HTTPError{StatusCode: httpResp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}
	return &resp, resp.Errors.Unauthorized(), nil
}

// Refresh returns an access token newer than stale, refreshing the pair when
// the stored token is still stale. It fails with ErrSessionExpired when the
// refresh is refused.
func (c *Client) Refresh(ctx context.Context, stale string) (string, error) {
	return c.refresh(ctx, stale)
}

// refresh returns an access token newer than stale. Concurrent callers share
// one in-flight refresh. A caller whose request failed with a token that has
// since been replaced reuses the stored token without another refresh.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		pair, err := c.tokens.Tokens(rctx)
		if err != nil {
			return "", fmt.Errorf("read tokens: %w", err)
		}
		if pair.AccessToken != "" && pair.AccessToken != stale {
			return pair.AccessToken, nil
		}
		if pair.IsZero() && stale != "" {
			// an earlier refresh already failed and cleared the session
			return "", ErrSessionExpired
		}

		fresh, err := c.requestRefresh(rctx, pair.RefreshToken)
		if err != nil {
			c.expire(rctx, err)
			return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = pair.RefreshToken
		}
		if err := c.tokens.SaveTokens(rctx, fresh); err != nil {
			return "", fmt.Errorf("store refreshed tokens: %w", err)
		}
		c.log.Info("access token refreshed")
		return fresh.AccessToken, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// requestRefresh posts the refresh mutation without an Authorization header.
func (c *Client) requestRefresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, ErrNoRefreshToken
	}

	req := Request{
		Query:         refreshTokenMutation,
		OperationName: "RefreshToken",
		Variables: map[string]any{
			"refreshTokenInput": map[string]any{"refreshToken": refreshToken},
		},
	}
	resp, _, err := c.send(ctx, req, "")
	if err != nil {
		return models.TokenPair{}, err
	}

	var data struct {
		RefreshToken *models.TokenPair `json:"refreshToken"`
	}
	if err := resp.Decode(&data); err != nil {
		return models.TokenPair{}, err
	}
	if data.RefreshToken == nil || data.RefreshToken.AccessToken == "" {
		return models.TokenPair{}, errors.New("refresh returned no access token")
	}
	return *data.RefreshToken, nil
}

func (c *Client) expire(ctx context.Context, cause error) {
	c.log.WithError(cause).Warn("token refresh failed, clearing session")
	if err := c.tokens.ClearTokens(ctx); err != nil {
		c.log.WithError(err).Error("clear tokens")
	}
	if c.onExpired != nil {
		c.onExpired(ctx, cause)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
