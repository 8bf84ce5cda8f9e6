package graphql

import (
	"context"
	"errors"
	"fmt"
)

// Transport routes operations by kind: queries and mutations go over HTTP,
// subscriptions over the websocket. Screens and services hold a Transport
// rather than either half.
type Transport struct {
	HTTP *Client
	WS   *Subscriber
}

// NewTransport pairs an HTTP client with a subscriber. ws may be nil for
// tools that never subscribe.
func NewTransport(http *Client, ws *Subscriber) *Transport {
	return &Transport{HTTP: http, WS: ws}
}

// Do runs a query or mutation and decodes the data into out.
func (t *Transport) Do(ctx context.Context, req Request, out any) error {
	if OperationKind(req.Query) == KindSubscription {
		return fmt.Errorf("%s: %w", req.OperationName, ErrWrongTransport)
	}
	return t.HTTP.Do(ctx, req, out)
}

// Subscribe starts a subscription, connecting the socket first if needed.
// A connection rejected for its token is retried once after a refresh; a
// failed refresh is returned as ErrSessionExpired.
func (t *Transport) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	if OperationKind(req.Query) != KindSubscription {
		return nil, fmt.Errorf("%s: %w", req.OperationName, ErrWrongTransport)
	}
	if t.WS == nil {
		return nil, ErrNotConnected
	}
	if err := t.connect(ctx); err != nil {
		return nil, err
	}
	return t.WS.Subscribe(ctx, req)
}

func (t *Transport) connect(ctx context.Context) error {
	err := t.WS.Connect(ctx)
	var rejected *RejectedError
	if err == nil || t.HTTP == nil || !errors.As(err, &rejected) {
		return err
	}
	if _, err := t.HTTP.Refresh(ctx, rejected.Token); err != nil {
		return err
	}
	return t.WS.Connect(ctx)
}

// Close closes the socket, if any.
func (t *Transport) Close() error {
	if t.WS == nil {
		return nil
	}
	return t.WS.Close()
}
