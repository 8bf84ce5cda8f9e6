// Package api holds the typed GraphQL operations the client consumes. Each
// method builds one request, sends it through the transport and decodes the
// result field.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"chatflow/client/internal/graphql"
	"chatflow/client/internal/models"
)

// Transport is satisfied by *graphql.Transport.
type Transport interface {
	Do(ctx context.Context, req graphql.Request, out any) error
	Subscribe(ctx context.Context, req graphql.Request) (*graphql.Subscription, error)
}

// Client exposes every operation by name.
type Client struct {
	t Transport
}

// New returns a client over t.
func New(t Transport) *Client {
	return &Client{t: t}
}

// do sends an operation and decodes data[field] into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, field string, out any) error {
	var data map[string]json.RawMessage
	req := graphql.Request{Query: query, OperationName: op, Variables: vars}
	if err := c.t.Do(ctx, req, &data); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, ok := data[field]
	if !ok {
		return fmt.Errorf("%s: response has no %q field", op, field)
	}
	if string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", op, field, err)
	}
	return nil
}

// number converts an id for a `Float!`/`Int!` argument.
func number(op string, id models.ID) (float64, error) {
	n, err := id.Number()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func numbers(op string, ids []models.ID) ([]float64, error) {
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		n, err := number(op, id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
