package n8n

import (
	"context"
	"net/http"
	"net/url"
)

// Variable is an environment variable exposed to workflow expressions.
type Variable struct {
	ID    string `json:"id,omitempty"`
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// CreateVariable creates a key/value variable.
func (c *Client) CreateVariable(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPost, "/variables", nil, Variable{Key: key, Value: value}, nil)
}

// ListVariables returns a page of variables.
func (c *Client) ListVariables(ctx context.Context, opts ListOptions) (*List[Variable], error) {
	var out List[Variable]
	if err := c.do(ctx, http.MethodGet, "/variables", opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateVariable replaces a variable's key and value.
func (c *Client) UpdateVariable(ctx context.Context, id, key, value string) error {
	return c.do(ctx, http.MethodPut, "/variables/"+url.PathEscape(id), nil, Variable{Key: key, Value: value}, nil)
}

// DeleteVariable removes a variable by id.
func (c *Client) DeleteVariable(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/variables/"+url.PathEscape(id), nil, nil, nil)
}
