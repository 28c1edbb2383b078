package n8n

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Tag is a workflow tag.
type Tag struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// CreateTag creates a tag with the given name.
func (c *Client) CreateTag(ctx context.Context, name string) (*Tag, error) {
	var out Tag
	if err := c.do(ctx, http.MethodPost, "/tags", nil, Tag{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTag fetches a tag by id.
func (c *Client) GetTag(ctx context.Context, id string) (*Tag, error) {
	var out Tag
	if err := c.do(ctx, http.MethodGet, "/tags/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTags returns a page of tags.
func (c *Client) ListTags(ctx context.Context, opts ListOptions) (*List[Tag], error) {
	var out List[Tag]
	if err := c.do(ctx, http.MethodGet, "/tags", opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTag renames a tag.
func (c *Client) UpdateTag(ctx context.Context, id, name string) (*Tag, error) {
	var out Tag
	if err := c.do(ctx, http.MethodPut, "/tags/"+url.PathEscape(id), nil, Tag{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTag removes a tag by id, returning the deleted record.
func (c *Client) DeleteTag(ctx context.Context, id string) (*Tag, error) {
	var out Tag
	if err := c.do(ctx, http.MethodDelete, "/tags/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
