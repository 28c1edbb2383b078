package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Workflow is a workflow definition. Node and connection graphs are kept
// raw; this server routes them, it does not interpret them.
type Workflow struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Active      bool            `json:"active"`
	Nodes       json.RawMessage `json:"nodes,omitempty"`
	Connections json.RawMessage `json:"connections,omitempty"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	Tags        []Tag           `json:"tags,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// WorkflowListOptions filter workflow listings.
type WorkflowListOptions struct {
	ListOptions
	Active *bool
	Tags   string // comma-separated tag names
}

// GetWorkflow fetches a workflow by id.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var out Workflow
	if err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkflows returns a page of workflows matching the filters.
func (c *Client) ListWorkflows(ctx context.Context, opts WorkflowListOptions) (*List[Workflow], error) {
	q := opts.query()
	if opts.Active != nil {
		if *opts.Active {
			q.Set("active", "true")
		} else {
			q.Set("active", "false")
		}
	}
	if opts.Tags != "" {
		q.Set("tags", opts.Tags)
	}
	var out List[Workflow]
	if err := c.do(ctx, http.MethodGet, "/workflows", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivateWorkflow turns a workflow on.
func (c *Client) ActivateWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var out Workflow
	if err := c.do(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/activate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeactivateWorkflow turns a workflow off.
func (c *Client) DeactivateWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var out Workflow
	if err := c.do(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/deactivate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
