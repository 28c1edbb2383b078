package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Execution is a workflow execution record.
type Execution struct {
	ID         int64           `json:"id"`
	Finished   bool            `json:"finished"`
	Mode       string          `json:"mode,omitempty"`
	Status     string          `json:"status,omitempty"`
	WorkflowID string          `json:"workflowId,omitempty"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	StoppedAt  *time.Time      `json:"stoppedAt,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ExecutionListOptions filter execution listings.
type ExecutionListOptions struct {
	ListOptions
	WorkflowID string
	Status     string // error, success, or waiting
}

// GetExecution fetches one execution. When includeData is set the full run
// data is returned, which can be very large.
func (c *Client) GetExecution(ctx context.Context, id int64, includeData bool) (*Execution, error) {
	q := url.Values{}
	if includeData {
		q.Set("includeData", "true")
	}
	var out Execution
	if err := c.do(ctx, http.MethodGet, "/executions/"+strconv.FormatInt(id, 10), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListExecutions returns a page of executions matching the filters.
func (c *Client) ListExecutions(ctx context.Context, opts ExecutionListOptions) (*List[Execution], error) {
	q := opts.query()
	if opts.WorkflowID != "" {
		q.Set("workflowId", opts.WorkflowID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	var out List[Execution]
	if err := c.do(ctx, http.MethodGet, "/executions", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteExecution removes an execution record, returning the deleted record.
func (c *Client) DeleteExecution(ctx context.Context, id int64) (*Execution, error) {
	var out Execution
	if err := c.do(ctx, http.MethodDelete, "/executions/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
