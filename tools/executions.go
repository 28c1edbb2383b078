package tools

import (
	"context"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type getExecutionArgs struct {
	ID          int64 `json:"id" jsonschema:"description=Execution id"`
	IncludeData bool  `json:"includeData,omitempty" jsonschema:"description=Include full run data (can be very large)"`
}

type listExecutionsArgs struct {
	WorkflowID string `json:"workflowId,omitempty" jsonschema:"description=Only executions of this workflow"`
	Status     string `json:"status,omitempty" jsonschema:"description=Filter by status,enum=error,enum=success,enum=waiting"`
	Limit      int    `json:"limit,omitempty" jsonschema:"description=Maximum number of executions to return"`
	Cursor     string `json:"cursor,omitempty" jsonschema:"description=Pagination cursor from a previous page"`
}

type deleteExecutionArgs struct {
	ID int64 `json:"id" jsonschema:"description=Execution id"`
}

func executionTools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool("get_execution",
			func(ctx context.Context, sess mcpservice.Session, args getExecutionArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				ex, err := c.GetExecution(ctx, args.ID, args.IncludeData)
				return render(ex, err)
			},
			mcpservice.WithToolDescription("Get a workflow execution by id."),
		),
		mcpservice.NewTool("list_executions",
			func(ctx context.Context, sess mcpservice.Session, args listExecutionsArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				page, err := c.ListExecutions(ctx, n8n.ExecutionListOptions{
					ListOptions: n8n.ListOptions{Limit: args.Limit, Cursor: args.Cursor},
					WorkflowID:  args.WorkflowID,
					Status:      args.Status,
				})
				return render(page, err)
			},
			mcpservice.WithToolDescription("List workflow executions, optionally filtered by workflow or status."),
		),
		mcpservice.NewTool("delete_execution",
			func(ctx context.Context, sess mcpservice.Session, args deleteExecutionArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				ex, err := c.DeleteExecution(ctx, args.ID)
				return render(ex, err)
			},
			mcpservice.WithToolDescription("Delete an execution record by id."),
		),
	}
}
