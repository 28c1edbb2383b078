package tools

import (
	"context"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type getWorkflowArgs struct {
	ID string `json:"id" jsonschema:"description=Workflow id"`
}

type listWorkflowsArgs struct {
	Active *bool  `json:"active,omitempty" jsonschema:"description=Filter by activation state"`
	Tags   string `json:"tags,omitempty" jsonschema:"description=Comma-separated tag names to filter by"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of workflows to return"`
	Cursor string `json:"cursor,omitempty" jsonschema:"description=Pagination cursor from a previous page"`
}

type workflowIDArgs struct {
	ID string `json:"id" jsonschema:"description=Workflow id"`
}

func workflowTools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool("get_workflow",
			func(ctx context.Context, sess mcpservice.Session, args getWorkflowArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				wf, err := c.GetWorkflow(ctx, args.ID)
				return render(wf, err)
			},
			mcpservice.WithToolDescription("Get a workflow by id, including its nodes and connections."),
		),
		mcpservice.NewTool("list_workflows",
			func(ctx context.Context, sess mcpservice.Session, args listWorkflowsArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				page, err := c.ListWorkflows(ctx, n8n.WorkflowListOptions{
					ListOptions: n8n.ListOptions{Limit: args.Limit, Cursor: args.Cursor},
					Active:      args.Active,
					Tags:        args.Tags,
				})
				return render(page, err)
			},
			mcpservice.WithToolDescription("List workflows, optionally filtered by activation state or tags."),
		),
		mcpservice.NewTool("activate_workflow",
			func(ctx context.Context, sess mcpservice.Session, args workflowIDArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				wf, err := c.ActivateWorkflow(ctx, args.ID)
				return render(wf, err)
			},
			mcpservice.WithToolDescription("Activate a workflow so its triggers start running."),
		),
		mcpservice.NewTool("deactivate_workflow",
			func(ctx context.Context, sess mcpservice.Session, args workflowIDArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				wf, err := c.DeactivateWorkflow(ctx, args.ID)
				return render(wf, err)
			},
			mcpservice.WithToolDescription("Deactivate a workflow, stopping its triggers."),
		),
	}
}
