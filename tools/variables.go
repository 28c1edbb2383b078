package tools

import (
	"context"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type createVariableArgs struct {
	Key   string `json:"key" jsonschema:"description=Variable key"`
	Value string `json:"value" jsonschema:"description=Variable value"`
}

type listVariablesArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of variables to return"`
	Cursor string `json:"cursor,omitempty" jsonschema:"description=Pagination cursor from a previous page"`
}

type updateVariableArgs struct {
	ID    string `json:"id" jsonschema:"description=Variable id"`
	Key   string `json:"key" jsonschema:"description=New variable key"`
	Value string `json:"value" jsonschema:"description=New variable value"`
}

type deleteVariableArgs struct {
	ID string `json:"id" jsonschema:"description=Variable id"`
}

func variableTools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool("create_variable",
			func(ctx context.Context, sess mcpservice.Session, args createVariableArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				if err := c.CreateVariable(ctx, args.Key, args.Value); err != nil {
					return render(nil, err)
				}
				return mcpservice.TextResult("variable created"), nil
			},
			mcpservice.WithToolDescription("Create an environment variable available to workflow expressions."),
		),
		mcpservice.NewTool("list_variables",
			func(ctx context.Context, sess mcpservice.Session, args listVariablesArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				page, err := c.ListVariables(ctx, n8n.ListOptions{Limit: args.Limit, Cursor: args.Cursor})
				return render(page, err)
			},
			mcpservice.WithToolDescription("List environment variables."),
		),
		mcpservice.NewTool("update_variable",
			func(ctx context.Context, sess mcpservice.Session, args updateVariableArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				if err := c.UpdateVariable(ctx, args.ID, args.Key, args.Value); err != nil {
					return render(nil, err)
				}
				return mcpservice.TextResult("variable updated"), nil
			},
			mcpservice.WithToolDescription("Replace a variable's key and value."),
		),
		mcpservice.NewTool("delete_variable",
			func(ctx context.Context, sess mcpservice.Session, args deleteVariableArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				if err := c.DeleteVariable(ctx, args.ID); err != nil {
					return render(nil, err)
				}
				return mcpservice.TextResult("variable deleted"), nil
			},
			mcpservice.WithToolDescription("Delete a variable by id."),
		),
	}
}
