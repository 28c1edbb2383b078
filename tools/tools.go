// Package tools defines the MCP tools exposed by the server, one per n8n
// public API operation. Every handler resolves its API client through the
// session, so a context switch between two calls transparently retargets
// the next call.
package tools

import (
	"errors"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

// All returns the full tool set in stable listing order.
func All() []mcpservice.StaticTool {
	var defs []mcpservice.StaticTool
	defs = append(defs, workflowTools()...)
	defs = append(defs, executionTools()...)
	defs = append(defs, credentialTools()...)
	defs = append(defs, tagTools()...)
	defs = append(defs, variableTools()...)
	return defs
}

// clientFor resolves the session's API client, or an error result when the
// session has no usable instance context.
func clientFor(sess mcpservice.Session) (*n8n.Client, *mcp.CallToolResult) {
	c, err := sess.Client()
	if err != nil {
		return nil, mcpservice.Errorf("no n8n instance configured for this session: %v", err)
	}
	return c, nil
}

// render maps an n8n call outcome to a tool result. API failures become
// error results rather than protocol errors so the client sees what the
// upstream instance said.
func render(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		var apiErr *n8n.APIError
		if errors.As(err, &apiErr) {
			return mcpservice.Errorf("n8n API request failed (status %d): %s", apiErr.StatusCode, apiErr.Message), nil
		}
		return mcpservice.Errorf("n8n request failed: %v", err), nil
	}
	return mcpservice.JSONResult(v), nil
}
