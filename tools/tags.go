package tools

import (
	"context"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type createTagArgs struct {
	Name string `json:"name" jsonschema:"description=Tag name"`
}

type tagIDArgs struct {
	ID string `json:"id" jsonschema:"description=Tag id"`
}

type listTagsArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of tags to return"`
	Cursor string `json:"cursor,omitempty" jsonschema:"description=Pagination cursor from a previous page"`
}

type updateTagArgs struct {
	ID   string `json:"id" jsonschema:"description=Tag id"`
	Name string `json:"name" jsonschema:"description=New tag name"`
}

func tagTools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool("create_tag",
			func(ctx context.Context, sess mcpservice.Session, args createTagArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				tag, err := c.CreateTag(ctx, args.Name)
				return render(tag, err)
			},
			mcpservice.WithToolDescription("Create a workflow tag."),
		),
		mcpservice.NewTool("get_tag",
			func(ctx context.Context, sess mcpservice.Session, args tagIDArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				tag, err := c.GetTag(ctx, args.ID)
				return render(tag, err)
			},
			mcpservice.WithToolDescription("Get a tag by id."),
		),
		mcpservice.NewTool("list_tags",
			func(ctx context.Context, sess mcpservice.Session, args listTagsArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				page, err := c.ListTags(ctx, n8n.ListOptions{Limit: args.Limit, Cursor: args.Cursor})
				return render(page, err)
			},
			mcpservice.WithToolDescription("List workflow tags."),
		),
		mcpservice.NewTool("update_tag",
			func(ctx context.Context, sess mcpservice.Session, args updateTagArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				tag, err := c.UpdateTag(ctx, args.ID, args.Name)
				return render(tag, err)
			},
			mcpservice.WithToolDescription("Rename a tag."),
		),
		mcpservice.NewTool("delete_tag",
			func(ctx context.Context, sess mcpservice.Session, args tagIDArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				tag, err := c.DeleteTag(ctx, args.ID)
				return render(tag, err)
			},
			mcpservice.WithToolDescription("Delete a tag by id."),
		),
	}
}
