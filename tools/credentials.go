package tools

import (
	"context"
	"encoding/json"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type createCredentialArgs struct {
	Name string          `json:"name" jsonschema:"description=Display name for the credential"`
	Type string          `json:"type" jsonschema:"description=Credential type name, e.g. githubApi"`
	Data json.RawMessage `json:"data" jsonschema:"description=Credential payload matching the type's schema"`
}

type deleteCredentialArgs struct {
	ID string `json:"id" jsonschema:"description=Credential id"`
}

type credentialSchemaArgs struct {
	CredentialType string `json:"credentialType" jsonschema:"description=Credential type name to fetch the schema for"`
}

func credentialTools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool("create_credential",
			func(ctx context.Context, sess mcpservice.Session, args createCredentialArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				cred, err := c.CreateCredential(ctx, n8n.CreateCredentialRequest{
					Name: args.Name,
					Type: args.Type,
					Data: args.Data,
				})
				return render(cred, err)
			},
			mcpservice.WithToolDescription("Create a credential on the n8n instance. Use get_credential_schema first to see the required data fields."),
		),
		mcpservice.NewTool("delete_credential",
			func(ctx context.Context, sess mcpservice.Session, args deleteCredentialArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				cred, err := c.DeleteCredential(ctx, args.ID)
				return render(cred, err)
			},
			mcpservice.WithToolDescription("Delete a credential by id."),
		),
		mcpservice.NewTool("get_credential_schema",
			func(ctx context.Context, sess mcpservice.Session, args credentialSchemaArgs) (*mcp.CallToolResult, error) {
				c, errRes := clientFor(sess)
				if errRes != nil {
					return errRes, nil
				}
				schema, err := c.GetCredentialSchema(ctx, args.CredentialType)
				return render(schema, err)
			},
			mcpservice.WithToolDescription("Get the JSON schema describing the data fields a credential type expects."),
		),
	}
}
