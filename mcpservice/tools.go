package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/n8n-mcp/n8n-mcp-go/mcp"
)

// ToolHandler is the function signature used to handle a tool invocation.
type ToolHandler func(ctx context.Context, sess Session, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// StaticTool pairs an MCP tool descriptor with its handler.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// ToolOption configures NewTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description               string
	allowAdditionalProperties bool
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolAllowAdditionalProperties controls whether unknown argument
// fields are tolerated. Strict by default.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// NewTool constructs a StaticTool from a typed args struct A. The input
// schema is reflected from A with invopop/jsonschema; at call time the raw
// arguments are decoded into A, rejecting unknown fields unless allowed.
func NewTool[A any](name string, fn func(ctx context.Context, sess Session, args A) (*mcp.CallToolResult, error), opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: reflectInputSchema[A](cfg.allowAdditionalProperties),
	}

	handler := func(ctx context.Context, sess Session, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var a A
		if len(req.Arguments) > 0 {
			if cfg.allowAdditionalProperties {
				if err := json.Unmarshal(req.Arguments, &a); err != nil {
					return Errorf("invalid arguments: %v", err), nil
				}
			} else {
				dec := json.NewDecoder(bytes.NewReader(req.Arguments))
				dec.DisallowUnknownFields()
				if err := dec.Decode(&a); err != nil {
					return Errorf("invalid arguments: %v", err), nil
				}
			}
		}
		return fn(ctx, sess, a)
	}

	return StaticTool{Descriptor: desc, Handler: handler}
}

// reflectInputSchema reflects a Go type A into the simplified MCP input
// schema shape.
func reflectInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(A))

	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toSchemaProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

// toSchemaProperty recursively maps a jsonschema node to the simplified
// MCP property shape.
func toSchemaProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toSchemaProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toSchemaProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// ToolsContainer owns a threadsafe set of tool descriptors and handlers.
type ToolsContainer struct {
	mu       sync.RWMutex
	tools    []mcp.Tool
	handlers map[string]ToolHandler
	pageSize int
}

// NewToolsContainer constructs a container with the given tool definitions.
func NewToolsContainer(defs ...StaticTool) *ToolsContainer {
	tc := &ToolsContainer{pageSize: 50}
	tc.Replace(defs...)
	return tc
}

// Replace atomically replaces the entire tool set. Last write wins on
// duplicate names.
func (tc *ToolsContainer) Replace(defs ...StaticTool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tools = make([]mcp.Tool, 0, len(defs))
	tc.handlers = make(map[string]ToolHandler, len(defs))
	for _, d := range defs {
		tc.tools = append(tc.tools, d.Descriptor)
		if d.Handler != nil {
			tc.handlers[d.Descriptor.Name] = d.Handler
		}
	}
}

// Add registers tools, skipping any whose name is already taken. Returns
// the number actually added.
func (tc *ToolsContainer) Add(defs ...StaticTool) int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	added := 0
	for _, d := range defs {
		if _, exists := tc.handlers[d.Descriptor.Name]; exists {
			continue
		}
		tc.tools = append(tc.tools, d.Descriptor)
		tc.handlers[d.Descriptor.Name] = d.Handler
		added++
	}
	return added
}

// Snapshot returns a copy of the current tool descriptors.
func (tc *ToolsContainer) Snapshot() []mcp.Tool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	out := make([]mcp.Tool, len(tc.tools))
	copy(out, tc.tools)
	return out
}

// Len returns the number of registered tools.
func (tc *ToolsContainer) Len() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return len(tc.tools)
}

// ListTools returns one page of descriptors starting at the cursor.
func (tc *ToolsContainer) ListTools(cursor string) *mcp.ListToolsResult {
	tc.mu.RLock()
	all := make([]mcp.Tool, len(tc.tools))
	copy(all, tc.tools)
	pageSize := tc.pageSize
	tc.mu.RUnlock()

	start := parseCursor(cursor)
	if start < 0 || start > len(all) {
		start = 0
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	res := &mcp.ListToolsResult{Tools: all[start:end]}
	if end < len(all) {
		res.NextCursor = strconv.Itoa(end)
	}
	return res
}

// Call dispatches a request to the named tool if present.
func (tc *ToolsContainer) Call(ctx context.Context, sess Session, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req == nil || req.Name == "" {
		return nil, fmt.Errorf("invalid tool request: missing name")
	}
	tc.mu.RLock()
	h := tc.handlers[req.Name]
	tc.mu.RUnlock()
	if h == nil {
		return Errorf("tool not found: %s", req.Name), nil
	}
	return h(ctx, sess, req)
}

func parseCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	n, err := strconv.Atoi(cursor)
	if err != nil {
		return 0
	}
	return n
}

// TextResult builds a text CallToolResult.
func TextResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: s}}}
}

// JSONResult renders v as an indented JSON text block.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Errorf("failed to render result: %v", err)
	}
	return TextResult(string(b))
}

// Errorf returns an error CallToolResult with a single text block.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: fmt.Sprintf(format, a...)}},
		IsError: true,
	}
}
