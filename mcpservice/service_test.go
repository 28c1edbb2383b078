package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type fakeSession struct {
	id   string
	ictx *n8n.InstanceContext
}

func (s *fakeSession) SessionID() string              { return s.id }
func (s *fakeSession) Instance() *n8n.InstanceContext { return s.ictx }
func (s *fakeSession) Client() (*n8n.Client, error) {
	if s.ictx == nil {
		return nil, errors.New("no instance")
	}
	return n8n.NewFromContext(s.ictx)
}

func newTestTransport(t *testing.T, tools ...StaticTool) *SessionTransport {
	t.Helper()
	srv := NewServer(WithToolsContainer(NewToolsContainer(tools...)))
	return srv.Connect(&fakeSession{id: "s1", ictx: &n8n.InstanceContext{BaseURL: "https://n8n.example.com", APIKey: "k"}})
}

func handle(t *testing.T, tr *SessionTransport, body string) map[string]any {
	t.Helper()
	raw, err := tr.HandleMessage(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if raw == nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func rpcErrorCode(t *testing.T, res map[string]any) float64 {
	t.Helper()
	errObj, ok := res["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error in %v", res)
	}
	code, _ := errObj["code"].(float64)
	return code
}

func TestPing(t *testing.T) {
	tr := newTestTransport(t)
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if _, ok := res["result"]; !ok {
		t.Fatalf("no result in %v", res)
	}
	if res["id"] != float64(1) {
		t.Fatalf("id = %v, want 1", res["id"])
	}
}

func TestInitializeOnLiveSessionRejected(t *testing.T) {
	tr := newTestTransport(t)
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if code := rpcErrorCode(t, res); code != -32600 {
		t.Fatalf("code = %v, want -32600", code)
	}
}

func TestUnknownMethod(t *testing.T) {
	tr := newTestTransport(t)
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	if code := rpcErrorCode(t, res); code != -32601 {
		t.Fatalf("code = %v, want -32601", code)
	}
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	tr := newTestTransport(t)
	if res := handle(t, tr, `{"jsonrpc":"2.0","method":"notifications/initialized"}`); res != nil {
		t.Fatalf("notification got response %v", res)
	}
}

func TestClientResponsesDropped(t *testing.T) {
	tr := newTestTransport(t)
	if res := handle(t, tr, `{"jsonrpc":"2.0","id":9,"result":{}}`); res != nil {
		t.Fatalf("client response got reply %v", res)
	}
}

func TestParseErrorResponse(t *testing.T) {
	tr := newTestTransport(t)
	res := handle(t, tr, `{broken`)
	if code := rpcErrorCode(t, res); code != -32700 {
		t.Fatalf("code = %v, want -32700", code)
	}
}

func TestClosedTransportRejectsMessages(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	_, err := tr.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("err = %v, want ErrTransportClosed", err)
	}
}

type greetArgs struct {
	Name string `json:"name" jsonschema:"description=Who to greet"`
	Loud bool   `json:"loud,omitempty"`
}

func greetTool() StaticTool {
	return NewTool("greet",
		func(ctx context.Context, sess Session, args greetArgs) (*mcp.CallToolResult, error) {
			msg := "hello " + args.Name
			if args.Loud {
				msg += "!"
			}
			return TextResult(msg), nil
		},
		WithToolDescription("Greets someone."),
	)
}

func TestToolCallDecodesTypedArgs(t *testing.T) {
	tr := newTestTransport(t, greetTool())
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"greet","arguments":{"name":"ada","loud":true}}}`)
	result, ok := res["result"].(map[string]any)
	if !ok {
		t.Fatalf("no result in %v", res)
	}
	content := result["content"].([]any)
	block := content[0].(map[string]any)
	if block["text"] != "hello ada!" {
		t.Fatalf("text = %v", block["text"])
	}
}

func TestToolCallRejectsUnknownFields(t *testing.T) {
	tr := newTestTransport(t, greetTool())
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"greet","arguments":{"name":"ada","bogus":1}}}`)
	result := res["result"].(map[string]any)
	if result["isError"] != true {
		t.Fatalf("unknown field accepted: %v", result)
	}
}

func TestToolCallUnknownToolIsErrorResult(t *testing.T) {
	tr := newTestTransport(t)
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	result, ok := res["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected error result, got %v", res)
	}
	if result["isError"] != true {
		t.Fatalf("isError = %v", result["isError"])
	}
}

func TestToolHandlerErrorBecomesInternalError(t *testing.T) {
	boom := NewTool("boom",
		func(ctx context.Context, sess Session, args struct{}) (*mcp.CallToolResult, error) {
			return nil, errors.New("kaboom: secret detail")
		},
	)
	tr := newTestTransport(t, boom)
	res := handle(t, tr, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"boom","arguments":{}}}`)
	errObj := res["error"].(map[string]any)
	if errObj["code"].(float64) != -32603 {
		t.Fatalf("code = %v", errObj["code"])
	}
	if msg := errObj["message"].(string); msg != "tool execution failed" {
		t.Fatalf("leaked internal detail: %q", msg)
	}
}

func TestListToolsPagination(t *testing.T) {
	var defs []StaticTool
	for i := 0; i < 120; i++ {
		name := fmt.Sprintf("tool_%03d", i)
		defs = append(defs, NewTool(name,
			func(ctx context.Context, sess Session, args struct{}) (*mcp.CallToolResult, error) {
				return TextResult("ok"), nil
			},
		))
	}
	tc := NewToolsContainer(defs...)

	var got []string
	cursor := ""
	for {
		page := tc.ListTools(cursor)
		for _, tool := range page.Tools {
			got = append(got, tool.Name)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(got) != 120 {
		t.Fatalf("paged through %d tools, want 120", len(got))
	}
	if got[0] != "tool_000" || got[119] != "tool_119" {
		t.Fatalf("ordering broken: first=%q last=%q", got[0], got[119])
	}
}

func TestReflectedSchemaMarksRequiredFields(t *testing.T) {
	def := greetTool()
	schema := def.Descriptor.InputSchema
	if schema.Type != "object" {
		t.Fatalf("type = %q", schema.Type)
	}
	if _, ok := schema.Properties["name"]; !ok {
		t.Fatalf("missing name property: %v", schema.Properties)
	}
	required := false
	for _, r := range schema.Required {
		if r == "name" {
			required = true
		}
	}
	if !required {
		t.Fatalf("name not required: %v", schema.Required)
	}
	for _, r := range schema.Required {
		if r == "loud" {
			t.Fatal("omitempty field marked required")
		}
	}
}

func TestInitializeResultEchoesKnownVersion(t *testing.T) {
	srv := NewServer()
	for _, pv := range []string{"2024-11-05", "2025-03-26", mcp.LatestProtocolVersion} {
		res := srv.InitializeResult(&mcp.InitializeRequest{ProtocolVersion: pv})
		if res.ProtocolVersion != pv {
			t.Fatalf("pv %q echoed as %q", pv, res.ProtocolVersion)
		}
	}
	res := srv.InitializeResult(&mcp.InitializeRequest{ProtocolVersion: "1999-01-01"})
	if res.ProtocolVersion != mcp.LatestProtocolVersion {
		t.Fatalf("unknown pv negotiated to %q", res.ProtocolVersion)
	}
}
