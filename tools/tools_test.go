package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

type stubSession struct {
	ictx *n8n.InstanceContext
}

func (s *stubSession) SessionID() string              { return "test-session" }
func (s *stubSession) Instance() *n8n.InstanceContext { return s.ictx }
func (s *stubSession) Client() (*n8n.Client, error)   { return n8n.NewFromContext(s.ictx) }

func newStubBackend(t *testing.T, handler http.HandlerFunc) mcpservice.Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &stubSession{ictx: &n8n.InstanceContext{BaseURL: srv.URL, APIKey: "k"}}
}

func callTool(t *testing.T, sess mcpservice.Session, name, args string) *mcp.CallToolResult {
	t.Helper()
	tc := mcpservice.NewToolsContainer(All()...)
	res, err := tc.Call(context.Background(), sess, &mcp.CallToolRequest{
		Name:      name,
		Arguments: json.RawMessage(args),
	})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return res
}

func TestAllToolNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range All() {
		name := def.Descriptor.Name
		if name == "" {
			t.Fatal("tool with empty name")
		}
		if seen[name] {
			t.Fatalf("duplicate tool name %q", name)
		}
		seen[name] = true
		if def.Descriptor.Description == "" {
			t.Fatalf("tool %q has no description", name)
		}
		if def.Descriptor.InputSchema.Type != "object" {
			t.Fatalf("tool %q schema type = %q", name, def.Descriptor.InputSchema.Type)
		}
	}
	if len(seen) < 19 {
		t.Fatalf("only %d tools registered", len(seen))
	}
}

func TestGetWorkflowTool(t *testing.T) {
	sess := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workflows/wf1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(n8n.Workflow{ID: "wf1", Name: "deploy", Active: true})
	})

	res := callTool(t, sess, "get_workflow", `{"id":"wf1"}`)
	if res.IsError {
		t.Fatalf("error result: %+v", res.Content)
	}
	if !strings.Contains(res.Content[0].Text, `"deploy"`) {
		t.Fatalf("content = %q", res.Content[0].Text)
	}
}

func TestListExecutionsToolForwardsFilters(t *testing.T) {
	sess := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("workflowId") != "wf1" || q.Get("status") != "error" || q.Get("limit") != "5" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(n8n.List[n8n.Execution]{Data: []n8n.Execution{{ID: 1, Status: "error"}}})
	})

	res := callTool(t, sess, "list_executions", `{"workflowId":"wf1","status":"error","limit":5}`)
	if res.IsError {
		t.Fatalf("error result: %+v", res.Content)
	}
}

func TestCreateVariableTool(t *testing.T) {
	sess := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/variables" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var v n8n.Variable
		json.NewDecoder(r.Body).Decode(&v)
		if v.Key != "API_BASE" || v.Value != "https://svc" {
			t.Errorf("variable = %+v", v)
		}
		w.WriteHeader(http.StatusCreated)
	})

	res := callTool(t, sess, "create_variable", `{"key":"API_BASE","value":"https://svc"}`)
	if res.IsError {
		t.Fatalf("error result: %+v", res.Content)
	}
}

func TestUpstreamErrorBecomesErrorResult(t *testing.T) {
	sess := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	})

	res := callTool(t, sess, "list_tags", `{}`)
	if !res.IsError {
		t.Fatal("upstream failure not surfaced as error result")
	}
	if !strings.Contains(res.Content[0].Text, "401") || !strings.Contains(res.Content[0].Text, "invalid api key") {
		t.Fatalf("content = %q", res.Content[0].Text)
	}
}

func TestToolRejectsUnknownArguments(t *testing.T) {
	sess := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be reached for invalid arguments")
	})

	res := callTool(t, sess, "get_workflow", `{"id":"wf1","extra":true}`)
	if !res.IsError {
		t.Fatal("unknown argument accepted")
	}
}

func TestSessionWithoutInstanceGetsErrorResult(t *testing.T) {
	sess := &stubSession{ictx: nil}
	res := callTool(t, sess, "list_workflows", `{}`)
	if !res.IsError {
		t.Fatal("missing instance context not surfaced as error result")
	}
}
