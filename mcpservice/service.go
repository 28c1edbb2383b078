// Package mcpservice implements the MCP service layer: server identity,
// typed tool registration, and the per-session protocol handler that the
// transport delegates raw JSON-RPC messages to.
package mcpservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/n8n-mcp/n8n-mcp-go/internal/jsonrpc"
	"github.com/n8n-mcp/n8n-mcp-go/internal/logctx"
	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

// Session is the view of a live session that tool handlers receive.
type Session interface {
	// SessionID returns the session identifier.
	SessionID() string
	// Instance returns the session's current upstream instance context.
	Instance() *n8n.InstanceContext
	// Client returns an n8n API client bound to the current instance
	// context. The client is replaced when the context is switched.
	Client() (*n8n.Client, error)
}

// Server holds the identity and tool set shared by all sessions.
type Server struct {
	info         mcp.ImplementationInfo
	instructions string
	tools        *ToolsContainer
	log          *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerInfo sets the implementation info advertised on initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithInstructions sets usage instructions surfaced to the client.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) { s.instructions = instructions }
}

// WithToolsContainer sets the tool set served to every session.
func WithToolsContainer(tc *ToolsContainer) ServerOption {
	return func(s *Server) { s.tools = tc }
}

// WithLogger sets the slog logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer constructs a Server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		info:  mcp.ImplementationInfo{Name: "n8n-mcp", Version: "dev"},
		tools: NewToolsContainer(),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tools returns the shared tool container.
func (s *Server) Tools() *ToolsContainer { return s.tools }

// Info returns the advertised implementation info.
func (s *Server) Info() mcp.ImplementationInfo { return s.info }

// InitializeResult negotiates the handshake reply for an initialize request.
// A recognized client protocol version is echoed back; anything else gets
// the latest version this server speaks.
func (s *Server) InitializeResult(req *mcp.InitializeRequest) *mcp.InitializeResult {
	pv := req.ProtocolVersion
	switch pv {
	case "2024-11-05", "2025-03-26", mcp.LatestProtocolVersion:
	default:
		pv = mcp.LatestProtocolVersion
	}
	return &mcp.InitializeResult{
		ProtocolVersion: pv,
		Capabilities: mcp.ServerCapabilities{
			Tools: &struct {
				ListChanged bool `json:"listChanged"`
			}{ListChanged: false},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}
}

// Connect binds a session to the server, producing its protocol transport.
// The returned transport is owned by the session registry for the life of
// the session.
func (s *Server) Connect(sess Session) *SessionTransport {
	return &SessionTransport{srv: s, sess: sess}
}

// SessionTransport handles the protocol messages of a single session.
type SessionTransport struct {
	srv    *Server
	sess   Session
	closed atomic.Bool
}

// ErrTransportClosed is returned for messages arriving after Close.
var ErrTransportClosed = fmt.Errorf("session transport closed")

// HandleMessage processes one raw JSON-RPC message and returns the raw
// response, or nil for notifications and client responses. Protocol-level
// failures are returned as JSON-RPC error responses, not Go errors; a
// non-nil error means the transport itself is broken and the session
// should be torn down.
func (t *SessionTransport) HandleMessage(ctx context.Context, raw []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return marshalResponse(jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "invalid JSON-RPC message"))
	}

	req := msg.AsRequest()
	if req == nil {
		// Client responses have no server-side correlation in this
		// transport; accept and drop them.
		return nil, nil
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: msg.Type()})

	if req.IsNotification() {
		t.handleNotification(ctx, req)
		return nil, nil
	}

	res := t.handleRequest(ctx, req)
	return marshalResponse(res)
}

func (t *SessionTransport) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	switch mcp.Method(req.Method) {
	case mcp.InitializedNotificationMethod:
		t.srv.log.InfoContext(ctx, "session.open")
	case mcp.CancelledNotificationMethod:
		// Requests run synchronously within the POST that carried them;
		// there is nothing in flight to cancel by the time this arrives.
	default:
		t.srv.log.DebugContext(ctx, "notification.ignored")
	}
}

func (t *SessionTransport) handleRequest(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	switch mcp.Method(req.Method) {
	case mcp.PingMethod:
		res, err := jsonrpc.NewResultResponse(req.ID, mcp.EmptyResult{})
		if err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
		}
		return res

	case mcp.InitializeMethod:
		// The router creates sessions; an initialize on a live session is
		// a protocol violation.
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "session already initialized")

	case mcp.ToolsListMethod:
		var listReq mcp.ListToolsRequest
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &listReq); err != nil {
				return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid tools/list params")
			}
		}
		result := t.srv.tools.ListTools(listReq.Cursor)
		res, err := jsonrpc.NewResultResponse(req.ID, result)
		if err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
		}
		return res

	case mcp.ToolsCallMethod:
		var callReq mcp.CallToolRequest
		if err := json.Unmarshal(req.Params, &callReq); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid tools/call params")
		}
		ctx := logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: callReq.Name})
		result, err := t.srv.tools.Call(ctx, t.sess, &callReq)
		if err != nil {
			t.srv.log.ErrorContext(ctx, "tool.call.fail", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "tool execution failed")
		}
		res, err := jsonrpc.NewResultResponse(req.ID, result)
		if err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
		}
		return res

	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// Close marks the transport closed. Idempotent.
func (t *SessionTransport) Close(ctx context.Context) error {
	t.closed.Store(true)
	return nil
}

func marshalResponse(res *jsonrpc.Response) ([]byte, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return b, nil
}
