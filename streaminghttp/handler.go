// Package streaminghttp implements the HTTP transport of the server: the
// session-bearing /mcp endpoint (POST, GET, DELETE), bearer-token
// authentication, shared-mode instance-context switching, and the static
// discovery endpoints.
package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"github.com/n8n-mcp/n8n-mcp-go/auth"
	"github.com/n8n-mcp/n8n-mcp-go/internal/config"
	"github.com/n8n-mcp/n8n-mcp-go/internal/jsonrpc"
	"github.com/n8n-mcp/n8n-mcp-go/internal/logctx"
	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
	"github.com/n8n-mcp/n8n-mcp-go/sessions"
)

var _ http.Handler = (*Handler)(nil)

const (
	// Use canonical header names; Go matches headers case-insensitively.
	mcpSessionIDHeader  = "Mcp-Session-Id"
	authorizationHeader = "Authorization"

	// Per-request instance headers recognized in multi-tenant modes.
	instanceURLHeader    = "X-N8n-Url"
	instanceKeyHeader    = "X-N8n-Key"
	instanceTenantHeader = "X-Instance-Id"

	// keepaliveInterval paces SSE comments on held GET streams.
	keepaliveInterval = 30 * time.Second
	// disconnectGrace delays the removal check after a client drops its
	// GET stream, so a response still in flight is never raced.
	disconnectGrace = 10 * time.Second
)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
)

// Handler is the HTTP transport. It routes each inbound message to exactly
// one session in the registry, or rejects it.
type Handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	auth     auth.Authenticator
	reg      *sessions.Registry
	switcher *sessions.Switcher
	svc      *mcpservice.Server

	mode            config.TenancyMode
	defaultInstance *n8n.InstanceContext
	devMode         bool
	startedAt       time.Time
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the slog logger. Records are enriched via logctx.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithMode sets the multi-tenant mode. Defaults to config.TenancyOff.
func WithMode(mode config.TenancyMode) Option {
	return func(h *Handler) { h.mode = mode }
}

// WithDefaultInstance sets the upstream instance used when a request
// carries no instance headers. Required in single-tenant mode.
func WithDefaultInstance(ictx *n8n.InstanceContext) Option {
	return func(h *Handler) { h.defaultInstance = ictx }
}

// WithDevelopmentMode loosens error sanitization for local debugging.
func WithDevelopmentMode(dev bool) Option {
	return func(h *Handler) { h.devMode = dev }
}

// New constructs the transport handler. The registry owns all sessions;
// the handler only ever calls Create, Lookup, Touch, and Remove on it.
func New(reg *sessions.Registry, switcher *sessions.Switcher, svc *mcpservice.Server, authenticator auth.Authenticator, opts ...Option) (*Handler, error) {
	if reg == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("mcp service is required")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	h := &Handler{
		log:       slog.Default(),
		auth:      authenticator,
		reg:       reg,
		switcher:  switcher,
		svc:       svc,
		mode:      config.TenancyOff,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = slog.New(logctx.Handler{Handler: h.log.Handler()})

	if h.mode == config.TenancyShared && h.switcher == nil {
		return nil, fmt.Errorf("shared tenancy requires a context switcher")
	}
	if h.mode == config.TenancyOff && h.defaultInstance == nil {
		return nil, fmt.Errorf("single-tenant mode requires a default instance")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", h.handlePostMCP)
	mux.HandleFunc("GET /mcp", h.handleGetMCP)
	mux.HandleFunc("DELETE /mcp", h.handleDeleteMCP)
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /info", h.handleInfo)
	mux.HandleFunc("GET /tools", h.handleTools)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	// Outermost recovery boundary: a panic anywhere below becomes a
	// sanitized 500 (best effort if the response already started) and
	// never kills the process.
	defer func() {
		if rec := recover(); rec != nil {
			h.log.ErrorContext(ctx, "http.panic", slog.Any("panic", rec))
			writeJSONError(w, http.StatusInternalServerError, h.sanitize(fmt.Errorf("panic: %v", rec)))
		}
	}()

	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// writeJSONError emits a transport-level JSON error body before a JSON-RPC
// exchange is possible. Shape: {"error":{"code":<status>,"message":...}}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// handlePostMCP is the primary session-bearing endpoint. An initialize
// message creates a session (body wins over any stale session header);
// everything else must resolve an existing session and never creates one.
func (h *Handler) handlePostMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.post.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	if h.checkAuthentication(ctx, r, w) == nil {
		h.log.InfoContext(ctx, "auth.fail")
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&raw); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		h.log.WarnContext(ctx, "json.decode.fail", slog.String("err", err.Error()))
		return
	}
	if len(raw) > 0 && raw[0] == '[' {
		writeJSONError(w, http.StatusBadRequest, "JSON-RPC batch arrays are not supported")
		h.log.WarnContext(ctx, "jsonrpc.batch.forbidden")
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON-RPC message: "+err.Error())
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	// Structural check: the body decides whether this request establishes
	// a session. A stale session header on an initialize is ignored.
	if req := msg.AsRequest(); req != nil && req.Method == string(mcp.InitializeMethod) && !req.IsNotification() {
		h.handleInitialize(ctx, w, r, req, start)
		return
	}

	sess, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID: sess.SessionID(),
		TenantID:  tenantOf(sess.Instance()),
		State:     string(sess.State()),
	})

	if h.mode == config.TenancyShared {
		if ictx := h.instanceFromHeaders(r); ictx != nil {
			if err := h.switcher.Switch(ctx, sess, ictx); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid instance headers: "+h.sanitize(err))
				h.log.WarnContext(ctx, "session.context.switch.fail", slog.String("err", err.Error()))
				return
			}
		}
	}

	res, err := sess.Transport().HandleMessage(ctx, raw)
	if err != nil {
		// Transport failure is fatal to this session only.
		h.reg.Remove(ctx, sess.SessionID(), sessions.ReasonTransportError)
		writeJSONError(w, http.StatusInternalServerError, h.sanitize(err))
		h.log.ErrorContext(ctx, "transport.handle.fail", slog.String("err", err.Error()))
		return
	}
	h.reg.Touch(sess.SessionID())

	if res == nil {
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "notification.inbound.ok", slog.Duration("dur", time.Since(start)))
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res); err != nil {
		h.log.ErrorContext(ctx, "response.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
}

// handleInitialize admits a new session. Construction is synchronous: the
// transport and handler are bound before the session id is ever surfaced,
// so no half-created session is observable.
func (h *Handler) handleInitialize(ctx context.Context, w http.ResponseWriter, r *http.Request, req *jsonrpc.Request, start time.Time) {
	var initReq mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &initReq); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid initialize params")
		h.log.WarnContext(ctx, "session.initialize.params.fail", slog.String("err", err.Error()))
		return
	}

	ictx := h.instanceFromHeaders(r)
	if ictx == nil {
		ictx = h.defaultInstance
	}
	if ictx == nil {
		writeJSONError(w, http.StatusBadRequest, "missing n8n instance configuration: set X-N8n-Url and X-N8n-Key headers")
		h.log.WarnContext(ctx, "session.initialize.instance.missing")
		return
	}
	if err := ictx.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid instance headers: "+h.sanitize(err))
		h.log.WarnContext(ctx, "session.initialize.instance.invalid", slog.String("err", err.Error()))
		return
	}

	clientIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	sess, err := h.reg.Create(ctx, sessions.CreateOptions{
		Instance: ictx,
		Meta: sessions.Metadata{
			ClientIP:      clientIP,
			UserAgent:     r.UserAgent(),
			ClientName:    initReq.ClientInfo.Name,
			ClientVersion: initReq.ClientInfo.Version,
		},
	}, func(s *sessions.Session) sessions.Transport {
		return h.svc.Connect(s)
	})
	if err != nil {
		if errors.Is(err, sessions.ErrCapacity) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "session capacity reached, retry later")
			h.log.WarnContext(ctx, "session.initialize.capacity")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, h.sanitize(err))
		h.log.ErrorContext(ctx, "session.initialize.fail", slog.String("err", err.Error()))
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.SessionID(), TenantID: tenantOf(ictx), State: string(sess.State())})

	initRes := h.svc.InitializeResult(&initReq)
	resp, err := jsonrpc.NewResultResponse(req.ID, initRes)
	if err != nil {
		h.reg.Remove(ctx, sess.SessionID(), sessions.ReasonTransportError)
		writeJSONError(w, http.StatusInternalServerError, h.sanitize(err))
		h.log.ErrorContext(ctx, "session.initialize.encode.fail", slog.String("err", err.Error()))
		return
	}

	w.Header().Set(mcpSessionIDHeader, sess.SessionID())
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.ErrorContext(ctx, "session.initialize.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "session.initialize.ok", slog.Duration("dur", time.Since(start)))
}

// resolveSession maps the session header to a live session, writing the
// rejection when it cannot. The distinction matters to clients: a missing
// or malformed header is 400 (you sent garbage), an unknown id is 404
// (please re-initialize). Continuation requests never create sessions.
func (h *Handler) resolveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*sessions.Session, bool) {
	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing Mcp-Session-Id header")
		h.log.WarnContext(ctx, "session.id.missing")
		return nil, false
	}
	// Intentionally permissive: gateways may rewrite identifiers, so only
	// non-emptiness is checked and existence does the real validation.
	if strings.TrimSpace(sessID) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid Mcp-Session-Id header")
		h.log.WarnContext(ctx, "session.id.invalid")
		return nil, false
	}

	sess, err := h.reg.Lookup(sessID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "session not found; send a new initialize request")
		h.log.InfoContext(ctx, "session.lookup.miss", slog.String("session_id", sessID))
		return nil, false
	}
	return sess, true
}

// handleGetMCP serves the discovery/handshake variant. With a resolvable
// session the connection is held open as an SSE stream (keepalives only;
// this transport has no server-initiated push); without one it returns
// the static server info document.
func (h *Handler) handleGetMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.checkAuthentication(ctx, r, w) == nil {
		h.log.InfoContext(ctx, "auth.fail")
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		h.writeServerInfo(w)
		return
	}

	sess, err := h.reg.Lookup(sessID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "session not found; send a new initialize request")
		h.log.InfoContext(ctx, "session.lookup.miss", slog.String("session_id", sessID))
		return
	}

	if _, _, err := contenttype.GetAcceptableMediaType(r, []contenttype.MediaType{eventStreamMediaType}); err != nil {
		w.WriteHeader(http.StatusNotAcceptable)
		h.log.WarnContext(ctx, "accept.unsupported", slog.String("accept", r.Header.Get("Accept")))
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}
	wf := &lockedWriteFlusher{w: w, f: f, ctx: ctx}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.SessionID(), TenantID: tenantOf(sess.Instance()), State: string(sess.State())})

	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = wf.writeComment("connected")
	h.reg.Touch(sess.SessionID())
	h.log.InfoContext(ctx, "sse.stream.start")

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Client went away. Schedule a delayed removal check instead
			// of removing outright: a POST response may still be in
			// flight, and any touch after the disconnect keeps the
			// session alive until the sweeper's own idle expiry.
			h.scheduleDisconnectCheck(sess.SessionID(), time.Now())
			h.log.InfoContext(ctx, "sse.stream.disconnect")
			return
		case <-sess.Done():
			h.log.InfoContext(ctx, "sse.stream.end")
			return
		case <-ticker.C:
			if err := wf.writeComment("keepalive"); err != nil {
				h.log.InfoContext(ctx, "sse.keepalive.fail", slog.String("err", err.Error()))
				h.scheduleDisconnectCheck(sess.SessionID(), time.Now())
				return
			}
		}
	}
}

func (h *Handler) scheduleDisconnectCheck(sessID string, disconnectedAt time.Time) {
	time.AfterFunc(disconnectGrace, func() {
		sess, err := h.reg.Lookup(sessID)
		if err != nil {
			return
		}
		if sess.LastAccess().After(disconnectedAt) {
			return
		}
		h.reg.Remove(context.Background(), sessID, sessions.ReasonDisconnect)
	})
}

// handleDeleteMCP terminates a session explicitly.
func (h *Handler) handleDeleteMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.checkAuthentication(ctx, r, w) == nil {
		h.log.InfoContext(ctx, "auth.fail")
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if strings.TrimSpace(sessID) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing Mcp-Session-Id header")
		h.log.WarnContext(ctx, "delete.missing_session_id")
		return
	}

	if !h.reg.Remove(ctx, sessID, sessions.ReasonTerminated) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		h.log.InfoContext(ctx, "session.delete.miss", slog.String("session_id", sessID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.log.InfoContext(ctx, "session.delete.ok", slog.String("session_id", sessID))
}

// checkAuthentication enforces the bearer token. The comparison itself is
// constant-time inside the authenticator; this only parses the header.
func (h *Handler) checkAuthentication(ctx context.Context, r *http.Request, w http.ResponseWriter) auth.UserInfo {
	authHeader := r.Header.Get(authorizationHeader)
	if authHeader == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
		return nil
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) <= len(bearerPrefix) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_request"`)
		writeJSONError(w, http.StatusUnauthorized, "malformed bearer authorization header")
		return nil
	}
	tok := strings.TrimSpace(authHeader[len(bearerPrefix):])

	userInfo, err := h.auth.CheckAuthentication(ctx, tok)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSONError(w, http.StatusUnauthorized, "invalid bearer token")
		return nil
	}
	return userInfo
}

// instanceFromHeaders builds a request-scoped instance context from the
// multi-tenant headers, or nil when none are present. Only consulted in
// per-instance and shared modes.
func (h *Handler) instanceFromHeaders(r *http.Request) *n8n.InstanceContext {
	if h.mode == config.TenancyOff {
		return nil
	}
	rawURL := r.Header.Get(instanceURLHeader)
	rawKey := r.Header.Get(instanceKeyHeader)
	if rawURL == "" && rawKey == "" {
		return nil
	}
	clientIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	return &n8n.InstanceContext{
		BaseURL:  rawURL,
		APIKey:   rawKey,
		TenantID: r.Header.Get(instanceTenantHeader),
		Metadata: map[string]string{
			"clientIp":  clientIP,
			"userAgent": r.UserAgent(),
		},
	}
}

func tenantOf(ictx *n8n.InstanceContext) string {
	if ictx == nil {
		return ""
	}
	return ictx.TenantID
}

// lockedWriteFlusher serializes writes/flushes on a held SSE stream and
// refuses to write after the request context is canceled.
type lockedWriteFlusher struct {
	w   io.Writer
	f   http.Flusher
	ctx context.Context
	mu  sync.Mutex
}

func (l *lockedWriteFlusher) writeComment(comment string) error {
	if l.ctx.Err() != nil {
		return l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return l.ctx.Err()
	}
	if _, err := fmt.Fprintf(l.w, ": %s\n\n", comment); err != nil {
		return err
	}
	l.f.Flush()
	return nil
}
