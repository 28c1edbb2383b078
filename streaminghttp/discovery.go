package streaminghttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/n8n-mcp/n8n-mcp-go/mcp"
)

// Discovery endpoints are unauthenticated, read-only, and never touch the
// session registry's hot path beyond a metrics snapshot.

type serverInfoDoc struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	ProtocolVersion string            `json:"protocolVersion"`
	Transport       string            `json:"transport"`
	Mode            string            `json:"mode"`
	Endpoints       map[string]string `json:"endpoints"`
}

func (h *Handler) serverInfo() serverInfoDoc {
	info := h.svc.Info()
	return serverInfoDoc{
		Name:            info.Name,
		Version:         info.Version,
		ProtocolVersion: mcp.LatestProtocolVersion,
		Transport:       "streamable-http",
		Mode:            string(h.mode),
		Endpoints: map[string]string{
			"mcp":     "/mcp",
			"health":  "/health",
			"info":    "/info",
			"tools":   "/tools",
			"metrics": "/metrics",
		},
	}
}

func (h *Handler) writeServerInfo(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, h.serverInfo())
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeServerInfo(w)
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.writeServerInfo(w)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// handleTools lists tool names and descriptions without schemas. The full
// descriptors remain behind the authenticated tools/list RPC.
func (h *Handler) handleTools(w http.ResponseWriter, r *http.Request) {
	type toolSummary struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	snapshot := h.svc.Tools().Snapshot()
	tools := make([]toolSummary, 0, len(snapshot))
	for _, t := range snapshot {
		tools = append(tools, toolSummary{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(tools),
		"tools": tools,
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":      h.reg.Metrics(),
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
