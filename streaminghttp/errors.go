package streaminghttp

import (
	"errors"
	"fmt"

	"github.com/n8n-mcp/n8n-mcp-go/auth"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
	"github.com/n8n-mcp/n8n-mcp-go/sessions"
)

// sanitize maps an internal error to a client-safe message. Known
// categories keep a useful message; everything else collapses to a
// generic one so connection strings, file paths, and upstream responses
// never leak. Development mode appends the underlying detail.
func (h *Handler) sanitize(err error) string {
	if err == nil {
		return ""
	}

	msg := "internal server error"
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		msg = "authentication failed"
	case errors.Is(err, sessions.ErrSessionNotFound):
		msg = "session not found"
	case errors.Is(err, sessions.ErrCapacity):
		msg = "session capacity reached"
	case errors.Is(err, n8n.ErrInvalidInstance):
		msg = err.Error()
	}

	if h.devMode {
		return fmt.Sprintf("%s: %v", msg, err)
	}
	return msg
}
