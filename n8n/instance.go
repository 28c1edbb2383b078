package n8n

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// InstanceContext identifies the upstream n8n instance a session (or a
// single request, in shared tenancy) operates against. It is an immutable
// value: the session registry replaces it wholesale, never field by field.
type InstanceContext struct {
	// BaseURL is the n8n instance URL, e.g. "https://n8n.example.com".
	BaseURL string
	// APIKey authenticates against the n8n public API.
	APIKey string
	// TenantID optionally names the owning tenant.
	TenantID string
	// Metadata carries request provenance (client IP, user agent). It is
	// informational only and excluded from equality and hashing.
	Metadata map[string]string
}

// ErrInvalidInstance wraps every Validate failure so callers can classify
// bad instance configuration without string matching.
var ErrInvalidInstance = errors.New("invalid instance context")

// Validate checks that the context can produce a working client.
func (ic *InstanceContext) Validate() error {
	if ic == nil {
		return fmt.Errorf("%w: instance context is nil", ErrInvalidInstance)
	}
	u, err := url.Parse(ic.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid n8n URL %q: %v", ErrInvalidInstance, ic.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: n8n URL must use http or https, got %q", ErrInvalidInstance, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: n8n URL %q has no host", ErrInvalidInstance, ic.BaseURL)
	}
	if ic.APIKey == "" {
		return fmt.Errorf("%w: n8n API key is required", ErrInvalidInstance)
	}
	return nil
}

// Equal reports structural equality on the identifying fields. Metadata is
// provenance, not identity, so it does not participate.
func (ic *InstanceContext) Equal(other *InstanceContext) bool {
	if ic == nil || other == nil {
		return ic == other
	}
	return ic.BaseURL == other.BaseURL &&
		ic.APIKey == other.APIKey &&
		ic.TenantID == other.TenantID
}

// ConfigHash returns a short stable hash of the identifying fields. It is
// embedded in per-instance session identifiers so two different upstream
// configurations can never share a session id prefix.
func (ic *InstanceContext) ConfigHash() string {
	d := xxhash.New()
	_, _ = d.WriteString(ic.BaseURL)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(ic.APIKey)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(ic.TenantID)
	return strconv.FormatUint(d.Sum64(), 16)
}
