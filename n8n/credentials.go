package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Credential is a stored n8n credential. The API never returns secret
// data back, so Data is only populated on create requests.
type Credential struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

// CreateCredentialRequest is the payload for CreateCredential.
type CreateCredentialRequest struct {
	Name string          `json:"name"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CreateCredential stores a new credential on the instance.
func (c *Client) CreateCredential(ctx context.Context, req CreateCredentialRequest) (*Credential, error) {
	var out Credential
	if err := c.do(ctx, http.MethodPost, "/credentials", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCredential removes a credential by id, returning the deleted record.
func (c *Client) DeleteCredential(ctx context.Context, id string) (*Credential, error) {
	var out Credential
	if err := c.do(ctx, http.MethodDelete, "/credentials/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCredentialSchema returns the JSON schema describing the data fields a
// credential type expects.
func (c *Client) GetCredentialSchema(ctx context.Context, credentialType string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/credentials/schema/"+url.PathEscape(credentialType), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
