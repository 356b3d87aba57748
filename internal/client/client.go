// ABOUTME: Typed client for the concierge invoke API with its own timeout and error taxonomy.
// ABOUTME: One method per capability lives in its own file; the shared wire plumbing is here.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout is the client-side ceiling on one invocation. It is
// deliberately longer than the server's handler deadline so a server-side
// timeout surfaces as the server's taxonomy code, while a dropped connection
// surfaces as a client-local failure instead of hanging.
const DefaultTimeout = 5 * time.Second

// ErrorCode enumerates the failure codes an invocation can produce. The
// server-originated values mirror the dispatcher's taxonomy exactly; the
// contract tests guard against drift. CodeNetwork and CodeClientTimeout are
// client-local.
type ErrorCode string

const (
	CodeInvalidCapability   ErrorCode = "invalid_capability"
	CodeInvalidParameters   ErrorCode = "invalid_parameters"
	CodePermissionDenied    ErrorCode = "permission_denied"
	CodeTimeout             ErrorCode = "timeout"
	CodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	CodeInternal            ErrorCode = "internal_error"

	// CodeNetwork marks transport failures: connection refused, dropped
	// connections, malformed responses.
	CodeNetwork ErrorCode = "network"
	// CodeClientTimeout marks the client's own deadline firing before any
	// response arrived.
	CodeClientTimeout ErrorCode = "client_timeout"
)

// FieldViolation is one field-level validation failure reported by the
// server.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// CallError is the typed failure for an invocation.
type CallError struct {
	Code        ErrorCode
	Message     string
	ExecutionID string
	Details     []FieldViolation
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client invokes capabilities over HTTP.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
	timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the client-side invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a Client for the given server base URL and bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireResponse is the server's response envelope for POST /v1/invoke.
type wireResponse struct {
	Status      string           `json:"status"`
	ExecutionID string           `json:"executionId"`
	Data        json.RawMessage  `json:"data"`
	Code        ErrorCode        `json:"code"`
	Message     string           `json:"message"`
	Details     []FieldViolation `json:"details"`
}

// invoke sends one envelope and decodes the capability-specific result into
// out. All failures come back as *CallError.
func (c *Client) invoke(ctx context.Context, capabilityName string, params, out any) error {
	body, err := json.Marshal(map[string]any{
		"capability": capabilityName,
		"parameters": params,
	})
	if err != nil {
		return &CallError{Code: CodeNetwork, Message: fmt.Sprintf("encoding request: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/invoke", bytes.NewReader(body))
	if err != nil {
		return &CallError{Code: CodeNetwork, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return &CallError{Code: CodeClientTimeout, Message: "no response within the client timeout"}
		}
		return &CallError{Code: CodeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return &CallError{Code: CodeNetwork, Message: fmt.Sprintf("decoding response (status %d): %v", resp.StatusCode, err)}
	}

	if wire.Status != "ok" {
		code := wire.Code
		if code == "" {
			code = CodeNetwork
		}
		return &CallError{
			Code:        code,
			Message:     wire.Message,
			ExecutionID: wire.ExecutionID,
			Details:     wire.Details,
		}
	}

	if out != nil {
		if err := json.Unmarshal(wire.Data, out); err != nil {
			return &CallError{
				Code:        CodeNetwork,
				Message:     fmt.Sprintf("decoding result: %v", err),
				ExecutionID: wire.ExecutionID,
			}
		}
	}
	return nil
}

// CapabilityInfo is one catalogue entry from the server.
type CapabilityInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Capabilities lists the server's capability catalogue.
func (c *Client) Capabilities(ctx context.Context) ([]CapabilityInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/capabilities", nil)
	if err != nil {
		return nil, &CallError{Code: CodeNetwork, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &CallError{Code: CodeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &CallError{Code: CodeNetwork, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var body struct {
		Capabilities []CapabilityInfo `json:"capabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &CallError{Code: CodeNetwork, Message: fmt.Sprintf("decoding catalogue: %v", err)}
	}
	return body.Capabilities, nil
}
