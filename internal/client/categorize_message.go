// ABOUTME: Typed wrapper for the categorizeMessage capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import "context"

// CategorizeMessageParams are the parameters for categorizeMessage.
type CategorizeMessageParams struct {
	MessageID string `json:"messageId"`
}

// CategorizeMessageResult is the categorizeMessage result shape. Source is
// "model" or "heuristic"; the heuristic fallback is a success outcome.
type CategorizeMessageResult struct {
	Category string `json:"category"`
	Source   string `json:"source"`
}

// CategorizeMessage classifies one message into the urgency taxonomy.
func (c *Client) CategorizeMessage(ctx context.Context, params CategorizeMessageParams) (*CategorizeMessageResult, error) {
	var out CategorizeMessageResult
	if err := c.invoke(ctx, "categorizeMessage", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
