// ABOUTME: Typed wrapper for the searchMessages capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import "context"

// SearchMessagesParams are the parameters for searchMessages.
type SearchMessagesParams struct {
	Query    string `json:"query"`
	ThreadID string `json:"threadId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SearchMatch is one ranked search result.
type SearchMatch struct {
	MessageID string  `json:"messageId"`
	ThreadID  string  `json:"threadId"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

// SearchMessagesResult is the searchMessages result shape.
type SearchMessagesResult struct {
	Matches []SearchMatch `json:"matches"`
}

// SearchMessages runs a semantic search over the message corpus.
func (c *Client) SearchMessages(ctx context.Context, params SearchMessagesParams) (*SearchMessagesResult, error) {
	var out SearchMessagesResult
	if err := c.invoke(ctx, "searchMessages", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
