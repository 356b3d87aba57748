// ABOUTME: Typed wrapper for the extractActionItems capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import "context"

// ExtractActionItemsParams are the parameters for extractActionItems.
type ExtractActionItemsParams struct {
	ThreadID string `json:"threadId"`
}

// ActionItem is one extracted task record, anchored to its source message.
type ActionItem struct {
	Description     string `json:"description"`
	Assignee        string `json:"assignee,omitempty"`
	DueHint         string `json:"dueHint,omitempty"`
	SourceMessageID string `json:"sourceMessageId"`
}

// ExtractActionItemsResult is the extractActionItems result shape.
type ExtractActionItemsResult struct {
	Items []ActionItem `json:"items"`
}

// ExtractActionItems extracts structured task records from a thread.
func (c *Client) ExtractActionItems(ctx context.Context, params ExtractActionItemsParams) (*ExtractActionItemsResult, error) {
	var out ExtractActionItemsResult
	if err := c.invoke(ctx, "extractActionItems", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
