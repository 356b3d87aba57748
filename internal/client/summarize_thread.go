// ABOUTME: Typed wrapper for the summarizeThread capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import "context"

// SummarizeThreadParams are the parameters for summarizeThread.
type SummarizeThreadParams struct {
	ThreadID  string `json:"threadId"`
	MaxPoints int    `json:"maxPoints,omitempty"`
}

// SummarizeThreadResult is the summarizeThread result shape.
type SummarizeThreadResult struct {
	Summary      string   `json:"summary"`
	KeyPoints    []string `json:"keyPoints"`
	Participants []string `json:"participants"`
}

// SummarizeThread condenses a thread into a summary with key points.
func (c *Client) SummarizeThread(ctx context.Context, params SummarizeThreadParams) (*SummarizeThreadResult, error) {
	var out SummarizeThreadResult
	if err := c.invoke(ctx, "summarizeThread", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
