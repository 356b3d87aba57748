// ABOUTME: Typed wrapper for the trackDecisions capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import "context"

// TrackDecisionsParams are the parameters for trackDecisions.
type TrackDecisionsParams struct {
	ThreadID string `json:"threadId"`
}

// DecisionRecord is one extracted decision, anchored to its source message.
type DecisionRecord struct {
	Statement       string `json:"statement"`
	DecidedBy       string `json:"decidedBy,omitempty"`
	SourceMessageID string `json:"sourceMessageId"`
}

// TrackDecisionsResult is the trackDecisions result shape.
type TrackDecisionsResult struct {
	Decisions []DecisionRecord `json:"decisions"`
}

// TrackDecisions extracts structured decision records from a thread.
func (c *Client) TrackDecisions(ctx context.Context, params TrackDecisionsParams) (*TrackDecisionsResult, error) {
	var out TrackDecisionsResult
	if err := c.invoke(ctx, "trackDecisions", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
