// ABOUTME: Typed wrapper for the detectSchedulingNeed capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import "context"

// DetectSchedulingNeedParams are the parameters for detectSchedulingNeed.
type DetectSchedulingNeedParams struct {
	ThreadID string `json:"threadId"`
	Lookback int    `json:"lookback,omitempty"`
}

// SchedulingIntent describes a detected scheduling need.
type SchedulingIntent struct {
	Participants    []string `json:"participants"`
	WindowHint      string   `json:"windowHint,omitempty"`
	SourceMessageID string   `json:"sourceMessageId"`
}

// DetectSchedulingNeedResult is the detectSchedulingNeed result shape.
// Intent is nil when no intent was found; that is still a success.
type DetectSchedulingNeedResult struct {
	Detected bool              `json:"detected"`
	Intent   *SchedulingIntent `json:"intent,omitempty"`
}

// DetectSchedulingNeed scans recent thread content for scheduling intent.
func (c *Client) DetectSchedulingNeed(ctx context.Context, params DetectSchedulingNeedParams) (*DetectSchedulingNeedResult, error) {
	var out DetectSchedulingNeedResult
	if err := c.invoke(ctx, "detectSchedulingNeed", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
