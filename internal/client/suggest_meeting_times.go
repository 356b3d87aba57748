// ABOUTME: Typed wrapper for the suggestMeetingTimes capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import (
	"context"
	"time"
)

// SuggestMeetingTimesParams are the parameters for suggestMeetingTimes.
type SuggestMeetingTimesParams struct {
	ParticipantIDs  []string `json:"participantIds"`
	DurationMinutes int      `json:"durationMinutes"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	MaxSuggestions  int      `json:"maxSuggestions,omitempty"`
}

// MeetingSlot is one ranked candidate meeting time.
type MeetingSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score float64   `json:"score"`
}

// SuggestMeetingTimesResult is the suggestMeetingTimes result shape. An
// empty slot list means no time satisfied the constraints; it is not an
// error.
type SuggestMeetingTimesResult struct {
	Slots []MeetingSlot `json:"slots"`
}

// SuggestMeetingTimes proposes ranked slots where every participant is free.
func (c *Client) SuggestMeetingTimes(ctx context.Context, params SuggestMeetingTimesParams) (*SuggestMeetingTimesResult, error) {
	var out SuggestMeetingTimesResult
	if err := c.invoke(ctx, "suggestMeetingTimes", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
