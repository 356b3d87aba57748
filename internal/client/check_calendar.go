// ABOUTME: Typed wrapper for the checkCalendar capability.
// ABOUTME: Mirrors the server-side parameter and result shapes exactly.

package client

import (
	"context"
	"time"
)

// CheckCalendarParams are the parameters for checkCalendar. From and To are
// RFC3339 timestamps.
type CheckCalendarParams struct {
	UserID string `json:"userId"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// CalendarInterval is one busy or free span.
type CalendarInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CheckCalendarResult is the checkCalendar result shape.
type CheckCalendarResult struct {
	Busy []CalendarInterval `json:"busy"`
	Free []CalendarInterval `json:"free"`
}

// CheckCalendar fetches free/busy data for a user over a date range.
func (c *Client) CheckCalendar(ctx context.Context, params CheckCalendarParams) (*CheckCalendarResult, error) {
	var out CheckCalendarResult
	if err := c.invoke(ctx, "checkCalendar", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
