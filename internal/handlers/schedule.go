// ABOUTME: Handlers for the scheduling capabilities: intent detection, calendar lookup, slot suggestion.
// ABOUTME: Interval math for free/busy intersection and working-hours filtering lives here.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/upstream"
)

// slotStep is the granularity at which candidate meeting slots are laid out.
const slotStep = 30 * time.Minute

type detectSchedulingNeedInput struct {
	ThreadID string `json:"threadId"`
	Lookback int    `json:"lookback"`
}

type schedulingIntent struct {
	Participants    []string `json:"participants"`
	WindowHint      string   `json:"windowHint,omitempty"`
	SourceMessageID string   `json:"sourceMessageId"`
}

type detectSchedulingNeedOutput struct {
	Detected bool              `json:"detected"`
	Intent   *schedulingIntent `json:"intent,omitempty"`
}

var intentKeywords = []string{
	"let's meet", "lets meet", "schedule", "set up a call", "set up a meeting",
	"catch up", "sync up", "when are you free", "your availability",
	"find a time", "book a meeting", "hop on a call",
}

var windowHints = []string{
	"today", "tomorrow", "this week", "next week", "this afternoon",
	"monday", "tuesday", "wednesday", "thursday", "friday",
}

// DetectSchedulingNeed scans recent thread content for scheduling intent.
// No intent found is a success outcome with detected=false.
func (h *Handlers) DetectSchedulingNeed(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in detectSchedulingNeedInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	messages, err := h.messages.FetchThread(ctx, in.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", in.ThreadID, err)
	}

	recent := messages
	if in.Lookback > 0 && len(messages) > in.Lookback {
		recent = messages[len(messages)-in.Lookback:]
	}

	// Newest first: the latest expression of intent wins.
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		lower := strings.ToLower(m.Text)
		if !containsAny(lower, intentKeywords) {
			continue
		}
		intent := &schedulingIntent{
			Participants:    participants(recent),
			SourceMessageID: m.ID,
		}
		for _, hint := range windowHints {
			if strings.Contains(lower, hint) {
				intent.WindowHint = hint
				break
			}
		}
		return json.Marshal(detectSchedulingNeedOutput{Detected: true, Intent: intent})
	}

	return json.Marshal(detectSchedulingNeedOutput{Detected: false})
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

type checkCalendarInput struct {
	UserID string `json:"userId"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type wireInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type checkCalendarOutput struct {
	Busy []wireInterval `json:"busy"`
	Free []wireInterval `json:"free"`
}

// CheckCalendar fetches a user's free/busy data for a date range. The
// permission layer has already established the caller may see this calendar.
func (h *Handlers) CheckCalendar(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in checkCalendarInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	r, err := parseRange(in.From, in.To)
	if err != nil {
		return nil, err
	}

	busy, err := h.calendar.FreeBusy(ctx, in.UserID, r)
	if err != nil {
		return nil, fmt.Errorf("calendar for %s: %w", in.UserID, err)
	}

	merged := mergeIntervals(clampIntervals(busy, r))
	free := invertIntervals(merged, r)

	return json.Marshal(checkCalendarOutput{
		Busy: toWire(merged),
		Free: toWire(free),
	})
}

type suggestMeetingTimesInput struct {
	ParticipantIDs  []string `json:"participantIds"`
	DurationMinutes int      `json:"durationMinutes"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	MaxSuggestions  int      `json:"maxSuggestions"`
}

type meetingSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score float64   `json:"score"`
}

type suggestMeetingTimesOutput struct {
	Slots []meetingSlot `json:"slots"`
}

// SuggestMeetingTimes intersects every participant's free time, drops spans
// outside any participant's declared meeting hours, and returns up to
// maxSuggestions ranked slots. No satisfying slot yields an empty list, not
// an error.
func (h *Handlers) SuggestMeetingTimes(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in suggestMeetingTimesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	r, err := parseRange(in.From, in.To)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(in.DurationMinutes) * time.Minute

	common := []upstream.Interval{{Start: r.From, End: r.To}}
	for _, userID := range in.ParticipantIDs {
		busy, err := h.calendar.FreeBusy(ctx, userID, r)
		if err != nil {
			return nil, fmt.Errorf("calendar for %s: %w", userID, err)
		}
		free := invertIntervals(mergeIntervals(clampIntervals(busy, r)), r)

		hours, err := h.calendar.WorkingHours(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("working hours for %s: %w", userID, err)
		}
		free = restrictToWorkingHours(free, hours)

		common = intersectIntervals(common, free)
		if len(common) == 0 {
			break
		}
	}

	slots := rankSlots(common, duration, r, in.MaxSuggestions)
	return json.Marshal(suggestMeetingTimesOutput{Slots: slots})
}

// parseRange validates the from/to pair beyond what the field-level schema
// can express.
func parseRange(from, to string) (upstream.TimeRange, error) {
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return upstream.TimeRange{}, fmt.Errorf("%w: from: %v", capability.ErrInvalidInput, err)
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return upstream.TimeRange{}, fmt.Errorf("%w: to: %v", capability.ErrInvalidInput, err)
	}
	if !end.After(start) {
		return upstream.TimeRange{}, fmt.Errorf("%w: to must be after from", capability.ErrInvalidInput)
	}
	return upstream.TimeRange{From: start.UTC(), To: end.UTC()}, nil
}

// clampIntervals trims intervals to the range and drops those outside it.
func clampIntervals(intervals []upstream.Interval, r upstream.TimeRange) []upstream.Interval {
	out := make([]upstream.Interval, 0, len(intervals))
	for _, iv := range intervals {
		start, end := iv.Start, iv.End
		if start.Before(r.From) {
			start = r.From
		}
		if end.After(r.To) {
			end = r.To
		}
		if end.After(start) {
			out = append(out, upstream.Interval{Start: start, End: end})
		}
	}
	return out
}

// mergeIntervals sorts and coalesces overlapping or adjacent intervals.
func mergeIntervals(intervals []upstream.Interval) []upstream.Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]upstream.Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []upstream.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// invertIntervals returns the gaps between merged busy intervals within the
// range: the free time.
func invertIntervals(busy []upstream.Interval, r upstream.TimeRange) []upstream.Interval {
	free := []upstream.Interval{}
	cursor := r.From
	for _, iv := range busy {
		if iv.Start.After(cursor) {
			free = append(free, upstream.Interval{Start: cursor, End: iv.Start})
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if r.To.After(cursor) {
		free = append(free, upstream.Interval{Start: cursor, End: r.To})
	}
	return free
}

// intersectIntervals returns the pairwise overlap of two merged interval sets.
func intersectIntervals(a, b []upstream.Interval) []upstream.Interval {
	var out []upstream.Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := a[i].Start
		if b[j].Start.After(start) {
			start = b[j].Start
		}
		end := a[i].End
		if b[j].End.Before(end) {
			end = b[j].End
		}
		if end.After(start) {
			out = append(out, upstream.Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// restrictToWorkingHours chops each interval down to the user's declared
// daily meeting window (UTC hours).
func restrictToWorkingHours(intervals []upstream.Interval, hours upstream.WorkingHours) []upstream.Interval {
	if hours.StartHour == 0 && hours.EndHour == 0 {
		// No declared window means no restriction.
		return intervals
	}
	var out []upstream.Interval
	for _, iv := range intervals {
		day := time.Date(iv.Start.Year(), iv.Start.Month(), iv.Start.Day(), 0, 0, 0, 0, time.UTC)
		for !day.After(iv.End) {
			winStart := day.Add(time.Duration(hours.StartHour) * time.Hour)
			winEnd := day.Add(time.Duration(hours.EndHour) * time.Hour)
			start, end := iv.Start, iv.End
			if start.Before(winStart) {
				start = winStart
			}
			if end.After(winEnd) {
				end = winEnd
			}
			if end.After(start) {
				out = append(out, upstream.Interval{Start: start, End: end})
			}
			day = day.AddDate(0, 0, 1)
		}
	}
	return mergeIntervals(out)
}

// rankSlots lays candidate slots across the common free time at slotStep
// granularity and scores them: earlier is better, with a mild preference for
// late-morning starts.
func rankSlots(free []upstream.Interval, duration time.Duration, r upstream.TimeRange, limit int) []meetingSlot {
	if duration <= 0 || limit <= 0 {
		return []meetingSlot{}
	}
	span := r.To.Sub(r.From)

	candidates := []meetingSlot{}
	for _, iv := range free {
		for start := iv.Start.Truncate(slotStep); ; start = start.Add(slotStep) {
			if start.Before(iv.Start) {
				continue
			}
			end := start.Add(duration)
			if end.After(iv.End) {
				break
			}
			earliness := 1.0 - float64(start.Sub(r.From))/float64(span)
			midMorning := 0.0
			if hr := start.UTC().Hour(); hr >= 9 && hr < 12 {
				midMorning = 0.2
			}
			candidates = append(candidates, meetingSlot{
				Start: start,
				End:   end,
				Score: earliness + midMorning,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func toWire(intervals []upstream.Interval) []wireInterval {
	out := make([]wireInterval, len(intervals))
	for i, iv := range intervals {
		out[i] = wireInterval{Start: iv.Start, End: iv.End}
	}
	return out
}
