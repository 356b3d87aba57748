// ABOUTME: Tests for the scheduling capability handlers and the interval math underneath them.
// ABOUTME: Covers intent detection, free/busy inversion, intersection, working hours, and slot ranking.

package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/upstream"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func iv(t *testing.T, start, end string) upstream.Interval {
	t.Helper()
	return upstream.Interval{Start: mustTime(t, start), End: mustTime(t, end)}
}

func TestDetectSchedulingNeed_FindsIntentAndWindowHint(t *testing.T) {
	store := &fakeStore{threads: map[string][]upstream.Message{
		"t1": {
			{ID: "m0", Sender: "alice", Text: "the report is ready"},
			{ID: "m1", Sender: "bob", Text: "let's meet next week to go over it"},
			{ID: "m2", Sender: "alice", Text: "sounds good"},
		},
	}}
	h := newTestHandlers(store, nil, nil, nil)

	raw, err := h.DetectSchedulingNeed(context.Background(), "alice", json.RawMessage(`{"threadId":"t1","lookback":25}`))
	require.NoError(t, err)

	var out detectSchedulingNeedOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.True(t, out.Detected)
	require.NotNil(t, out.Intent)
	assert.Equal(t, "m1", out.Intent.SourceMessageID)
	assert.Equal(t, "next week", out.Intent.WindowHint)
	assert.Equal(t, []string{"alice", "bob"}, out.Intent.Participants)
}

func TestDetectSchedulingNeed_NewestIntentWins(t *testing.T) {
	store := &fakeStore{threads: map[string][]upstream.Message{
		"t1": {
			{ID: "m0", Sender: "alice", Text: "let's meet monday"},
			{ID: "m1", Sender: "bob", Text: "actually, find a time on friday instead"},
		},
	}}
	h := newTestHandlers(store, nil, nil, nil)

	raw, err := h.DetectSchedulingNeed(context.Background(), "alice", json.RawMessage(`{"threadId":"t1","lookback":25}`))
	require.NoError(t, err)

	var out detectSchedulingNeedOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.True(t, out.Detected)
	assert.Equal(t, "m1", out.Intent.SourceMessageID)
	assert.Equal(t, "friday", out.Intent.WindowHint)
}

func TestDetectSchedulingNeed_NoIntentIsSuccess(t *testing.T) {
	store := &fakeStore{threads: map[string][]upstream.Message{
		"t1": msgs("the build is green", "shipping tomorrow's release notes"),
	}}
	h := newTestHandlers(store, nil, nil, nil)

	raw, err := h.DetectSchedulingNeed(context.Background(), "alice", json.RawMessage(`{"threadId":"t1","lookback":25}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"detected":false}`, string(raw))
}

func TestDetectSchedulingNeed_LookbackBoundsScan(t *testing.T) {
	store := &fakeStore{threads: map[string][]upstream.Message{
		"t1": {
			{ID: "m0", Sender: "alice", Text: "let's meet sometime"},
			{ID: "m1", Sender: "bob", Text: "noted"},
			{ID: "m2", Sender: "alice", Text: "ok"},
		},
	}}
	h := newTestHandlers(store, nil, nil, nil)

	// Only the last two messages are in scope; the intent in m0 is too old.
	raw, err := h.DetectSchedulingNeed(context.Background(), "alice", json.RawMessage(`{"threadId":"t1","lookback":2}`))
	require.NoError(t, err)

	var out detectSchedulingNeedOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.False(t, out.Detected)
}

func TestCheckCalendar_MergesBusyAndInvertsFree(t *testing.T) {
	cal := &fakeCalendar{busy: map[string][]upstream.Interval{
		"alice": {
			iv(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			iv(t, "2026-09-01T10:30:00Z", "2026-09-01T12:00:00Z"),
		},
	}}
	h := newTestHandlers(nil, nil, nil, cal)

	raw, err := h.CheckCalendar(context.Background(), "alice", json.RawMessage(
		`{"userId":"alice","from":"2026-09-01T09:00:00Z","to":"2026-09-01T13:00:00Z"}`))
	require.NoError(t, err)

	var out checkCalendarOutput
	require.NoError(t, json.Unmarshal(raw, &out))

	require.Len(t, out.Busy, 1, "overlapping busy blocks are merged")
	assert.True(t, out.Busy[0].Start.Equal(mustTime(t, "2026-09-01T10:00:00Z")))
	assert.True(t, out.Busy[0].End.Equal(mustTime(t, "2026-09-01T12:00:00Z")))

	require.Len(t, out.Free, 2)
	assert.True(t, out.Free[0].Start.Equal(mustTime(t, "2026-09-01T09:00:00Z")))
	assert.True(t, out.Free[0].End.Equal(mustTime(t, "2026-09-01T10:00:00Z")))
	assert.True(t, out.Free[1].Start.Equal(mustTime(t, "2026-09-01T12:00:00Z")))
	assert.True(t, out.Free[1].End.Equal(mustTime(t, "2026-09-01T13:00:00Z")))
}

func TestCheckCalendar_InvalidRange(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, &fakeCalendar{})

	_, err := h.CheckCalendar(context.Background(), "alice", json.RawMessage(
		`{"userId":"alice","from":"2026-09-01T13:00:00Z","to":"2026-09-01T09:00:00Z"}`))
	assert.ErrorIs(t, err, capability.ErrInvalidInput)

	_, err = h.CheckCalendar(context.Background(), "alice", json.RawMessage(
		`{"userId":"alice","from":"not a timestamp","to":"2026-09-01T09:00:00Z"}`))
	assert.ErrorIs(t, err, capability.ErrInvalidInput)
}

func TestCheckCalendar_CalendarDown(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, &fakeCalendar{err: upstream.ErrUnavailable})

	_, err := h.CheckCalendar(context.Background(), "alice", json.RawMessage(
		`{"userId":"alice","from":"2026-09-01T09:00:00Z","to":"2026-09-01T13:00:00Z"}`))
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}

func TestSuggestMeetingTimes_IntersectsParticipants(t *testing.T) {
	cal := &fakeCalendar{
		busy: map[string][]upstream.Interval{
			"alice": {iv(t, "2026-09-01T09:00:00Z", "2026-09-01T10:00:00Z")},
			"bob":   {iv(t, "2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z")},
		},
		hours: map[string]upstream.WorkingHours{},
	}
	h := newTestHandlers(nil, nil, nil, cal)

	raw, err := h.SuggestMeetingTimes(context.Background(), "alice", json.RawMessage(
		`{"participantIds":["alice","bob"],"durationMinutes":60,"from":"2026-09-01T09:00:00Z","to":"2026-09-01T12:00:00Z","maxSuggestions":3}`))
	require.NoError(t, err)

	var out suggestMeetingTimesOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	// The only hour free for both is 10:00-11:00.
	require.Len(t, out.Slots, 1)
	assert.True(t, out.Slots[0].Start.Equal(mustTime(t, "2026-09-01T10:00:00Z")))
	assert.True(t, out.Slots[0].End.Equal(mustTime(t, "2026-09-01T11:00:00Z")))
}

func TestSuggestMeetingTimes_NoCommonSlotIsEmptySuccess(t *testing.T) {
	cal := &fakeCalendar{
		busy: map[string][]upstream.Interval{
			"alice": {iv(t, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z")},
			"bob":   nil,
		},
		hours: map[string]upstream.WorkingHours{},
	}
	h := newTestHandlers(nil, nil, nil, cal)

	raw, err := h.SuggestMeetingTimes(context.Background(), "alice", json.RawMessage(
		`{"participantIds":["alice","bob"],"durationMinutes":60,"from":"2026-09-01T09:00:00Z","to":"2026-09-01T12:00:00Z","maxSuggestions":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"slots":[]}`, string(raw))
}

func TestSuggestMeetingTimes_RespectsWorkingHours(t *testing.T) {
	cal := &fakeCalendar{
		busy: map[string][]upstream.Interval{"alice": nil},
		hours: map[string]upstream.WorkingHours{
			"alice": {StartHour: 9, EndHour: 17},
		},
	}
	h := newTestHandlers(nil, nil, nil, cal)

	raw, err := h.SuggestMeetingTimes(context.Background(), "alice", json.RawMessage(
		`{"participantIds":["alice"],"durationMinutes":60,"from":"2026-09-01T06:00:00Z","to":"2026-09-01T10:00:00Z","maxSuggestions":5}`))
	require.NoError(t, err)

	var out suggestMeetingTimesOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.Slots)
	for _, slot := range out.Slots {
		assert.GreaterOrEqual(t, slot.Start.UTC().Hour(), 9, "slots must not start before working hours")
	}
}

func TestSuggestMeetingTimes_LimitAndOrdering(t *testing.T) {
	cal := &fakeCalendar{
		busy:  map[string][]upstream.Interval{"alice": nil},
		hours: map[string]upstream.WorkingHours{},
	}
	h := newTestHandlers(nil, nil, nil, cal)

	raw, err := h.SuggestMeetingTimes(context.Background(), "alice", json.RawMessage(
		`{"participantIds":["alice"],"durationMinutes":30,"from":"2026-09-01T09:00:00Z","to":"2026-09-01T17:00:00Z","maxSuggestions":2}`))
	require.NoError(t, err)

	var out suggestMeetingTimesOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Slots, 2)
	assert.GreaterOrEqual(t, out.Slots[0].Score, out.Slots[1].Score)
}

func TestMergeIntervals(t *testing.T) {
	merged := mergeIntervals([]upstream.Interval{
		iv(t, "2026-09-01T12:00:00Z", "2026-09-01T13:00:00Z"),
		iv(t, "2026-09-01T09:00:00Z", "2026-09-01T10:00:00Z"),
		iv(t, "2026-09-01T09:30:00Z", "2026-09-01T11:00:00Z"),
	})
	require.Len(t, merged, 2)
	assert.True(t, merged[0].Start.Equal(mustTime(t, "2026-09-01T09:00:00Z")))
	assert.True(t, merged[0].End.Equal(mustTime(t, "2026-09-01T11:00:00Z")))
	assert.True(t, merged[1].Start.Equal(mustTime(t, "2026-09-01T12:00:00Z")))
}

func TestIntersectIntervals(t *testing.T) {
	a := []upstream.Interval{iv(t, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z")}
	b := []upstream.Interval{
		iv(t, "2026-09-01T08:00:00Z", "2026-09-01T10:00:00Z"),
		iv(t, "2026-09-01T11:00:00Z", "2026-09-01T14:00:00Z"),
	}

	out := intersectIntervals(a, b)
	require.Len(t, out, 2)
	assert.True(t, out[0].Start.Equal(mustTime(t, "2026-09-01T09:00:00Z")))
	assert.True(t, out[0].End.Equal(mustTime(t, "2026-09-01T10:00:00Z")))
	assert.True(t, out[1].Start.Equal(mustTime(t, "2026-09-01T11:00:00Z")))
	assert.True(t, out[1].End.Equal(mustTime(t, "2026-09-01T12:00:00Z")))

	assert.Empty(t, intersectIntervals(a, nil))
}

func TestInvertIntervals(t *testing.T) {
	r := upstream.TimeRange{From: mustTime(t, "2026-09-01T09:00:00Z"), To: mustTime(t, "2026-09-01T17:00:00Z")}

	free := invertIntervals(nil, r)
	require.Len(t, free, 1, "no busy time means the whole range is free")
	assert.True(t, free[0].Start.Equal(r.From))
	assert.True(t, free[0].End.Equal(r.To))

	free = invertIntervals([]upstream.Interval{iv(t, "2026-09-01T09:00:00Z", "2026-09-01T17:00:00Z")}, r)
	assert.Empty(t, free, "fully busy means no free time")
}
