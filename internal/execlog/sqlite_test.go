// ABOUTME: Tests for the SQLite execution log sink: append, filtered listing, purge.
// ABOUTME: Each test opens a fresh database under t.TempDir().

package execlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "execlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func appendEntry(t *testing.T, sink *SQLiteSink, e *Entry) {
	t.Helper()
	require.NoError(t, sink.Append(context.Background(), e))
}

func TestSQLiteSink_AppendAndList(t *testing.T) {
	sink := newTestSink(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendEntry(t, sink, &Entry{
		ExecutionID:      "exec-1",
		Capability:       "searchMessages",
		CallerID:         "alice",
		ParametersDigest: "abc123",
		StartedAt:        base,
		DurationMs:       42,
		Outcome:          OutcomeOK,
	})
	appendEntry(t, sink, &Entry{
		ExecutionID: "exec-2",
		Capability:  "checkCalendar",
		CallerID:    "bob",
		StartedAt:   base.Add(time.Minute),
		DurationMs:  7,
		Outcome:     OutcomeError,
		ErrorCode:   "permission_denied",
	})

	entries, err := sink.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "exec-2", entries[0].ExecutionID)
	assert.Equal(t, "permission_denied", entries[0].ErrorCode)
	assert.Equal(t, "exec-1", entries[1].ExecutionID)
	assert.Empty(t, entries[1].ErrorCode)
	assert.Equal(t, "abc123", entries[1].ParametersDigest)
	assert.True(t, entries[1].StartedAt.Equal(base))
}

func TestSQLiteSink_ListFilters(t *testing.T) {
	sink := newTestSink(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, e := range []*Entry{
		{ExecutionID: "a1", Capability: "searchMessages", CallerID: "alice", Outcome: OutcomeOK},
		{ExecutionID: "a2", Capability: "summarizeThread", CallerID: "alice", Outcome: OutcomeOK},
		{ExecutionID: "b1", Capability: "searchMessages", CallerID: "bob", Outcome: OutcomeOK},
	} {
		e.StartedAt = base.Add(time.Duration(i) * time.Minute)
		appendEntry(t, sink, e)
	}

	byCaller, err := sink.List(context.Background(), Filter{CallerID: "alice"})
	require.NoError(t, err)
	assert.Len(t, byCaller, 2)

	byCap, err := sink.List(context.Background(), Filter{Capability: "searchMessages"})
	require.NoError(t, err)
	assert.Len(t, byCap, 2)

	since, err := sink.List(context.Background(), Filter{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := sink.List(context.Background(), Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b1", limited[0].ExecutionID)
}

func TestSQLiteSink_DuplicateExecutionIDRejected(t *testing.T) {
	sink := newTestSink(t)
	e := &Entry{ExecutionID: "exec-1", Capability: "searchMessages", CallerID: "alice", StartedAt: time.Now().UTC(), Outcome: OutcomeOK}

	appendEntry(t, sink, e)
	assert.Error(t, sink.Append(context.Background(), e), "the log is append-only and keyed by execution ID")
}

func TestSQLiteSink_PurgeBefore(t *testing.T) {
	sink := newTestSink(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendEntry(t, sink, &Entry{ExecutionID: "old", Capability: "searchMessages", CallerID: "alice", StartedAt: base, Outcome: OutcomeOK})
	appendEntry(t, sink, &Entry{ExecutionID: "new", Capability: "searchMessages", CallerID: "alice", StartedAt: base.Add(time.Hour), Outcome: OutcomeOK})

	purged, err := sink.PurgeBefore(context.Background(), base.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	remaining, err := sink.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].ExecutionID)
}
