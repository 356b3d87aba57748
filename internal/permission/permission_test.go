// ABOUTME: Tests for the permission checker: membership, scheduling relationships, fail-closed behavior.
// ABOUTME: Uses an in-memory membership fake with controllable failures.

package permission

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/concierge/internal/capability"
)

type fakeMembership struct {
	members   map[string]bool // "user|thread"
	schedules map[string]bool // "caller|user"
	err       error
	calls     int
}

func (f *fakeMembership) IsMember(ctx context.Context, userID, threadID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.members[userID+"|"+threadID], nil
}

func (f *fakeMembership) CanSchedule(ctx context.Context, callerID, userID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.schedules[callerID+"|"+userID], nil
}

func noopHandler(ctx context.Context, callerID string, params json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func threadSchema() *capability.Schema {
	return &capability.Schema{
		Name:          "threadScoped",
		Handler:       noopHandler,
		Params:        []capability.FieldSpec{{Name: "threadId", Type: capability.TypeString}},
		ThreadIDParam: "threadId",
	}
}

func calendarSchema() *capability.Schema {
	return &capability.Schema{
		Name:         "calendarScoped",
		Handler:      noopHandler,
		Params:       []capability.FieldSpec{{Name: "userId", Type: capability.TypeString, Required: true}},
		UserRefParam: "userId",
	}
}

func participantsSchema() *capability.Schema {
	return &capability.Schema{
		Name:              "participantScoped",
		Handler:           noopHandler,
		Params:            []capability.FieldSpec{{Name: "participantIds", Type: capability.TypeArray, Required: true}},
		ParticipantsParam: "participantIds",
	}
}

func TestCheck_ThreadMemberAllowed(t *testing.T) {
	fake := &fakeMembership{members: map[string]bool{"alice|t1": true}}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", threadSchema(), map[string]any{"threadId": "t1"})
	assert.True(t, d.Allowed)
}

func TestCheck_NonMemberDenied(t *testing.T) {
	fake := &fakeMembership{members: map[string]bool{}}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "mallory", threadSchema(), map[string]any{"threadId": "t1"})
	require.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "not a member")
}

func TestCheck_CollaboratorErrorFailsClosed(t *testing.T) {
	fake := &fakeMembership{err: errors.New("membership service down")}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", threadSchema(), map[string]any{"threadId": "t1"})
	require.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "could not be verified")
}

func TestCheck_OptionalThreadScopeAbsentIsAllowed(t *testing.T) {
	fake := &fakeMembership{}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", threadSchema(), map[string]any{})
	assert.True(t, d.Allowed)
	assert.Zero(t, fake.calls, "no collaborator call for unscoped invocation")
}

func TestCheck_MalformedThreadReferenceDenied(t *testing.T) {
	fake := &fakeMembership{}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", threadSchema(), map[string]any{"threadId": 42})
	assert.False(t, d.Allowed)
}

func TestCheck_OwnCalendarAllowedWithoutLookup(t *testing.T) {
	fake := &fakeMembership{}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", calendarSchema(), map[string]any{"userId": "alice"})
	assert.True(t, d.Allowed)
	assert.Zero(t, fake.calls)
}

func TestCheck_OtherCalendarWithoutRelationshipDenied(t *testing.T) {
	fake := &fakeMembership{schedules: map[string]bool{}}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", calendarSchema(), map[string]any{"userId": "bob"})
	require.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "scheduling relationship")
}

func TestCheck_OtherCalendarWithRelationshipAllowed(t *testing.T) {
	fake := &fakeMembership{schedules: map[string]bool{"alice|bob": true}}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", calendarSchema(), map[string]any{"userId": "bob"})
	assert.True(t, d.Allowed)
}

func TestCheck_ParticipantsEachChecked(t *testing.T) {
	fake := &fakeMembership{schedules: map[string]bool{"alice|bob": true}}
	checker := NewChecker(fake, slog.Default())

	// carol has no relationship; the whole call is denied.
	d := checker.Check(context.Background(), "alice", participantsSchema(), map[string]any{
		"participantIds": []any{"alice", "bob", "carol"},
	})
	require.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "carol")
}

func TestCheck_ParticipantsAllPermitted(t *testing.T) {
	fake := &fakeMembership{schedules: map[string]bool{"alice|bob": true, "alice|carol": true}}
	checker := NewChecker(fake, slog.Default())

	d := checker.Check(context.Background(), "alice", participantsSchema(), map[string]any{
		"participantIds": []any{"alice", "bob", "carol"},
	})
	assert.True(t, d.Allowed)
}

func TestCheck_MissingCallerDenied(t *testing.T) {
	checker := NewChecker(&fakeMembership{}, slog.Default())

	d := checker.Check(context.Background(), "", threadSchema(), map[string]any{})
	assert.False(t, d.Allowed)
}
