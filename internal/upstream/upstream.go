// ABOUTME: Interfaces and domain types for the external collaborators the core calls into.
// ABOUTME: Message store, membership, retrieval, generation, and calendar ports.

package upstream

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates a collaborator failed or was unreachable.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrNotFound indicates a collaborator could not find the referenced resource.
var ErrNotFound = errors.New("not found")

// Message is a single message in a conversation thread.
type Message struct {
	ID       string
	ThreadID string
	Sender   string
	Text     string
	SentAt   time.Time
}

// Match is a ranked result from the retrieval service.
type Match struct {
	MessageID string
	ThreadID  string
	Snippet   string
	Score     float64
}

// SearchFilters narrows a retrieval query. Zero value means unscoped.
type SearchFilters struct {
	ThreadID string
}

// Summary is the generation service's condensation of a thread.
type Summary struct {
	Text      string
	KeyPoints []string
}

// ExtractKind selects what the generation service extracts from a thread.
type ExtractKind string

const (
	ExtractTasks     ExtractKind = "tasks"
	ExtractDecisions ExtractKind = "decisions"
)

// ExtractedItem is a structured task or decision returned by the generation
// service. SourceIndex points at the message (by position in the text given
// to the service) the item was derived from.
type ExtractedItem struct {
	Text        string
	Attributee  string
	DueHint     string
	SourceIndex int
}

// TimeRange is a half-open [From, To) window.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Interval is a contiguous span of time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// WorkingHours is a user's declared meeting window, in UTC hours of day.
// Slots outside [StartHour, EndHour) are never suggested for the user.
type WorkingHours struct {
	StartHour int
	EndHour   int
}

// MessageStore provides read access to the message/thread storage system.
type MessageStore interface {
	FetchThread(ctx context.Context, threadID string) ([]Message, error)
	FetchMessage(ctx context.Context, messageID string) (*Message, error)
}

// Membership answers identity questions about threads and users.
type Membership interface {
	// IsMember reports whether userID participates in threadID.
	IsMember(ctx context.Context, userID, threadID string) (bool, error)
	// CanSchedule reports whether callerID holds a scheduling relationship
	// with userID. Always true when callerID == userID is the caller's own
	// concern; implementations only see distinct pairs.
	CanSchedule(ctx context.Context, callerID, userID string) (bool, error)
}

// Retrieval performs semantic similarity search over the message corpus.
type Retrieval interface {
	QuerySimilar(ctx context.Context, text string, filters SearchFilters, limit int) ([]Match, error)
}

// Generation wraps the text-generation service.
type Generation interface {
	Summarize(ctx context.Context, text string, maxPoints int) (*Summary, error)
	Extract(ctx context.Context, text string, kind ExtractKind) ([]ExtractedItem, error)
	Classify(ctx context.Context, text string) (string, error)
}

// Calendar provides free/busy data and declared meeting windows.
type Calendar interface {
	FreeBusy(ctx context.Context, userID string, r TimeRange) ([]Interval, error)
	WorkingHours(ctx context.Context, userID string) (WorkingHours, error)
}
