// ABOUTME: Static declaration of the 8-capability catalogue and its handler bindings.
// ABOUTME: This is the single canonical source for names, parameter specs, and permission hints.

package handlers

import (
	"log/slog"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/upstream"
)

// idPattern constrains thread/message/user identifiers.
const idPattern = `^[A-Za-z0-9_.:-]{1,64}$`

// Handlers owns the capability implementations and the collaborator ports
// they call into. It holds no mutable state; every method is safe for
// concurrent use.
type Handlers struct {
	messages   upstream.MessageStore
	retrieval  upstream.Retrieval
	generation upstream.Generation
	calendar   upstream.Calendar
	logger     *slog.Logger
}

// Deps are the collaborator ports the handlers delegate to.
type Deps struct {
	Messages   upstream.MessageStore
	Retrieval  upstream.Retrieval
	Generation upstream.Generation
	Calendar   upstream.Calendar
	Logger     *slog.Logger
}

// New creates the handler set.
func New(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		messages:   deps.Messages,
		retrieval:  deps.Retrieval,
		generation: deps.Generation,
		calendar:   deps.Calendar,
		logger:     logger.With("component", "handlers"),
	}
}

func f64(v float64) *float64 { return &v }

// Catalog returns the full fixed capability catalogue. The dispatcher's
// registry is built from exactly this list; nothing else is reachable.
func (h *Handlers) Catalog() []capability.Schema {
	return []capability.Schema{
		{
			Name:        "searchMessages",
			Description: "Semantic search over the message corpus with an optional thread scope.",
			Params: []capability.FieldSpec{
				{Name: "query", Type: capability.TypeString, Required: true, Sensitive: true, MinLen: 1, MaxLen: 500, Description: "Natural-language search query."},
				{Name: "threadId", Type: capability.TypeString, Pattern: idPattern, Description: "Restrict the search to one thread."},
				{Name: "limit", Type: capability.TypeInteger, Min: f64(1), Max: f64(50), Default: 10},
			},
			Handler:       h.SearchMessages,
			ThreadIDParam: "threadId",
		},
		{
			Name:        "summarizeThread",
			Description: "Condense a thread into a summary, key points, and participant list.",
			Params: []capability.FieldSpec{
				{Name: "threadId", Type: capability.TypeString, Required: true, Pattern: idPattern},
				{Name: "maxPoints", Type: capability.TypeInteger, Min: f64(1), Max: f64(10), Default: 5},
			},
			Handler:       h.SummarizeThread,
			ThreadIDParam: "threadId",
		},
		{
			Name:        "extractActionItems",
			Description: "Extract task records from a thread, each anchored to a source message.",
			Params: []capability.FieldSpec{
				{Name: "threadId", Type: capability.TypeString, Required: true, Pattern: idPattern},
			},
			Handler:       h.ExtractActionItems,
			ThreadIDParam: "threadId",
		},
		{
			Name:        "trackDecisions",
			Description: "Extract decision records from a thread, each anchored to a source message.",
			Params: []capability.FieldSpec{
				{Name: "threadId", Type: capability.TypeString, Required: true, Pattern: idPattern},
			},
			Handler:       h.TrackDecisions,
			ThreadIDParam: "threadId",
		},
		{
			Name:        "categorizeMessage",
			Description: "Classify one message into the urgency taxonomy, with a deterministic fallback.",
			Params: []capability.FieldSpec{
				{Name: "messageId", Type: capability.TypeString, Required: true, Pattern: idPattern},
			},
			Handler: h.CategorizeMessage,
		},
		{
			Name:        "detectSchedulingNeed",
			Description: "Scan recent thread content for scheduling intent.",
			Params: []capability.FieldSpec{
				{Name: "threadId", Type: capability.TypeString, Required: true, Pattern: idPattern},
				{Name: "lookback", Type: capability.TypeInteger, Min: f64(1), Max: f64(100), Default: 25},
			},
			Handler:       h.DetectSchedulingNeed,
			ThreadIDParam: "threadId",
		},
		{
			Name:        "checkCalendar",
			Description: "Fetch free/busy data for a user over a date range.",
			Params: []capability.FieldSpec{
				{Name: "userId", Type: capability.TypeString, Required: true, Pattern: idPattern},
				{Name: "from", Type: capability.TypeString, Required: true, Format: "date-time"},
				{Name: "to", Type: capability.TypeString, Required: true, Format: "date-time"},
			},
			Handler:      h.CheckCalendar,
			UserRefParam: "userId",
		},
		{
			Name:        "suggestMeetingTimes",
			Description: "Suggest ranked meeting slots where every participant is free.",
			Params: []capability.FieldSpec{
				{Name: "participantIds", Type: capability.TypeArray, Required: true, MinItems: 1, MaxItems: 10, ItemType: capability.TypeString},
				{Name: "durationMinutes", Type: capability.TypeInteger, Required: true, Min: f64(15), Max: f64(480)},
				{Name: "from", Type: capability.TypeString, Required: true, Format: "date-time"},
				{Name: "to", Type: capability.TypeString, Required: true, Format: "date-time"},
				{Name: "maxSuggestions", Type: capability.TypeInteger, Min: f64(1), Max: f64(5), Default: 3},
			},
			Handler:           h.SuggestMeetingTimes,
			ParticipantsParam: "participantIds",
		},
	}
}
