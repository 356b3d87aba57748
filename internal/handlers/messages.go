// ABOUTME: Handlers for the message-centric capabilities: search, summarize, extract, track, categorize.
// ABOUTME: All delegation to retrieval/generation collaborators happens here under the dispatch deadline.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/upstream"
)

// maxThreadMessages bounds how much of a thread is handed to the generation
// service. Longer threads are sampled head and tail rather than rejected.
const maxThreadMessages = 200

type searchMessagesInput struct {
	Query    string `json:"query"`
	ThreadID string `json:"threadId"`
	Limit    int    `json:"limit"`
}

type searchMatch struct {
	MessageID string  `json:"messageId"`
	ThreadID  string  `json:"threadId"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

type searchMessagesOutput struct {
	Matches []searchMatch `json:"matches"`
}

// SearchMessages runs a semantic query against the retrieval collaborator.
// An empty result set is a success, not an error.
func (h *Handlers) SearchMessages(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in searchMessagesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	matches, err := h.retrieval.QuerySimilar(ctx, in.Query, upstream.SearchFilters{ThreadID: in.ThreadID}, in.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := searchMessagesOutput{Matches: make([]searchMatch, len(matches))}
	for i, m := range matches {
		out.Matches[i] = searchMatch{
			MessageID: m.MessageID,
			ThreadID:  m.ThreadID,
			Snippet:   m.Snippet,
			Score:     m.Score,
		}
	}
	return json.Marshal(out)
}

type summarizeThreadInput struct {
	ThreadID  string `json:"threadId"`
	MaxPoints int    `json:"maxPoints"`
}

type summarizeThreadOutput struct {
	Summary      string   `json:"summary"`
	KeyPoints    []string `json:"keyPoints"`
	Participants []string `json:"participants"`
}

// SummarizeThread fetches a thread and asks the generation collaborator to
// condense it. Very long threads are sampled before delegation.
func (h *Handlers) SummarizeThread(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in summarizeThreadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	messages, err := h.messages.FetchThread(ctx, in.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", in.ThreadID, err)
	}

	sampled := sampleMessages(messages, maxThreadMessages)
	summary, err := h.generation.Summarize(ctx, renderCorpus(sampled), in.MaxPoints)
	if err != nil {
		return nil, fmt.Errorf("summarize thread %s: %w", in.ThreadID, err)
	}

	keyPoints := summary.KeyPoints
	if len(keyPoints) > in.MaxPoints && in.MaxPoints > 0 {
		keyPoints = keyPoints[:in.MaxPoints]
	}
	if keyPoints == nil {
		keyPoints = []string{}
	}

	return json.Marshal(summarizeThreadOutput{
		Summary:      summary.Text,
		KeyPoints:    keyPoints,
		Participants: participants(messages),
	})
}

type extractThreadInput struct {
	ThreadID string `json:"threadId"`
}

type actionItem struct {
	Description     string `json:"description"`
	Assignee        string `json:"assignee,omitempty"`
	DueHint         string `json:"dueHint,omitempty"`
	SourceMessageID string `json:"sourceMessageId"`
}

type extractActionItemsOutput struct {
	Items []actionItem `json:"items"`
}

// ExtractActionItems extracts structured task records from a thread. Every
// returned item carries a pointer back to its source message; items the
// generation service cannot anchor to a real message are discarded.
func (h *Handlers) ExtractActionItems(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	messages, items, err := h.extractFromThread(ctx, input, upstream.ExtractTasks)
	if err != nil {
		return nil, err
	}

	out := extractActionItemsOutput{Items: []actionItem{}}
	for _, item := range items {
		src, ok := sourceMessageID(messages, item.SourceIndex)
		if !ok {
			continue
		}
		out.Items = append(out.Items, actionItem{
			Description:     item.Text,
			Assignee:        item.Attributee,
			DueHint:         item.DueHint,
			SourceMessageID: src,
		})
	}
	return json.Marshal(out)
}

type decisionRecord struct {
	Statement       string `json:"statement"`
	DecidedBy       string `json:"decidedBy,omitempty"`
	SourceMessageID string `json:"sourceMessageId"`
}

type trackDecisionsOutput struct {
	Decisions []decisionRecord `json:"decisions"`
}

// TrackDecisions extracts structured decision records from a thread, same
// shape as ExtractActionItems but over the decision kind.
func (h *Handlers) TrackDecisions(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	messages, items, err := h.extractFromThread(ctx, input, upstream.ExtractDecisions)
	if err != nil {
		return nil, err
	}

	out := trackDecisionsOutput{Decisions: []decisionRecord{}}
	for _, item := range items {
		src, ok := sourceMessageID(messages, item.SourceIndex)
		if !ok {
			continue
		}
		out.Decisions = append(out.Decisions, decisionRecord{
			Statement:       item.Text,
			DecidedBy:       item.Attributee,
			SourceMessageID: src,
		})
	}
	return json.Marshal(out)
}

// extractFromThread is the shared fetch+delegate step for the two extraction
// capabilities.
func (h *Handlers) extractFromThread(ctx context.Context, input json.RawMessage, kind upstream.ExtractKind) ([]upstream.Message, []upstream.ExtractedItem, error) {
	var in extractThreadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	messages, err := h.messages.FetchThread(ctx, in.ThreadID)
	if err != nil {
		return nil, nil, fmt.Errorf("thread %s: %w", in.ThreadID, err)
	}

	sampled := sampleMessages(messages, maxThreadMessages)
	items, err := h.generation.Extract(ctx, renderCorpus(sampled), kind)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s from thread %s: %w", kind, in.ThreadID, err)
	}
	return sampled, items, nil
}

type categorizeMessageInput struct {
	MessageID string `json:"messageId"`
}

type categorizeMessageOutput struct {
	Category string `json:"category"`
	Source   string `json:"source"`
}

// Urgency taxonomy for categorizeMessage.
const (
	categoryUrgent        = "urgent"
	categoryActionable    = "actionable"
	categoryInformational = "informational"
	categorySocial        = "social"
)

var validCategories = map[string]bool{
	categoryUrgent:        true,
	categoryActionable:    true,
	categoryInformational: true,
	categorySocial:        true,
}

// CategorizeMessage classifies one message into the urgency taxonomy. When
// the generation collaborator fails or answers outside the taxonomy, a
// deterministic keyword heuristic takes over; that path is a first-class
// success outcome.
func (h *Handlers) CategorizeMessage(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in categorizeMessageInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrInvalidInput, err)
	}

	msg, err := h.messages.FetchMessage(ctx, in.MessageID)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", in.MessageID, err)
	}

	out := categorizeMessageOutput{Source: "model"}
	category, err := h.generation.Classify(ctx, msg.Text)
	if err != nil || !validCategories[category] {
		if err != nil {
			h.logger.Warn("classifier unavailable, using heuristic",
				"message_id", in.MessageID,
				"error", err,
			)
		}
		category = heuristicCategory(msg.Text)
		out.Source = "heuristic"
	}
	out.Category = category
	return json.Marshal(out)
}

// heuristicCategory is the cheap deterministic fallback classifier.
func heuristicCategory(text string) string {
	lower := strings.ToLower(text)

	for _, kw := range []string{"urgent", "asap", "immediately", "emergency", "critical", "right away"} {
		if strings.Contains(lower, kw) {
			return categoryUrgent
		}
	}
	for _, kw := range []string{"can you", "could you", "please", "need you to", "by tomorrow", "review this", "action required"} {
		if strings.Contains(lower, kw) {
			return categoryActionable
		}
	}
	if strings.Contains(lower, "?") {
		return categoryActionable
	}
	for _, kw := range []string{"thanks", "thank you", "congrats", "happy birthday", "lol", "nice one"} {
		if strings.Contains(lower, kw) {
			return categorySocial
		}
	}
	return categoryInformational
}

// sampleMessages keeps at most limit messages, taking the head and tail of
// the thread so both context and recency survive.
func sampleMessages(messages []upstream.Message, limit int) []upstream.Message {
	if len(messages) <= limit {
		return messages
	}
	head := limit / 2
	tail := limit - head
	sampled := make([]upstream.Message, 0, limit)
	sampled = append(sampled, messages[:head]...)
	sampled = append(sampled, messages[len(messages)-tail:]...)
	return sampled
}

// renderCorpus flattens messages into the indexed text form the generation
// service consumes. Extraction results reference messages by these indexes.
func renderCorpus(messages []upstream.Message) string {
	var b strings.Builder
	for i, m := range messages {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i, m.Sender, m.Text)
	}
	return b.String()
}

// participants returns unique senders in order of first appearance.
func participants(messages []upstream.Message) []string {
	seen := make(map[string]bool, len(messages))
	out := []string{}
	for _, m := range messages {
		if !seen[m.Sender] {
			seen[m.Sender] = true
			out = append(out, m.Sender)
		}
	}
	return out
}

// sourceMessageID maps an extraction source index back to a message ID.
func sourceMessageID(messages []upstream.Message, index int) (string, bool) {
	if index < 0 || index >= len(messages) {
		return "", false
	}
	return messages[index].ID, true
}
