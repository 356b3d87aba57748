// ABOUTME: Thin HTTP JSON adapters for the collaborator interfaces.
// ABOUTME: Transport failures and non-200s normalize to ErrUnavailable/ErrNotFound.

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Endpoints holds the base URLs of the collaborator services. Empty entries
// leave the corresponding port unconfigured; calls through it fail with
// ErrUnavailable.
type Endpoints struct {
	MessageStore string
	Membership   string
	Retrieval    string
	Generation   string
	Calendar     string
}

// HTTPClients bundles HTTP-backed implementations of all collaborator ports.
type HTTPClients struct {
	Messages   MessageStore
	Members    Membership
	Retriever  Retrieval
	Generator  Generation
	Calendars  Calendar
}

// NewHTTPClients builds collaborator clients that speak a small JSON protocol
// against the configured endpoints. The caller's context deadline bounds each
// request; timeout is a per-request ceiling on top of that.
func NewHTTPClients(endpoints Endpoints, timeout time.Duration) *HTTPClients {
	hc := &http.Client{Timeout: timeout}
	return &HTTPClients{
		Messages:  &httpMessageStore{base: endpoints.MessageStore, hc: hc},
		Members:   &httpMembership{base: endpoints.Membership, hc: hc},
		Retriever: &httpRetrieval{base: endpoints.Retrieval, hc: hc},
		Generator: &httpGeneration{base: endpoints.Generation, hc: hc},
		Calendars: &httpCalendar{base: endpoints.Calendar, hc: hc},
	}
}

// getJSON issues a GET and decodes the response body into out.
func getJSON(ctx context.Context, hc *http.Client, base, path string, query url.Values, out any) error {
	if base == "" {
		return fmt.Errorf("%w: endpoint not configured", ErrUnavailable)
	}
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doJSON(hc, req, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func postJSON(ctx context.Context, hc *http.Client, base, path string, body, out any) error {
	if base == "" {
		return fmt.Errorf("%w: endpoint not configured", ErrUnavailable)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(hc, req, out)
}

func doJSON(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

type httpMessageStore struct {
	base string
	hc   *http.Client
}

type wireMessage struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"thread_id"`
	Sender   string    `json:"sender"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

func (m wireMessage) toDomain() Message {
	return Message{ID: m.ID, ThreadID: m.ThreadID, Sender: m.Sender, Text: m.Text, SentAt: m.SentAt}
}

func (s *httpMessageStore) FetchThread(ctx context.Context, threadID string) ([]Message, error) {
	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := getJSON(ctx, s.hc, s.base, "/threads/"+url.PathEscape(threadID)+"/messages", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	msgs := make([]Message, len(resp.Messages))
	for i, m := range resp.Messages {
		msgs[i] = m.toDomain()
	}
	return msgs, nil
}

func (s *httpMessageStore) FetchMessage(ctx context.Context, messageID string) (*Message, error) {
	var m wireMessage
	if err := getJSON(ctx, s.hc, s.base, "/messages/"+url.PathEscape(messageID), nil, &m); err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	msg := m.toDomain()
	return &msg, nil
}

type httpMembership struct {
	base string
	hc   *http.Client
}

func (s *httpMembership) IsMember(ctx context.Context, userID, threadID string) (bool, error) {
	q := url.Values{"user_id": {userID}, "thread_id": {threadID}}
	var resp struct {
		Member bool `json:"member"`
	}
	if err := getJSON(ctx, s.hc, s.base, "/membership", q, &resp); err != nil {
		return false, err
	}
	return resp.Member, nil
}

func (s *httpMembership) CanSchedule(ctx context.Context, callerID, userID string) (bool, error) {
	q := url.Values{"caller_id": {callerID}, "user_id": {userID}}
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	if err := getJSON(ctx, s.hc, s.base, "/scheduling-relationship", q, &resp); err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

type httpRetrieval struct {
	base string
	hc   *http.Client
}

func (s *httpRetrieval) QuerySimilar(ctx context.Context, text string, filters SearchFilters, limit int) ([]Match, error) {
	body := map[string]any{"query": text, "limit": limit}
	if filters.ThreadID != "" {
		body["thread_id"] = filters.ThreadID
	}
	var resp struct {
		Matches []struct {
			MessageID string  `json:"message_id"`
			ThreadID  string  `json:"thread_id"`
			Snippet   string  `json:"snippet"`
			Score     float64 `json:"score"`
		} `json:"matches"`
	}
	if err := postJSON(ctx, s.hc, s.base, "/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	matches := make([]Match, len(resp.Matches))
	for i, m := range resp.Matches {
		matches[i] = Match{MessageID: m.MessageID, ThreadID: m.ThreadID, Snippet: m.Snippet, Score: m.Score}
	}
	return matches, nil
}

type httpGeneration struct {
	base string
	hc   *http.Client
}

func (s *httpGeneration) Summarize(ctx context.Context, text string, maxPoints int) (*Summary, error) {
	body := map[string]any{"text": text, "max_points": maxPoints}
	var resp struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
	}
	if err := postJSON(ctx, s.hc, s.base, "/summarize", body, &resp); err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return &Summary{Text: resp.Summary, KeyPoints: resp.KeyPoints}, nil
}

func (s *httpGeneration) Extract(ctx context.Context, text string, kind ExtractKind) ([]ExtractedItem, error) {
	body := map[string]any{"text": text, "kind": string(kind)}
	var resp struct {
		Items []struct {
			Text        string `json:"text"`
			Attributee  string `json:"attributee"`
			DueHint     string `json:"due_hint"`
			SourceIndex int    `json:"source_index"`
		} `json:"items"`
	}
	if err := postJSON(ctx, s.hc, s.base, "/extract", body, &resp); err != nil {
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	items := make([]ExtractedItem, len(resp.Items))
	for i, it := range resp.Items {
		items[i] = ExtractedItem{Text: it.Text, Attributee: it.Attributee, DueHint: it.DueHint, SourceIndex: it.SourceIndex}
	}
	return items, nil
}

func (s *httpGeneration) Classify(ctx context.Context, text string) (string, error) {
	var resp struct {
		Category string `json:"category"`
	}
	if err := postJSON(ctx, s.hc, s.base, "/classify", map[string]any{"text": text}, &resp); err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return resp.Category, nil
}

type httpCalendar struct {
	base string
	hc   *http.Client
}

func (s *httpCalendar) FreeBusy(ctx context.Context, userID string, r TimeRange) ([]Interval, error) {
	q := url.Values{
		"user_id": {userID},
		"from":    {r.From.UTC().Format(time.RFC3339)},
		"to":      {r.To.UTC().Format(time.RFC3339)},
	}
	var resp struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
	}
	if err := getJSON(ctx, s.hc, s.base, "/free-busy", q, &resp); err != nil {
		return nil, fmt.Errorf("free/busy for %s: %w", userID, err)
	}
	busy := make([]Interval, len(resp.Busy))
	for i, b := range resp.Busy {
		busy[i] = Interval{Start: b.Start, End: b.End}
	}
	return busy, nil
}

func (s *httpCalendar) WorkingHours(ctx context.Context, userID string) (WorkingHours, error) {
	q := url.Values{"user_id": {userID}}
	var resp struct {
		StartHour int `json:"start_hour"`
		EndHour   int `json:"end_hour"`
	}
	if err := getJSON(ctx, s.hc, s.base, "/working-hours", q, &resp); err != nil {
		return WorkingHours{}, fmt.Errorf("working hours for %s: %w", userID, err)
	}
	return WorkingHours{StartHour: resp.StartHour, EndHour: resp.EndHour}, nil
}
