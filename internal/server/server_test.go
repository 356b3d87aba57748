// ABOUTME: HTTP transport tests: routing, auth enforcement, status mapping, payload identity rejection.
// ABOUTME: Runs a real dispatcher over stub capabilities behind httptest.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/concierge/internal/auth"
	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/dispatch"
	"github.com/murmurchat/concierge/internal/execlog"
	"github.com/murmurchat/concierge/internal/permission"
	"github.com/murmurchat/concierge/internal/upstream"
)

var testSecret = []byte("test-secret-key-at-least-32-bytes!!")

type discardSink struct{}

func (discardSink) Append(ctx context.Context, e *execlog.Entry) error { return nil }

type openMembership struct{}

func (openMembership) IsMember(ctx context.Context, userID, threadID string) (bool, error) {
	return userID == "alice", nil
}

func (openMembership) CanSchedule(ctx context.Context, callerID, userID string) (bool, error) {
	return false, nil
}

func testServer(t *testing.T) (*httptest.Server, *auth.JWTVerifier) {
	t.Helper()
	logger := slog.Default()

	schemas := []capability.Schema{
		{
			Name:        "echoCaller",
			Description: "Echoes the transport-attached caller identity.",
			Params: []capability.FieldSpec{
				{Name: "note", Type: capability.TypeString, Required: true, MinLen: 1},
			},
			Handler: func(ctx context.Context, callerID string, params json.RawMessage) (json.RawMessage, error) {
				return json.Marshal(map[string]string{"caller": callerID})
			},
		},
		{
			Name:   "alwaysDown",
			Params: []capability.FieldSpec{{Name: "note", Type: capability.TypeString, Required: true}},
			Handler: func(ctx context.Context, callerID string, params json.RawMessage) (json.RawMessage, error) {
				return nil, upstream.ErrUnavailable
			},
		},
		{
			Name:          "threadScoped",
			Params:        []capability.FieldSpec{{Name: "threadId", Type: capability.TypeString, Required: true}},
			ThreadIDParam: "threadId",
			Handler: func(ctx context.Context, callerID string, params json.RawMessage) (json.RawMessage, error) {
				return json.RawMessage(`{}`), nil
			},
		},
	}

	registry, err := capability.NewRegistry(schemas, logger)
	require.NoError(t, err)

	log := execlog.New(discardSink{}, 64, logger)
	t.Cleanup(log.Close)

	d := dispatch.NewDispatcher(dispatch.Config{
		Registry:   registry,
		Permission: permission.NewChecker(openMembership{}, logger),
		Log:        log,
		Logger:     logger,
	})

	verifier := auth.NewJWTVerifier(testSecret)
	srv := httptest.NewServer(New(d, registry, logger).Handler(verifier))
	t.Cleanup(srv.Close)
	return srv, verifier
}

func invoke(t *testing.T, srv *httptest.Server, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/invoke", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func tokenFor(t *testing.T, verifier *auth.JWTVerifier, callerID string) string {
	t.Helper()
	token, err := verifier.Generate(callerID, time.Hour)
	require.NoError(t, err)
	return token
}

func TestInvoke_Success(t *testing.T) {
	srv, verifier := testServer(t)
	token := tokenFor(t, verifier, "alice")

	resp, body := invoke(t, srv, token, `{"capability":"echoCaller","parameters":{"note":"hi"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dispatch.Outcome
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ok", out.Status)
	assert.NotEmpty(t, out.ExecutionID)
	assert.JSONEq(t, `{"caller":"alice"}`, string(out.Data))
}

func TestInvoke_RequiresToken(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := invoke(t, srv, "", `{"capability":"echoCaller","parameters":{"note":"hi"}}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInvoke_CallerComesFromTokenNotPayload(t *testing.T) {
	srv, verifier := testServer(t)
	token := tokenFor(t, verifier, "alice")

	// A callerId smuggled into the body is an unknown parameter, not an
	// identity override.
	resp, body := invoke(t, srv, token,
		`{"capability":"echoCaller","parameters":{"note":"hi","callerId":"admin"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out dispatch.Outcome
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, dispatch.CodeInvalidParameters, out.Code)
}

func TestInvoke_StatusMapping(t *testing.T) {
	srv, verifier := testServer(t)
	aliceToken := tokenFor(t, verifier, "alice")
	bobToken := tokenFor(t, verifier, "bob")

	cases := []struct {
		name       string
		token      string
		body       string
		wantStatus int
		wantCode   dispatch.Code
	}{
		{
			name:       "unknown capability",
			token:      aliceToken,
			body:       `{"capability":"nope","parameters":{}}`,
			wantStatus: http.StatusNotFound,
			wantCode:   dispatch.CodeInvalidCapability,
		},
		{
			name:       "invalid parameters",
			token:      aliceToken,
			body:       `{"capability":"echoCaller","parameters":{}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dispatch.CodeInvalidParameters,
		},
		{
			name:       "permission denied",
			token:      bobToken,
			body:       `{"capability":"threadScoped","parameters":{"threadId":"t1"}}`,
			wantStatus: http.StatusForbidden,
			wantCode:   dispatch.CodePermissionDenied,
		},
		{
			name:       "upstream unavailable",
			token:      aliceToken,
			body:       `{"capability":"alwaysDown","parameters":{"note":"hi"}}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   dispatch.CodeUpstreamUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := invoke(t, srv, tc.token, tc.body)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)

			var out dispatch.Outcome
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, tc.wantCode, out.Code)
			assert.NotEmpty(t, out.ExecutionID)
		})
	}
}

func TestInvoke_MalformedBody(t *testing.T) {
	srv, verifier := testServer(t)
	token := tokenFor(t, verifier, "alice")

	resp, _ := invoke(t, srv, token, `{"capability":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCapabilities_ListsCatalogue(t *testing.T) {
	srv, verifier := testServer(t)
	token := tokenFor(t, verifier, "alice")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/capabilities", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Capabilities []CapabilityInfo `json:"capabilities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Capabilities, 3)

	names := make([]string, len(out.Capabilities))
	for i, c := range out.Capabilities {
		names[i] = c.Name
		assert.NotEmpty(t, c.Parameters, "each capability publishes its parameter schema")
	}
	assert.Contains(t, names, "echoCaller")
}

func TestCapabilities_RequiresToken(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/v1/capabilities")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthz_Open(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor_CoversTaxonomy(t *testing.T) {
	cases := map[dispatch.Code]int{
		dispatch.CodeInvalidCapability:   http.StatusNotFound,
		dispatch.CodeInvalidParameters:   http.StatusBadRequest,
		dispatch.CodePermissionDenied:    http.StatusForbidden,
		dispatch.CodeTimeout:             http.StatusGatewayTimeout,
		dispatch.CodeUpstreamUnavailable: http.StatusBadGateway,
		dispatch.CodeInternal:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		o := &dispatch.Outcome{Status: "error", Code: code}
		assert.Equal(t, want, statusFor(o), fmt.Sprintf("code %s", code))
	}
	assert.Equal(t, http.StatusOK, statusFor(&dispatch.Outcome{Status: "ok"}))
}
