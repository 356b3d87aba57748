// ABOUTME: HTTP JSON transport for capability invocation.
// ABOUTME: Attaches the verified caller identity from the auth middleware; payload identity is ignored.

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/murmurchat/concierge/internal/auth"
	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/dispatch"
)

// InvokeRequest is the JSON request body for POST /v1/invoke. There is no
// caller field: identity comes from the transport's auth layer only.
type InvokeRequest struct {
	Capability string          `json:"capability"`
	Parameters json.RawMessage `json:"parameters"`
}

// CapabilityInfo is one entry of the GET /v1/capabilities listing.
type CapabilityInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Server exposes the dispatcher over HTTP.
type Server struct {
	dispatcher *dispatch.Dispatcher
	registry   *capability.Registry
	logger     *slog.Logger
}

// New creates a Server.
func New(dispatcher *dispatch.Dispatcher, registry *capability.Registry, logger *slog.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger.With("component", "server"),
	}
}

// Handler builds the HTTP routing tree. Everything under /v1 requires a
// valid bearer token; /healthz does not.
func (s *Server) Handler(verifier auth.TokenVerifier) http.Handler {
	authed := auth.HTTPMiddleware(verifier)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/invoke", authed(http.HandlerFunc(s.handleInvoke)))
	mux.Handle("GET /v1/capabilities", authed(http.HandlerFunc(s.handleCapabilities)))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no authenticated caller"})
		return
	}

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	outcome := s.dispatcher.Dispatch(r.Context(), &dispatch.Envelope{
		Capability: req.Capability,
		Parameters: req.Parameters,
		CallerID:   callerID,
	})

	writeJSON(w, statusFor(outcome), outcome)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	infos := make([]CapabilityInfo, 0, len(names))
	for _, name := range names {
		schema, _ := s.registry.Resolve(name)
		paramsJSON, err := schema.SchemaJSON()
		if err != nil {
			s.logger.Error("rendering capability schema", "capability", name, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "catalogue unavailable"})
			return
		}
		infos = append(infos, CapabilityInfo{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  paramsJSON,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": infos})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps the outcome's taxonomy code onto an HTTP status. The body
// carries the authoritative code; the status is a transport convenience.
func statusFor(o *dispatch.Outcome) int {
	if o.OK() {
		return http.StatusOK
	}
	switch o.Code {
	case dispatch.CodeInvalidCapability:
		return http.StatusNotFound
	case dispatch.CodeInvalidParameters:
		return http.StatusBadRequest
	case dispatch.CodePermissionDenied:
		return http.StatusForbidden
	case dispatch.CodeTimeout:
		return http.StatusGatewayTimeout
	case dispatch.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response body", "error", err)
	}
}
