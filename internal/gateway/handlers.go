package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/smsrelay/internal/domain"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only fills Status; the authenticated RPC fills the rest.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Clients    int    `json:"clients,omitempty"`
	Forwarding *bool  `json:"forwarding,omitempty"`
	UptimeMs   int64  `json:"uptimeMs,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// requireAuth rejects requests without valid gateway credentials.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		if res := AuthorizeRequest(s.auth, r); !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, res.Reason)
			return
		}
		next(w, r)
	}
}

// handleInbound accepts one inbound message. With an inbound secret
// configured the body must carry a valid signature; otherwise the regular
// gateway credentials apply. The message is dispatched in the background.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}
	if len(body) > maxInboundBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	if s.cfg.InboundSecret != "" {
		sig := r.Header.Get(SignatureHeader)
		if sig == "" {
			writeError(w, http.StatusUnauthorized, "missing signature")
			return
		}
		if !VerifySignature(s.cfg.InboundSecret, body, sig) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("inbound signature mismatch")
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
	} else if res := AuthorizeRequest(s.auth, r); !res.OK {
		writeError(w, http.StatusUnauthorized, res.Reason)
		return
	}

	var req InboundRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	fragments := req.toFragments()
	if len(fragments) == 0 {
		writeError(w, http.StatusBadRequest, "fragments or body is required")
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	reqID := r.Header.Get("X-Request-ID")
	s.log.Info().
		Str("requestId", reqID).
		Str("from", req.Sender).
		Int("fragments", len(fragments)).
		Msg("inbound message accepted")

	s.dispatchAsync(reqID, fragments, receivedAt)
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", RequestID: reqID})
}

func (req InboundRequest) toFragments() []domain.Fragment {
	fragments := make([]domain.Fragment, 0, len(req.Fragments)+1)
	for _, f := range req.Fragments {
		fragments = append(fragments, domain.Fragment{Sender: req.Sender, Body: f})
	}
	if req.Body != "" {
		fragments = append(fragments, domain.Fragment{Sender: req.Sender, Body: req.Body})
	}
	return fragments
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.outcomes.Entries(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("reading outcome log failed")
		writeError(w, http.StatusInternalServerError, "reading outcome log failed")
		return
	}
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.outcomes.Clear(); err != nil {
		s.log.Error().Err(err).Msg("clearing outcome log failed")
		writeError(w, http.StatusInternalServerError, "clearing outcome log failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestHandler processes one RPC request from a WebSocket client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything an RPC handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message})
}

// Params decodes the request params into target. Missing params are not
// an error.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
