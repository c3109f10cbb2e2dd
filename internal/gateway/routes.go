package gateway

import (
	"net/http"
	"time"

	"github.com/soyeahso/smsrelay/internal/version"
)

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /v1/messages", s.handleInbound)
	mux.HandleFunc("GET /v1/logs", s.requireAuth(s.handleLogs))
	mux.HandleFunc("DELETE /v1/logs", s.requireAuth(s.handleClearLogs))
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("logs.list", s.rpcLogsList)
	s.Handle("logs.latest", s.rpcLogsLatest)
	s.Handle("logs.clear", s.rpcLogsClear)
	s.Handle("forwarding.get", s.rpcForwardingGet)
	s.Handle("forwarding.set", s.rpcForwardingSet)
	s.Handle("senders.status", s.rpcSendersStatus)
	s.Handle("messages.inject", s.rpcMessagesInject)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	enabled := s.forwarder.Enabled()
	rc.Respond(HealthResponse{
		Status:     "ok",
		Version:    version.Version,
		Clients:    s.clients.Count(),
		Forwarding: &enabled,
		UptimeMs:   s.Uptime().Milliseconds(),
	})
}

type logsListParams struct {
	Limit int `json:"limit"`
}

func (s *Server) rpcLogsList(rc *RequestContext) {
	var p logsListParams
	if err := rc.Params(&p); err != nil || p.Limit < 0 {
		rc.RespondError("invalid_params", "limit must be a non-negative integer")
		return
	}
	entries, err := s.outcomes.Entries(p.Limit)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	if entries == nil {
		entries = []string{}
	}
	rc.Respond(LogsResponse{Entries: entries})
}

func (s *Server) rpcLogsLatest(rc *RequestContext) {
	rc.Respond(OutcomeEvent{Entry: s.outcomes.Latest()})
}

func (s *Server) rpcLogsClear(rc *RequestContext) {
	if err := s.outcomes.Clear(); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"cleared": true})
}

type forwardingState struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) rpcForwardingGet(rc *RequestContext) {
	enabled := s.forwarder.Enabled()
	rc.Respond(forwardingState{Enabled: &enabled})
}

func (s *Server) rpcForwardingSet(rc *RequestContext) {
	var p forwardingState
	if err := rc.Params(&p); err != nil || p.Enabled == nil {
		rc.RespondError("invalid_params", "enabled is required")
		return
	}
	s.forwarder.SetEnabled(*p.Enabled)
	s.log.Info().Bool("enabled", *p.Enabled).Str("connId", rc.Client.ConnID).Msg("forwarding switched")
	rc.Respond(p)
	s.clients.Broadcast(EventForwarding, p, s.eventSeq.Add(1))
}

func (s *Server) rpcSendersStatus(rc *RequestContext) {
	if s.senders == nil {
		rc.Respond(map[string]any{"senders": []any{}})
		return
	}
	rc.Respond(map[string]any{"senders": s.senders.Status()})
}

// injectResult summarizes a synchronous dispatch.
type injectResult struct {
	Matched   int   `json:"matched"`
	Completed int   `json:"completed"`
	Succeeded int   `json:"succeeded"`
	TimedOut  bool  `json:"timedOut"`
	ElapsedMs int64 `json:"elapsedMs"`
}

// rpcMessagesInject runs a message through the forwarder and answers once
// the dispatcher's wait has ended.
func (s *Server) rpcMessagesInject(rc *RequestContext) {
	var req InboundRequest
	if err := rc.Params(&req); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	fragments := req.toFragments()
	if len(fragments) == 0 {
		rc.RespondError("invalid_params", "fragments or body is required")
		return
	}
	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		res := s.forwarder.HandleInbound(s.dispatchContext(), fragments, receivedAt)
		out := injectResult{
			Matched:   res.Matched,
			Completed: len(res.Outcomes),
			TimedOut:  res.TimedOut,
			ElapsedMs: res.Elapsed.Milliseconds(),
		}
		for _, o := range res.Outcomes {
			if o.Succeeded {
				out.Succeeded++
			}
		}
		rc.Respond(out)
	}()
}
