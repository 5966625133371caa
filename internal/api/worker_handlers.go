package api

import (
	"net/http"

	"github.com/salestroopz/outreach-engine/internal/pkg/httputil"
)

// POST /api/v1/internal/run-sequencer-cycle
//
// Runs one sequencer cycle for the caller's organization synchronously.
// Useful for operations and integration testing; production sending is
// driven by the worker ticker.
func (s *Server) handleRunSequencerCycle(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sequencer == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "sequencer not running in this process")
		return
	}
	sent, errored := s.deps.Sequencer.RunCycleForOrg(r.Context(), orgID(r))
	httputil.OK(w, map[string]any{"sent": sent, "errored": errored})
}

// POST /api/v1/internal/run-mailbox-poll
func (s *Server) handleRunMailboxPoll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Poller == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "mailbox poller not running in this process")
		return
	}
	ingested := s.deps.Poller.PollOrg(r.Context(), orgID(r))
	httputil.OK(w, map[string]any{"ingested": ingested})
}
