package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"magnetstream/internal/domain"
	"magnetstream/internal/usecase"
)

type createSessionRequest struct {
	Descriptor string `json:"descriptor"`
	// Magnet is an accepted alias for descriptor.
	Magnet string `json:"magnet"`
}

type sessionSummary struct {
	ID        domain.InfoHash    `json:"id"`
	Files     []domain.FileEntry `json:"files"`
	CreatedAt time.Time          `json:"createdAt"`
	domain.TrafficStats
}

type removeSessionResponse struct {
	Removed bool `json:"removed"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createSession(w, r)
	case http.MethodGet:
		s.listSessions(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	descriptor := strings.TrimSpace(req.Descriptor)
	if descriptor == "" {
		descriptor = strings.TrimSpace(req.Magnet)
	}

	result, err := s.addSession.Execute(r.Context(), descriptor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == usecase.StatusCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, []sessionSummary{})
		return
	}
	sessions := s.sessions.List()
	summaries := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, sessionSummary{
			ID:           session.ID,
			Files:        usecase.PlayableFiles(session.Files),
			CreatedAt:    session.CreatedAt,
			TrafficStats: session.Handle.Stats(),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	parts := splitSessionPath(r.URL.Path)
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	id := domain.InfoHash(strings.ToLower(parts[0]))

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getSession(w, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.removeSessionByID(w, id)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodGet:
		s.getSessionStatus(w, id)
	case len(parts) == 3 && parts[1] == "files" && r.Method == http.MethodGet:
		s.streamFile(w, r, id, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (s *Server) getSession(w http.ResponseWriter, id domain.InfoHash) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	session, err := s.sessions.Lookup(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionSummary{
		ID:           session.ID,
		Files:        usecase.PlayableFiles(session.Files),
		CreatedAt:    session.CreatedAt,
		TrafficStats: session.Handle.Stats(),
	})
}

func (s *Server) getSessionStatus(w http.ResponseWriter, id domain.InfoHash) {
	if s.statusSession == nil {
		writeError(w, http.StatusNotFound, "not_found", "status not available")
		return
	}
	status, err := s.statusSession.Execute(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// removeSessionByID is idempotent: removing an unknown session still answers
// 200 so retried deletes never surface spurious errors.
func (s *Server) removeSessionByID(w http.ResponseWriter, id domain.InfoHash) {
	if s.removeSession == nil {
		writeError(w, http.StatusNotFound, "not_found", "remove not available")
		return
	}
	removed := s.removeSession.Execute(id)
	writeJSON(w, http.StatusOK, removeSessionResponse{Removed: removed})
}
