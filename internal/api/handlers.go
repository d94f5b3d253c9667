package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meetpilot/internal/persona"
	"meetpilot/internal/process"
)

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// statusResponse is the payload for GET /api/v1/status.
type statusResponse struct {
	SessionID string          `json:"session_id,omitempty"`
	State     string          `json:"state,omitempty"`
	Persona   string          `json:"persona,omitempty"`
	Processes []process.Stats `json:"processes"`
	WSClients int             `json:"ws_clients"`
}

// handleStatus returns the session state, supervised processes, and
// WebSocket client count in one snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Processes: s.supervisor.List(),
	}
	if s.session != nil {
		resp.SessionID = s.session.ID()
		resp.State = string(s.session.State())
		resp.Persona = s.session.PersonaName()
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListProcesses returns stats for every supervised process, in start order.
func (s *Server) handleListProcesses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"processes": s.supervisor.List(),
	})
}

// handleGetProcess returns stats for a single supervised process.
func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stats, err := s.supervisor.Status(name)
	if err != nil {
		if errors.Is(err, process.ErrNotRegistered) {
			writeNotFound(w, "process not found: "+name)
			return
		}
		writeInternalError(w, "failed to read process status")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleListPersonas returns all persona names.
func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	names, err := s.personas.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list personas", "error", err)
		writeInternalError(w, "failed to list personas")
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"personas": names,
		"count":    len(names),
	})
}

// handleGetPersona returns a single persona by name.
func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := s.personas.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			writeNotFound(w, "persona not found: "+name)
			return
		}
		s.logger.Error("failed to get persona", "name", name, "error", err)
		writeInternalError(w, "failed to get persona")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// createPersonaRequest is the payload for POST /api/v1/personas.
type createPersonaRequest struct {
	Name    string `json:"name"`
	Prompt  string `json:"prompt"`
	VoiceID string `json:"voice_id,omitempty"`
}

// handleCreatePersona stores a new persona.
func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := &persona.Persona{
		Name:    req.Name,
		Prompt:  req.Prompt,
		VoiceID: req.VoiceID,
	}

	if err := s.personas.Create(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, persona.ErrInvalid):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, persona.ErrExists):
			writeConflict(w, "persona already exists: "+req.Name)
		default:
			s.logger.Error("failed to create persona", "name", req.Name, "error", err)
			writeInternalError(w, "failed to create persona")
		}
		return
	}

	s.logger.Info("persona created", "name", p.Name)
	writeJSON(w, http.StatusCreated, p)
}

// handleDeletePersona removes a persona by name.
func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.personas.Delete(r.Context(), name); err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			writeNotFound(w, "persona not found: "+name)
			return
		}
		s.logger.Error("failed to delete persona", "name", name, "error", err)
		writeInternalError(w, "failed to delete persona")
		return
	}

	s.logger.Info("persona deleted", "name", name)
	w.WriteHeader(http.StatusNoContent)
}
