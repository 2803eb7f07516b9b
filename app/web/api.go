package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/techbe/app/roster"
	"github.com/umputun/techbe/app/store"
	"github.com/umputun/techbe/app/web/persistence"
)

// APITechnician represents a technician in JSON API response
type APITechnician struct {
	ID        string `json:"id"`
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	Actif     bool   `json:"actif"`
}

// APIListResponse is the JSON response for /api/v1/technicians
type APIListResponse struct {
	Technicians []APITechnician `json:"technicians"`
	Total       int             `json:"total"`
	Active      int             `json:"active"`
}

// APILookupResponse is the JSON response for composite key lookup, index is the stored position
type APILookupResponse struct {
	Index      int           `json:"index"`
	Technician APITechnician `json:"technician"`
}

// APIValidationError is the JSON response for rejected records
type APIValidationError struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

// APIChange represents a history record in JSON API response
type APIChange struct {
	ID           int       `json:"id"`
	Action       string    `json:"action"`
	TechnicianID string    `json:"technician_id"`
	Nom          string    `json:"nom"`
	Prenom       string    `json:"prenom"`
	Email        string    `json:"email"`
	Telephone    string    `json:"telephone"`
	Actif        bool      `json:"actif"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAPITechnician(e roster.Entry) APITechnician {
	return APITechnician{ID: e.ID, Nom: e.Nom, Prenom: e.Prenom, Email: e.Email, Telephone: e.Telephone, Actif: e.Actif}
}

func toAPIChange(c persistence.ChangeInfo) APIChange {
	return APIChange{ID: c.ID, Action: c.Action.String(), TechnicianID: c.TechnicianID, Nom: c.Nom, Prenom: c.Prenom,
		Email: c.Email, Telephone: c.Telephone, Actif: c.Actif, CreatedAt: c.CreatedAt}
}

// handleAPIList returns all technicians, in display order unless order=stored is set
func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	entries := s.editor.Roster().List()
	switch r.URL.Query().Get("order") {
	case "", "display":
		entries = roster.Sorted(entries)
	case "stored":
	default:
		s.writeJSONError(w, http.StatusBadRequest, "invalid order, expected display or stored")
		return
	}

	resp := APIListResponse{Technicians: make([]APITechnician, 0, len(entries)), Total: len(entries)}
	for _, e := range entries {
		resp.Technicians = append(resp.Technicians, toAPITechnician(e))
		if e.Actif {
			resp.Active++
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIGet returns a single technician by id
func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.editor.Roster().Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "technician not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toAPITechnician(entry))
}

// handleAPILookup finds technician by the values shown in the table. nom is compared upper-cased.
func (s *Server) handleAPILookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rst := s.editor.Roster()
	idx, ok := rst.FindByDisplayKey(strings.ToUpper(q.Get("nom")), q.Get("prenom"), q.Get("email"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "technician not found")
		return
	}
	entry, ok := rst.At(idx)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "technician not found")
		return
	}
	s.writeJSON(w, http.StatusOK, APILookupResponse{Index: idx, Technician: toAPITechnician(entry)})
}

// handleAPICreate appends a technician
func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	s.apiWrite(w, r, "")
}

// handleAPIUpdate replaces technician with given id
func (s *Server) handleAPIUpdate(w http.ResponseWriter, r *http.Request) {
	s.apiWrite(w, r, r.PathValue("id"))
}

// apiWrite decodes technician from the body and adds it, or replaces the one with id if set.
// API writes go directly to the roster and don't change the form state.
func (s *Server) apiWrite(w http.ResponseWriter, r *http.Request, id string) {
	var tech store.Technician
	if err := json.NewDecoder(r.Body).Decode(&tech); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := s.editor.Roster().AddOrUpdate(r.Context(), tech, id)
	var verr *roster.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusUnprocessableEntity, APIValidationError{Error: verr.Error(), Missing: verr.Fields})
		return
	case errors.Is(err, roster.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, "technician not found")
		return
	default:
		log.Printf("[ERROR] failed to save technician: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to save roster")
		return
	}

	if id == "" {
		s.recordChange(r.Context(), entry, roster.ModeCreate)
		s.writeJSON(w, http.StatusCreated, toAPITechnician(entry))
		return
	}
	s.recordChange(r.Context(), entry, roster.ModeEdit)
	s.writeJSON(w, http.StatusOK, toAPITechnician(entry))
}

// handleAPIExportYAML returns the roster in stored order as YAML
func (s *Server) handleAPIExportYAML(w http.ResponseWriter, _ *http.Request) {
	buf := new(bytes.Buffer)
	if err := store.WriteYAML(buf, s.editor.Roster().Technicians()); err != nil {
		log.Printf("[ERROR] failed to export roster: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to export roster")
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tech_be.yaml"`)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// handleAPISchema returns JSON schema of the roster file
func (s *Server) handleAPISchema(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, store.GenerateSchema())
}

// handleAPIHistory returns recent changes, most recent first
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSONError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	changes, err := s.history.Changes(r.Context(), limit)
	if err != nil {
		log.Printf("[ERROR] failed to load history: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	resp := make([]APIChange, 0, len(changes))
	for _, c := range changes {
		resp = append(resp, toAPIChange(c))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
