package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/techbe/app/roster"
	"github.com/umputun/techbe/app/store"
	"github.com/umputun/techbe/app/web/enums"
	"github.com/umputun/techbe/app/web/persistence"
)

const missingFieldsWarning = "Champs manquants: Veuillez remplir tous les champs obligatoires."

// handleDashboard renders the roster table and the form in its current mode
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := s.dashboardData(r)
	s.render(w, "dashboard", "base.html", data)
}

// handleSubmit applies the form through the editor, add in create mode and replace in edit mode
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	tech := store.Technician{
		Nom:       r.FormValue("nom"),
		Prenom:    r.FormValue("prenom"),
		Email:     r.FormValue("email"),
		Telephone: r.FormValue("telephone"),
		Actif:     r.FormValue("actif") != "",
	}

	entry, mode, err := s.editor.Submit(r.Context(), tech)
	if err != nil {
		// keep typed values so the user can fix the form
		data := s.dashboardData(r)
		data.Form = FormData{EditID: data.Form.EditID, Nom: tech.Nom, Prenom: tech.Prenom, Email: tech.Email,
			Telephone: tech.Telephone, Actif: tech.Actif}

		var verr *roster.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Printf("[DEBUG] rejected technician form, %v", verr)
			data.Warning = missingFieldsWarning
			data.MissingFields = verr.Fields
			s.renderStatus(w, http.StatusUnprocessableEntity, "dashboard", "base.html", data)
		case errors.Is(err, roster.ErrNotFound):
			s.editor.Cancel()
			data.Form.EditID = ""
			data.Error = "Technicien introuvable, le formulaire est revenu en mode ajout."
			s.renderStatus(w, http.StatusNotFound, "dashboard", "base.html", data)
		default:
			log.Printf("[ERROR] failed to submit technician: %v", err)
			data.Error = "Enregistrement impossible: " + err.Error()
			s.renderStatus(w, http.StatusInternalServerError, "dashboard", "base.html", data)
		}
		return
	}

	s.recordChange(r.Context(), entry, mode)
	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleSelect switches the form to edit mode for the technician
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.editor.Select(id); err != nil {
		log.Printf("[WARN] %v", err)
		http.Error(w, "Technician not found", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleCancel drops the selection and returns the form to create mode
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.editor.Cancel()
	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleThemeToggle toggles the theme
func (s *Server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	nextTheme := enums.ThemeDark
	if s.getTheme(r) == enums.ThemeDark {
		nextTheme = enums.ThemeLight
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "theme",
		Value:    nextTheme.String(),
		Path:     s.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleHistory renders recent roster changes
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "History is disabled", http.StatusNotFound)
		return
	}

	data := s.newTemplateData(r)
	changes, err := s.history.Changes(r.Context(), 100)
	if err != nil {
		log.Printf("[ERROR] failed to load history: %v", err)
		data.Error = "Historique indisponible"
	}
	data.Changes = changes
	s.render(w, "history", "base.html", data)
}

// dashboardData builds template data for the dashboard, form is filled from the editor state
func (s *Server) dashboardData(r *http.Request) TemplateData {
	data := s.newTemplateData(r)
	data.Technicians = roster.Sorted(s.editor.Roster().List())
	data.TotalCount = len(data.Technicians)
	for _, e := range data.Technicians {
		if e.Actif {
			data.ActiveCount++
		}
	}

	data.Form = FormData{Actif: true}
	if mode, entry := s.editor.State(); mode == roster.ModeEdit {
		data.Form = FormData{EditID: entry.ID, Nom: entry.Nom, Prenom: entry.Prenom, Email: entry.Email,
			Telephone: entry.Telephone, Actif: entry.Actif}
	}
	return data
}

// recordChange adds successful mutation to the history journal, failures are logged only
func (s *Server) recordChange(ctx context.Context, entry roster.Entry, mode roster.Mode) {
	if s.history == nil {
		return
	}
	action := enums.ActionAdded
	if mode == roster.ModeEdit {
		action = enums.ActionUpdated
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	change := persistence.ChangeInfo{
		Action:       action,
		TechnicianID: entry.ID,
		Nom:          entry.Nom,
		Prenom:       entry.Prenom,
		Email:        entry.Email,
		Telephone:    entry.Telephone,
		Actif:        entry.Actif,
	}
	if err := s.history.Record(ctx, change); err != nil {
		log.Printf("[WARN] failed to record %s change for %s: %v", action, entry.ID, err)
		return
	}
	if err := s.history.Cleanup(ctx, s.historyKeep); err != nil {
		log.Printf("[WARN] failed to cleanup history: %v", err)
	}
}
