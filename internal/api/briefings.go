package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/solosuccess/competitor-intel/internal/briefing"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/storage"
)

const briefingFeature = "Intelligence Briefings"

// briefingKind reads ?type=, accepting the older ?period= spelling
func briefingKind(r *http.Request) (string, error) {
	q := r.URL.Query()
	kind := q.Get("type")
	if kind == "" {
		kind = q.Get("period")
	}
	return briefing.ParseKind(kind)
}

func (s *Server) writeBriefing(w http.ResponseWriter, r *http.Request, b *models.Briefing) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		respondJSON(w, http.StatusOK, map[string]interface{}{"briefing": b})
	case "html":
		html, err := briefing.RenderHTML(b, s.config.Location())
		if err != nil {
			respondInternalError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(briefing.RenderText(b, s.config.Location())))
	default:
		respondBadRequest(w, "format must be one of json, html, text")
	}
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !s.requirePaidTier(w, user, briefingFeature) {
		return
	}

	kind, err := briefingKind(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	b, err := s.briefings.Generate(r.Context(), user.ID, kind)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	s.writeBriefing(w, r, b)
}

func (s *Server) handleBriefingHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !s.requirePaidTier(w, user, briefingFeature) {
		return
	}

	names, err := s.briefings.History(r.Context(), user.ID)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"briefings": names})
}

func (s *Server) handleArchivedBriefing(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !s.requirePaidTier(w, user, briefingFeature) {
		return
	}

	b, err := s.briefings.Archived(r.Context(), user.ID, mux.Vars(r)["name"])
	if errors.Is(err, storage.ErrNotFound) {
		respondNotFound(w, "Briefing")
		return
	}
	if err != nil {
		respondInternalError(w, err)
		return
	}
	s.writeBriefing(w, r, b)
}
