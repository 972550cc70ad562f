package api

import (
	"net/http"

	"github.com/solosuccess/competitor-intel/internal/alerts"
	"github.com/solosuccess/competitor-intel/internal/models"
)

const (
	actionMarkRead = "markRead"
	actionDelete   = "delete"
)

type alertActionRequest struct {
	Action  string `json:"action"`
	AlertID string `json:"alert_id"`
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"

	list, err := s.alerts.Alerts(r.Context(), user.ID, unreadOnly)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	if list == nil {
		list = []models.InAppAlert{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": list})
}

func (s *Server) handleAlertAction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req alertActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	var err error
	switch {
	case req.Action == actionMarkRead && req.AlertID != "":
		err = s.alerts.MarkRead(r.Context(), user.ID, req.AlertID)
	case req.Action == actionMarkRead:
		err = s.alerts.MarkAllRead(r.Context(), user.ID)
	case req.Action == actionDelete && req.AlertID != "":
		err = s.alerts.Delete(r.Context(), user.ID, req.AlertID)
	default:
		respondBadRequest(w, "Invalid action or missing alert_id")
		return
	}
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	prefs, err := s.alerts.Preferences(r.Context(), user.ID)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var patch alerts.PreferencesPatch
	if err := decodeBody(w, r, &patch); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}
	if err := patch.Validate(); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	prefs, err := s.alerts.UpdatePreferences(r.Context(), user.ID, &patch)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "preferences": prefs})
}
