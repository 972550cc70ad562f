package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// handleCronTrack runs a full tracking pass synchronously and reports the summary
func (s *Server) handleCronTrack(w http.ResponseWriter, r *http.Request) {
	summary, err := s.tracker.TrackAllActive(r.Context())
	if err != nil {
		logrus.Errorf("Cron tracking run failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to track competitors")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"summary":   summary,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCronBriefings(w http.ResponseWriter, r *http.Request) {
	kind, err := briefingKind(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	result, err := s.briefings.Deliver(r.Context(), kind)
	if err != nil {
		logrus.Errorf("Cron briefing delivery failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to send briefings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"type":        kind,
		"sent_count":  result.SentCount,
		"error_count": result.ErrorCount,
		"timestamp":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCronBriefingsHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"endpoint":  "briefing-delivery-cron",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}
