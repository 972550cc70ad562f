package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/repository"
)

const trackingFeature = "Competitor Stalker"

// competitorRequest is the body of create and update calls. Nil fields are left unchanged on update.
type competitorRequest struct {
	Name            *string                 `json:"name"`
	Website         *string                 `json:"website"`
	Industry        *string                 `json:"industry"`
	Description     *string                 `json:"description"`
	TrackingSources *models.TrackingSources `json:"tracking_sources"`
	IsActive        *bool                   `json:"is_active"`
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (req *competitorRequest) validate(creating bool) error {
	if creating && (req.Name == nil || strings.TrimSpace(*req.Name) == "") {
		return errors.New("name is required")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return errors.New("name must not be empty")
	}
	if req.Website != nil && *req.Website != "" && !validURL(*req.Website) {
		return errors.New("website must be a valid URL")
	}
	if ts := req.TrackingSources; ts != nil {
		for field, value := range map[string]string{"blog": ts.Blog, "linkedin": ts.LinkedIn, "facebook": ts.Facebook} {
			if value != "" && !validURL(value) {
				return fmt.Errorf("tracking_sources.%s must be a valid URL", field)
			}
		}
	}
	return nil
}

func (req *competitorRequest) apply(c *models.CompetitorProfile) {
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Website != nil {
		c.Website = *req.Website
	}
	if req.Industry != nil {
		c.Industry = *req.Industry
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.TrackingSources != nil {
		c.TrackingSources = *req.TrackingSources
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
}

// ownedCompetitor loads the competitor in the route and checks it belongs to the caller
func (s *Server) ownedCompetitor(w http.ResponseWriter, r *http.Request) (*models.CompetitorProfile, bool) {
	user := userFrom(r.Context())
	competitor, err := s.competitors.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, repository.ErrNotFound) || (err == nil && competitor.UserID != user.ID) {
		respondNotFound(w, "Competitor")
		return nil, false
	}
	if err != nil {
		respondInternalError(w, err)
		return nil, false
	}
	return competitor, true
}

func (s *Server) handleListCompetitors(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	list, err := s.competitors.ListByUser(r.Context(), user.ID, false)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"competitors": list})
}

func (s *Server) handleCreateCompetitor(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !s.checkCompetitorLimit(w, r, user) {
		return
	}

	var req competitorRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}
	if err := req.validate(true); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	competitor := &models.CompetitorProfile{
		UserID:          user.ID,
		TrackingSources: models.TrackingSources{Website: true},
		IsActive:        true,
	}
	req.apply(competitor)

	if err := s.competitors.Create(r.Context(), competitor); err != nil {
		respondInternalError(w, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user": user.ID, "competitor": competitor.ID}).Info("Competitor created")
	respondJSON(w, http.StatusCreated, map[string]interface{}{"competitor": competitor})
}

// checkCompetitorLimit rejects the request when the caller's plan has no room for
// another active competitor
func (s *Server) checkCompetitorLimit(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	if !s.requirePaidTier(w, user, trackingFeature) {
		return false
	}
	count, err := s.competitors.CountActive(r.Context(), user.ID)
	if err != nil {
		respondInternalError(w, err)
		return false
	}
	if limit := s.config.CompetitorLimit(user.SubscriptionTier); count >= limit {
		respondError(w, http.StatusForbidden,
			fmt.Sprintf("You can track up to %d competitors with your %s plan", limit, user.SubscriptionTier))
		return false
	}
	return true
}

func (s *Server) handleGetCompetitor(w http.ResponseWriter, r *http.Request) {
	competitor, ok := s.ownedCompetitor(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"competitor": competitor})
}

func (s *Server) handleUpdateCompetitor(w http.ResponseWriter, r *http.Request) {
	competitor, ok := s.ownedCompetitor(w, r)
	if !ok {
		return
	}

	var req competitorRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}
	if err := req.validate(false); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	if req.IsActive != nil && *req.IsActive && !competitor.IsActive {
		if !s.checkCompetitorLimit(w, r, userFrom(r.Context())) {
			return
		}
	}

	req.apply(competitor)
	if err := s.competitors.Update(r.Context(), competitor); err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"competitor": competitor})
}

func (s *Server) handleDeleteCompetitor(w http.ResponseWriter, r *http.Request) {
	competitor, ok := s.ownedCompetitor(w, r)
	if !ok {
		return
	}
	if err := s.competitors.Deactivate(r.Context(), competitor.ID); err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCompetitorActivities(w http.ResponseWriter, r *http.Request) {
	competitor, ok := s.ownedCompetitor(w, r)
	if !ok {
		return
	}
	list, err := s.activities.List(r.Context(), models.ActivityFilter{
		CompetitorIDs: []string{competitor.ID},
		Limit:         competitorActivityCap,
	})
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"activities": list})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	filter := models.ActivityFilter{Limit: parseLimit(r, defaultActivityLimit, maxActivityLimit)}
	if raw := r.URL.Query().Get("importance"); raw != "" {
		importance := models.Importance(raw)
		if !importance.Valid() {
			respondBadRequest(w, "importance must be one of critical, high, medium, low")
			return
		}
		filter.Importance = importance
	}

	competitors, err := s.competitors.ListByUser(r.Context(), user.ID, false)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	if len(competitors) == 0 {
		respondJSON(w, http.StatusOK, map[string]interface{}{"activities": []*models.CompetitorActivity{}})
		return
	}
	for _, c := range competitors {
		filter.CompetitorIDs = append(filter.CompetitorIDs, c.ID)
	}

	list, err := s.activities.List(r.Context(), filter)
	if err != nil {
		respondInternalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"activities": list})
}

type trackRequest struct {
	CompetitorID string `json:"competitor_id"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !s.requirePaidTier(w, user, trackingFeature) {
		return
	}

	var req trackRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	var results []*models.TrackingResult
	if req.CompetitorID != "" {
		competitor, err := s.competitors.Get(r.Context(), req.CompetitorID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && competitor.UserID != user.ID) {
			respondNotFound(w, "Competitor")
			return
		}
		if err != nil {
			respondInternalError(w, err)
			return
		}
		results = []*models.TrackingResult{s.tracker.TrackCompetitor(r.Context(), competitor.ID)}
	} else {
		var err error
		results, err = s.tracker.TrackAllForUser(r.Context(), user.ID)
		if err != nil {
			respondInternalError(w, err)
			return
		}
	}

	summary := models.TrackingSummary{TotalTracked: len(results)}
	for _, res := range results {
		summary.TotalActivities += res.ActivitiesDetected
		summary.Errors += len(res.Errors)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": results,
		"summary": summary,
	})
}
