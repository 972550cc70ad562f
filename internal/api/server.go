// Package api exposes the competitor intelligence HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/metrics"
	"github.com/solosuccess/competitor-intel/internal/repository"
)

// Server holds the dependencies of the HTTP handlers
type Server struct {
	config      *config.Config
	competitors repository.CompetitorRepository
	activities  repository.ActivityRepository
	users       repository.UserRepository
	tracker     Tracker
	alerts      AlertManager
	briefings   BriefingService
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	competitors repository.CompetitorRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	trackerService Tracker,
	alertService AlertManager,
	briefingService BriefingService,
	m *metrics.Metrics,
) *Server {
	return &Server{
		config:      cfg,
		competitors: competitors,
		activities:  activities,
		users:       users,
		tracker:     trackerService,
		alerts:      alertService,
		briefings:   briefingService,
		metrics:     m,
		now:         time.Now,
	}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	cron := router.PathPrefix("/api/cron").Subrouter()
	cron.Use(s.requireCronSecret)
	cron.HandleFunc("/track-competitors", s.handleCronTrack).Methods(http.MethodPost)
	cron.HandleFunc("/send-briefings", s.handleCronBriefings).Methods(http.MethodPost)
	cron.HandleFunc("/send-briefings", s.handleCronBriefingsHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)

	api.HandleFunc("/competitors", s.handleListCompetitors).Methods(http.MethodGet)
	api.HandleFunc("/competitors", s.handleCreateCompetitor).Methods(http.MethodPost)
	api.HandleFunc("/competitors/{id}", s.handleGetCompetitor).Methods(http.MethodGet)
	api.HandleFunc("/competitors/{id}", s.handleUpdateCompetitor).Methods(http.MethodPatch)
	api.HandleFunc("/competitors/{id}", s.handleDeleteCompetitor).Methods(http.MethodDelete)
	api.HandleFunc("/competitors/{id}/activities", s.handleCompetitorActivities).Methods(http.MethodGet)
	api.HandleFunc("/activities", s.handleListActivities).Methods(http.MethodGet)
	api.HandleFunc("/track", s.handleTrack).Methods(http.MethodPost)

	api.HandleFunc("/alerts", s.handleListAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlertAction).Methods(http.MethodPost)
	api.HandleFunc("/alerts/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/alerts/preferences", s.handleUpdatePreferences).Methods(http.MethodPut)

	api.HandleFunc("/briefings", s.handleBriefing).Methods(http.MethodGet)
	api.HandleFunc("/briefings/history", s.handleBriefingHistory).Methods(http.MethodGet)
	api.HandleFunc("/briefings/history/{name}", s.handleArchivedBriefing).Methods(http.MethodGet)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.tracker.GetMetrics()))
}
