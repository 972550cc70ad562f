package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/repository"
)

// UserHeader carries the caller identity set by the upstream auth proxy
const UserHeader = "X-User-ID"

type userKey struct{}

func userFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		s.metrics.RecordRequest(r.Method, route, rec.status, elapsed)

		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"route":    route,
			"status":   rec.status,
			"duration": elapsed.String(),
		}).Debug("Handled request")
	})
}

// requireUser resolves the caller from the identity header
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := s.users.Get(r.Context(), userID)
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err != nil {
			respondInternalError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

// requireCronSecret checks the bearer token when a cron secret is configured
func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.CronSecret != "" {
			expected := "Bearer " + s.config.CronSecret
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				respondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requirePaidTier rejects callers whose plan does not include competitor tracking
func (s *Server) requirePaidTier(w http.ResponseWriter, user *models.User, feature string) bool {
	if s.config.IsPaidTier(user.SubscriptionTier) {
		return true
	}
	respondError(w, http.StatusForbidden, feature+" requires an Accelerator or Premium subscription")
	return false
}
