package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	defaultActivityLimit  = 20
	maxActivityLimit      = 100
	competitorActivityCap = 50
	maxRequestBodyBytes   = 1 << 20
)

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondNotFound(w http.ResponseWriter, resource string) {
	respondError(w, http.StatusNotFound, resource+" not found")
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, message)
}

func respondInternalError(w http.ResponseWriter, err error) {
	logrus.Errorf("Request failed: %v", err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	return dec.Decode(v)
}

// parseLimit reads ?limit= clamped to [1, max], falling back to def.
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
