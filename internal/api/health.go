package api

import (
	"net/http"

	"github.com/lectern/lectern/internal/log"
)

// health is a liveness probe. Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the corpus is loaded. A server with zero courses
// still answers (the model just has nothing to search), so this is
// informational rather than gating.
func readiness(service QueryService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := service.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ready",
			"courses": stats.TotalCourses,
		}, logger)
	}
}
