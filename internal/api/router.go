package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/internal/ranking/sync"
	"github.com/questlab/ranksync/pkg/logger"
)

// Engine is the read-side view of the sync controller the API exposes.
type Engine interface {
	State() sync.State
	ActivePeriod() ranking.Period
	Standings(period ranking.Period) ([]ranking.Entrant, bool)
	OutOfWindow(period ranking.Period) *ranking.OutOfWindowEntry
	Err() error
}

// NewRouter creates the HTTP router over the engine.
func NewRouter(engine Engine, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthzHandler).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/status", statusHandler(engine)).Methods("GET")
	v1.HandleFunc("/standings/{period}", standingsHandler(engine)).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"state":        engine.State().String(),
			"activePeriod": engine.ActivePeriod(),
		}
		if err := engine.Err(); err != nil {
			status["error"] = err.Error()
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func standingsHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := ranking.ParsePeriod(mux.Vars(r)["period"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		entrants, ok := engine.Standings(period)
		if !ok {
			// No snapshot yet; distinct from an accepted empty window.
			entrants = []ranking.Entrant{}
		}

		writeJSON(w, http.StatusOK, ranking.Update{
			Period:      period,
			Entrants:    entrants,
			OutOfWindow: engine.OutOfWindow(period),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
