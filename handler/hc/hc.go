package hc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check probes one dependency of the process.
type Check func(ctx context.Context) error

// Handler reports version and uptime, answering 503 while any check fails.
func Handler(version string, checks map[string]Check) http.Handler {
	t := time.Now()
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				failed[name] = err.Error()
			}
		}

		body := map[string]any{
			"version": version,
			"uptime":  time.Since(t).String(),
		}

		if len(failed) > 0 {
			body["failed"] = failed
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	return http.HandlerFunc(fn)
}
