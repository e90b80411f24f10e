package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/fleetwatch/internal/connection"
)

// Pinger checks a dependency, such as the journal database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the /health response body.
type Health struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// NewHealthHandler reports channel state and queue depth. It answers 503
// when the manager has given up (Error) or db fails its ping; db may be nil.
func NewHealthHandler(src Source, db Pinger, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := src.Stats()
		health := Health{
			Status: "healthy",
			Components: map[string]any{
				"channel": map[string]any{
					"state":              stats.State.String(),
					"session_id":         stats.SessionID,
					"reconnect_attempts": stats.ReconnectAttempts,
					"queued":             stats.Queued,
					"queue_dropped":      stats.QueueDropped,
				},
			},
		}

		switch stats.State {
		case connection.StateError:
			health.Status = "unhealthy"
		case connection.StateConnected:
		default:
			health.Status = "degraded"
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["journal_db"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["journal_db"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
}
