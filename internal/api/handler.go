package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/omatztw/timetracker/internal/integrations"
	"github.com/omatztw/timetracker/internal/storage"
)

const maxSyncBodySize = 1 << 20 // 1MB

// Tracker is the tracking toggle the handler flips and reads.
type Tracker interface {
	SetTracking(on bool)
	IsTracking() bool
}

// Deps carries the handler's collaborators.
type Deps struct {
	Store   *storage.Store
	Tracker Tracker
	Plugins *integrations.Registry
	// Token, when non-empty, is required as a bearer token on every route
	// except /health.
	Token string
}

// NewHandler builds the HTTP command surface consumed by any presentation
// layer (CLI, tray app, web UI).
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/tracking/start", handleSetTracking(deps, true))
		r.Post("/tracking/stop", handleSetTracking(deps, false))
		r.Get("/tracking", handleGetTracking(deps))

		r.Get("/activities", handleActivities(deps))
		r.Get("/activities/{id}/tickets", handleExtractTickets(deps))
		r.Get("/summary/apps", handleAppSummary(deps))
		r.Get("/summary/domains", handleDomainSummary(deps))

		r.Get("/plugins", handleListPlugins(deps))
		r.Post("/plugins/reload", handleReloadPlugins(deps))
		r.Post("/plugins/{name}/sync", handleSync(deps))
		r.Post("/plugins/{name}/test", handleTestConnection(deps))
	})

	return r
}

func handleSetTracking(deps Deps, on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		deps.Tracker.SetTracking(on)
		writeJSON(w, http.StatusOK, map[string]bool{"tracking": on})
	}
}

func handleGetTracking(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"tracking": deps.Tracker.IsTracking()})
	}
}

func handleActivities(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		activities, err := deps.Store.ActivitiesOn(date)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "listing activities: %v", err)
			return
		}
		if activities == nil {
			activities = []storage.Activity{}
		}
		writeJSON(w, http.StatusOK, activities)
	}
}

func handleAppSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		summaries, err := deps.Store.SummarizeByProcess(date)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "summarizing by process: %v", err)
			return
		}
		if summaries == nil {
			summaries = []storage.AppSummary{}
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleDomainSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		summaries, err := deps.Store.SummarizeByDomain(date)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "summarizing by domain: %v", err)
			return
		}
		if summaries == nil {
			summaries = []storage.DomainSummary{}
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleListPlugins(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names := deps.Plugins.List()
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"plugins": names})
	}
}

func handleReloadPlugins(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := deps.Plugins.Load()
		writeJSON(w, http.StatusOK, report)
	}
}

func handleExtractTickets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activity, ok := activityFromPath(w, r, deps)
		if !ok {
			return
		}
		matches := deps.Plugins.ExtractAll(activity)
		if matches == nil {
			matches = []integrations.TicketMatch{}
		}
		writeJSON(w, http.StatusOK, map[string][]integrations.TicketMatch{"tickets": matches})
	}
}

type syncRequest struct {
	ActivityID int64  `json:"activity_id"`
	TicketID   string `json:"ticket_id"`
}

func handleSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		r.Body = http.MaxBytesReader(w, r.Body, maxSyncBodySize)
		defer r.Body.Close()

		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TicketID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ticket_id is required")
			return
		}

		activity, err := deps.Store.GetActivity(req.ActivityID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "activity %d not found", req.ActivityID)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "loading activity: %v", err)
			return
		}

		result, err := deps.Plugins.Sync(r.Context(), name, activity, req.TicketID)
		if err != nil {
			if errors.Is(err, integrations.ErrPluginNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
				return
			}
			httpError(w, http.StatusBadGateway, "api_error", "sync failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleTestConnection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		connected, err := deps.Plugins.TestConnection(r.Context(), name)
		if err != nil {
			if errors.Is(err, integrations.ErrPluginNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
				return
			}
			httpError(w, http.StatusBadGateway, "api_error", "connection test failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
	}
}

func activityFromPath(w http.ResponseWriter, r *http.Request, deps Deps) (storage.Activity, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid activity id")
		return storage.Activity{}, false
	}

	activity, err := deps.Store.GetActivity(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "activity %d not found", id)
			return storage.Activity{}, false
		}
		httpError(w, http.StatusInternalServerError, "api_error", "loading activity: %v", err)
		return storage.Activity{}, false
	}
	return activity, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
