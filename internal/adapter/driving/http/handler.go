// Package httphandler is the JSON API driving adapter.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/pulldash/internal/application"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Refresher queues forced sync cycles in the background.
// *application.SyncService implements it.
type Refresher interface {
	RequestPulls() error
	RequestViewers() error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	pulls       driven.PullStore
	stars       driven.StarStore
	sections    driven.SectionStore
	connections driven.ConnectionStore
	activities  driven.ActivityStore
	clients     driven.ClientCache
	refresher   Refresher
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	pulls driven.PullStore,
	stars driven.StarStore,
	sections driven.SectionStore,
	connections driven.ConnectionStore,
	activities driven.ActivityStore,
	clients driven.ClientCache,
	refresher Refresher,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		pulls:       pulls,
		stars:       stars,
		sections:    sections,
		connections: connections,
		activities:  activities,
		clients:     clients,
		refresher:   refresher,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/pulls", h.ListPulls)
	mux.HandleFunc("GET /api/v1/pulls/{uid}", h.GetPull)
	mux.HandleFunc("PUT /api/v1/pulls/{uid}/star", h.StarPull)
	mux.HandleFunc("DELETE /api/v1/pulls/{uid}/star", h.UnstarPull)

	mux.HandleFunc("GET /api/v1/sections", h.ListSections)
	mux.HandleFunc("POST /api/v1/sections", h.CreateSection)
	mux.HandleFunc("PUT /api/v1/sections/{id}", h.UpdateSection)
	mux.HandleFunc("DELETE /api/v1/sections/{id}", h.DeleteSection)

	mux.HandleFunc("GET /api/v1/connections", h.ListConnections)
	mux.HandleFunc("POST /api/v1/connections", h.CreateConnection)
	mux.HandleFunc("PUT /api/v1/connections/{id}", h.UpdateConnection)
	mux.HandleFunc("DELETE /api/v1/connections/{id}", h.DeleteConnection)

	mux.HandleFunc("POST /api/v1/refresh/pulls", h.RefreshPulls)
	mux.HandleFunc("POST /api/v1/refresh/viewers", h.RefreshViewers)
	mux.HandleFunc("GET /api/v1/activities", h.ListActivities)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListPulls returns cached pulls, newest first. Supported filters are
// section, starred, attention, host and repo.
func (h *Handler) ListPulls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := driven.PullFilter{
		SectionID: q.Get("section"),
		Host:      q.Get("host"),
		Repo:      q.Get("repo"),
	}

	var err error
	if filter.Starred, err = boolParam(q.Get("starred")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid starred parameter")
		return
	}
	if filter.Attention, err = boolParam(q.Get("attention")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid attention parameter")
		return
	}

	pulls, err := h.pulls.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list pulls", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]PullResponse, 0, len(pulls))
	for _, p := range pulls {
		resp = append(resp, toPullResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPull returns one cached pull with its reviews and discussions.
func (h *Handler) GetPull(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	p, err := h.pulls.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, driven.ErrPullNotFound) {
			writeError(w, http.StatusNotFound, "pull not found")
			return
		}
		h.logger.Error("failed to get pull", "uid", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toPullDetailResponse(p))
}

// StarPull stars a cached pull.
func (h *Handler) StarPull(w http.ResponseWriter, r *http.Request) {
	h.setStarred(w, r, true)
}

// UnstarPull removes the star from a pull.
func (h *Handler) UnstarPull(w http.ResponseWriter, r *http.Request) {
	h.setStarred(w, r, false)
}

func (h *Handler) setStarred(w http.ResponseWriter, r *http.Request, starred bool) {
	uid := r.PathValue("uid")

	if _, err := h.pulls.Get(r.Context(), uid); err != nil {
		if errors.Is(err, driven.ErrPullNotFound) {
			writeError(w, http.StatusNotFound, "pull not found")
			return
		}
		h.logger.Error("failed to get pull", "uid", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.stars.SetStarred(r.Context(), uid, starred); err != nil {
		h.logger.Error("failed to set star", "uid", uid, "starred", starred, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshPulls queues a forced pull sync and returns without waiting for it.
func (h *Handler) RefreshPulls(w http.ResponseWriter, _ *http.Request) {
	h.requestRefresh(w, application.ActivityPulls, h.refresher.RequestPulls)
}

// RefreshViewers queues a forced viewer sync and returns without waiting for it.
func (h *Handler) RefreshViewers(w http.ResponseWriter, _ *http.Request) {
	h.requestRefresh(w, application.ActivityViewers, h.refresher.RequestViewers)
}

func (h *Handler) requestRefresh(w http.ResponseWriter, activity string, request func() error) {
	if err := request(); err != nil {
		h.logger.Warn("forced refresh rejected", "activity", activity, "error", err)
		writeError(w, http.StatusServiceUnavailable, "sync is not running")
		return
	}

	writeJSON(w, http.StatusAccepted, RefreshResponse{Activity: activity, Status: "accepted"})
}

// ListActivities returns the run state of every background job.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.activities.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list activities", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ActivityResponse, 0, len(activities))
	for _, a := range activities {
		resp = append(resp, toActivityResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// boolParam parses an optional boolean query parameter.
func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
