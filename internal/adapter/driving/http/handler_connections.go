package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// ListConnections returns all connections without their tokens.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context())
	if err != nil {
		h.connectionError(w, "failed to list connections", "", err)
		return
	}

	resp := make([]ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, toConnectionResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateConnection stores a new connection and refreshes viewers so it can
// be used by the next pull sync.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeConnectionRequest(w, r)
	if !ok {
		return
	}

	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	conn := model.Connection{
		ID:      uuid.NewString(),
		Label:   strings.TrimSpace(req.Label),
		BaseURL: normalizeBaseURL(req.BaseURL),
		Host:    strings.TrimSpace(req.Host),
		Token:   strings.TrimSpace(req.Token),
		Orgs:    req.Orgs,
	}

	if err := h.connections.Put(r.Context(), conn); err != nil {
		h.connectionError(w, "failed to create connection", conn.ID, err)
		return
	}

	h.requestViewers(conn.ID)

	writeJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

// UpdateConnection replaces a connection's settings. An empty token keeps
// the stored one. Cached clients are dropped so the next sync uses the new
// settings. A new token or base URL also drops the cached viewer, which may
// belong to another user.
func (h *Handler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	req, ok := decodeConnectionRequest(w, r)
	if !ok {
		return
	}

	conn, err := h.connections.Get(r.Context(), id)
	if err != nil {
		h.connectionError(w, "failed to get connection", id, err)
		return
	}

	before := conn
	conn.Label = strings.TrimSpace(req.Label)
	conn.BaseURL = normalizeBaseURL(req.BaseURL)
	conn.Host = strings.TrimSpace(req.Host)
	conn.Orgs = req.Orgs
	if token := strings.TrimSpace(req.Token); token != "" {
		conn.Token = token
	}
	credentialsChanged := conn.Token != before.Token || conn.ResolvedBaseURL() != before.ResolvedBaseURL()
	if credentialsChanged {
		conn.Viewer = nil
	}

	if err := h.connections.Put(r.Context(), conn); err != nil {
		h.connectionError(w, "failed to update connection", id, err)
		return
	}

	h.clients.Invalidate(id)
	if credentialsChanged {
		h.requestViewers(id)
	}

	writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// DeleteConnection removes a connection together with its cached pulls.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.connections.Delete(r.Context(), id); err != nil {
		h.connectionError(w, "failed to delete connection", id, err)
		return
	}

	h.clients.Invalidate(id)

	w.WriteHeader(http.StatusNoContent)
}

// requestViewers queues a viewer sync after a connection change. The
// connection is saved either way; a stopped sync only delays the profile.
func (h *Handler) requestViewers(id string) {
	if err := h.refresher.RequestViewers(); err != nil {
		h.logger.Warn("failed to queue viewer refresh", "id", id, "error", err)
	}
}

// connectionError maps connection store errors to responses.
func (h *Handler) connectionError(w http.ResponseWriter, msg, id string, err error) {
	switch {
	case errors.Is(err, driven.ErrConnectionNotFound):
		writeError(w, http.StatusNotFound, "connection not found")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		h.logger.Error(msg, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "stored tokens are encrypted but no secret key is configured")
	default:
		h.logger.Error(msg, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeConnectionRequest(w http.ResponseWriter, r *http.Request) (ConnectionRequest, bool) {
	var req ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}

	if strings.TrimSpace(req.Label) == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return req, false
	}
	if !isValidBaseURL(req.BaseURL) {
		writeError(w, http.StatusBadRequest, "invalid base_url: expected an http(s) API URL")
		return req, false
	}
	for _, org := range req.Orgs {
		if strings.TrimSpace(org) == "" || strings.ContainsAny(org, " /") {
			writeError(w, http.StatusBadRequest, "invalid org name")
			return req, false
		}
	}

	return req, true
}

// isValidBaseURL accepts an empty value (github.com) or an absolute http(s) URL.
func isValidBaseURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// normalizeBaseURL trims the trailing slash so equal endpoints compare equal.
func normalizeBaseURL(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}
