package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// ListSections returns all sections ordered by position.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.sections.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list sections", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]SectionResponse, 0, len(sections))
	for _, s := range sections {
		resp = append(resp, toSectionResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateSection adds a section. Its pulls appear after the next pull sync.
func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSectionRequest(w, r)
	if !ok {
		return
	}

	section := model.Section{
		ID:        uuid.NewString(),
		Label:     strings.TrimSpace(req.Label),
		Search:    strings.TrimSpace(req.Search),
		Notified:  req.Notified,
		Attention: req.Attention,
	}

	if req.Position != nil {
		section.Position = *req.Position
	} else {
		existing, err := h.sections.List(r.Context())
		if err != nil {
			h.logger.Error("failed to list sections", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		for _, s := range existing {
			section.Position = max(section.Position, s.Position+1)
		}
	}

	if err := h.sections.Put(r.Context(), section); err != nil {
		h.logger.Error("failed to create section", "label", section.Label, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toSectionResponse(section))
}

// UpdateSection replaces a section's settings. A missing position keeps the
// current one.
func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	req, ok := decodeSectionRequest(w, r)
	if !ok {
		return
	}

	section, err := h.sections.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrSectionNotFound) {
			writeError(w, http.StatusNotFound, "section not found")
			return
		}
		h.logger.Error("failed to get section", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	section.Label = strings.TrimSpace(req.Label)
	section.Search = strings.TrimSpace(req.Search)
	section.Notified = req.Notified
	section.Attention = req.Attention
	if req.Position != nil {
		section.Position = *req.Position
	}

	if err := h.sections.Put(r.Context(), section); err != nil {
		h.logger.Error("failed to update section", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSectionResponse(section))
}

// DeleteSection removes a section and its pull memberships.
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.sections.Delete(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrSectionNotFound) {
			writeError(w, http.StatusNotFound, "section not found")
			return
		}
		h.logger.Error("failed to delete section", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeSectionRequest(w http.ResponseWriter, r *http.Request) (SectionRequest, bool) {
	var req SectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}

	if strings.TrimSpace(req.Label) == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return req, false
	}
	if strings.TrimSpace(req.Search) == "" {
		writeError(w, http.StatusBadRequest, "search is required")
		return req, false
	}
	if req.Position != nil && *req.Position < 0 {
		writeError(w, http.StatusBadRequest, "position must not be negative")
		return req, false
	}

	return req, true
}
