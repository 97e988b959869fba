package handlers

import (
	"net/http"

	"github.com/fanvault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// TagHandler serves the tag index.
type TagHandler struct {
	tagService *services.TagService
}

// NewTagHandler constructs a handler with the provided service.
func NewTagHandler(tagService *services.TagService) *TagHandler {
	return &TagHandler{tagService: tagService}
}

// TagRouter registers tag routes on the given router.
func TagRouter(r chi.Router, tagService *services.TagService) {
	handler := NewTagHandler(tagService)

	r.Get("/", handler.ListTags)
}

// ListTags returns every tag with its usage count, most used first.
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tagService.List(r.Context())
	if err != nil {
		writeInternalError(w, r, "failed to list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
