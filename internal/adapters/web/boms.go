package web

import (
	"net/http"

	"factory-mrp/internal/app"
)

func (h *Handler) apiListBOMs(w http.ResponseWriter, r *http.Request) {
	boms, err := h.svc.ListBOMs(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"boms": boms})
}

func (h *Handler) apiDefineBOM(w http.ResponseWriter, r *http.Request) {
	var req app.DefineBOMRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	bom, err := h.svc.DefineBOM(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, bom)
}

// apiGetBOM handles GET /api/boms/{id}, where id is the finished good.
func (h *Handler) apiGetBOM(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	bom, err := h.svc.GetBOM(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bom)
}

func (h *Handler) apiDeleteBOM(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteBOM(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
