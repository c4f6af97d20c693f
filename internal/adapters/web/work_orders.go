package web

import (
	"net/http"

	"factory-mrp/internal/app"
)

// apiListWorkOrders handles GET /api/work-orders?status=.
func (h *Handler) apiListWorkOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListWorkOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiCreateWorkOrder handles POST /api/work-orders. A shortage is reported as
// 409 with the full shortage list and nothing is written.
func (h *Handler) apiCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateWorkOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateWorkOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (h *Handler) apiGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	wo, err := h.svc.GetWorkOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, wo)
}

// apiUpdateWorkOrder handles PATCH /api/work-orders/{id}.
func (h *Handler) apiUpdateWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.UpdateWorkOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wo, err := h.svc.UpdateWorkOrder(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, wo)
}

func (h *Handler) apiWorkOrderLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.WorkOrderLogs(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}
