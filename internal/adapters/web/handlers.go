package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"factory-mrp/internal/app"
	"factory-mrp/internal/config"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	logger    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, cfg config.ServerConfig, jwtSecret string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(cfg.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(h.Actor)
		r.Use(RequestBodyLimit(maxBody))

		r.Get("/api/auth/me", h.me)

		// ── MRP ───────────────────────────────────────────────────────────────
		r.Post("/api/mrp/calculate", h.apiCalculate)
		r.Get("/api/mrp/calculate/export", h.apiExportCalculation)
		r.Get("/api/mrp/schema", h.apiCalculateSchema)

		// ── Items & stock ─────────────────────────────────────────────────────
		r.Get("/api/items", h.apiListItems)
		r.Post("/api/items", h.apiCreateItem)
		r.Get("/api/items/{id}", h.apiGetItem)
		r.Post("/api/items/{id}/receive", h.apiReceiveStock)
		r.Get("/api/items/{id}/movements", h.apiItemMovements)
		r.Get("/api/inventory/stock", h.apiStockLevels)
		r.Get("/api/inventory/reconcile", h.apiReconcile)

		// ── Bills of materials ────────────────────────────────────────────────
		r.Get("/api/boms", h.apiListBOMs)
		r.Post("/api/boms", h.apiDefineBOM)
		r.Get("/api/boms/{id}", h.apiGetBOM)
		r.Delete("/api/boms/{id}", h.apiDeleteBOM)

		// ── Work orders ───────────────────────────────────────────────────────
		r.Get("/api/work-orders", h.apiListWorkOrders)
		r.Post("/api/work-orders", h.apiCreateWorkOrder)
		r.Get("/api/work-orders/{id}", h.apiGetWorkOrder)
		r.Patch("/api/work-orders/{id}", h.apiUpdateWorkOrder)
		r.Get("/api/work-orders/{id}/logs", h.apiWorkOrderLogs)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// idParam parses the {id} URL parameter, writing 400 on failure.
func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid id: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt64 parses an integer query parameter, writing 400 on failure.
func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		writeError(w, r, "invalid "+name+": "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
