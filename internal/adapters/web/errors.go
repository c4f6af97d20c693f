package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"factory-mrp/internal/core"
)

type errorResponse struct {
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id,omitempty"`
	Shortages []core.Shortage `json:"shortages,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps domain errors to an HTTP status and a stable error code.
// Order matters: InsufficientStockError also matches ErrInsufficientStock.
var errorStatus = []struct {
	err    error
	code   string
	status int
}{
	{core.ErrInvalidQuantity, "INVALID_QUANTITY", http.StatusBadRequest},
	{core.ErrInvalidInput, "BAD_REQUEST", http.StatusBadRequest},
	{core.ErrNoBOMDefined, "NO_BOM_DEFINED", http.StatusNotFound},
	{core.ErrItemNotFound, "ITEM_NOT_FOUND", http.StatusNotFound},
	{core.ErrWorkOrderNotFound, "WORK_ORDER_NOT_FOUND", http.StatusNotFound},
	{core.ErrInvalidBOMLine, "INVALID_BOM_LINE", http.StatusUnprocessableEntity},
	{core.ErrCyclicBOM, "CYCLIC_BOM", http.StatusUnprocessableEntity},
	{core.ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusConflict},
	{core.ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
	{core.ErrBOMExists, "BOM_EXISTS", http.StatusConflict},
	{core.ErrDuplicateItemCode, "DUPLICATE_ITEM_CODE", http.StatusConflict},
	{core.ErrDuplicateWONumber, "DUPLICATE_WO_NUMBER", http.StatusConflict},
}

// writeServiceError translates an ApplicationService error into a response.
// Storage failures and unknown errors are logged and reported without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ise *core.InsufficientStockError
	if errors.As(err, &ise) {
		writeErrorResponse(w, r, errorResponse{
			Error:     ise.Error(),
			Code:      "INSUFFICIENT_STOCK",
			Shortages: ise.Items,
		}, http.StatusConflict)
		return
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			writeError(w, r, err.Error(), m.code, m.status)
			return
		}
	}

	h.logger.Error("request failed",
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	code := "INTERNAL_ERROR"
	if errors.Is(err, core.ErrStorageFailure) {
		code = "STORAGE_FAILURE"
	}
	writeError(w, r, "internal server error", code, http.StatusInternalServerError)
}
