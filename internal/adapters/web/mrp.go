package web

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"factory-mrp/internal/app"
)

type requirementView struct {
	RawMaterialID    uuid.UUID       `json:"raw_material_id"`
	RawMaterialCode  string          `json:"raw_material_code"`
	RawMaterial      string          `json:"raw_material"`
	QuantityPerUnit  decimal.Decimal `json:"quantity_per_unit"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	Unit             string          `json:"unit"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	Shortage         decimal.Decimal `json:"shortage"`
}

type calculateResponse struct {
	ItemID       uuid.UUID         `json:"item_id"`
	ItemCode     string            `json:"item_code"`
	ItemName     string            `json:"item_name"`
	Quantity     int64             `json:"quantity"`
	Requirements []requirementView `json:"requirements"`
	Feasible     bool              `json:"feasible"`
}

func newCalculateResponse(res *app.RequirementsResult) calculateResponse {
	out := calculateResponse{
		ItemID:       res.Item.ID,
		ItemCode:     res.Item.Code,
		ItemName:     res.Item.Name,
		Quantity:     res.Quantity,
		Requirements: make([]requirementView, len(res.Requirements)),
		Feasible:     res.Feasible,
	}
	for i, req := range res.Requirements {
		out.Requirements[i] = requirementView{
			RawMaterialID:    req.RawMaterialID,
			RawMaterialCode:  req.RawMaterialCode,
			RawMaterial:      req.RawMaterialName,
			QuantityPerUnit:  req.QuantityPerUnit,
			RequiredQuantity: req.TotalRequired,
			Unit:             req.Unit,
			CurrentStock:     req.CurrentStock,
			Shortage:         req.Shortage,
		}
	}
	return out
}

// apiCalculate handles POST /api/mrp/calculate.
func (h *Handler) apiCalculate(w http.ResponseWriter, r *http.Request) {
	var req app.CalculateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CalculateRequirements(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newCalculateResponse(res))
}

// apiExportCalculation handles GET /api/mrp/calculate/export?item_id=&quantity=.
func (h *Handler) apiExportCalculation(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.URL.Query().Get("item_id"))
	if err != nil {
		writeError(w, r, "invalid item_id: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	qty, ok := queryInt64(w, r, "quantity")
	if !ok {
		return
	}

	out, err := h.svc.ExportRequirements(r.Context(), app.CalculateRequest{ItemID: itemID, Quantity: qty})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Content)))
	_, _ = w.Write(out.Content)
}

// apiCalculateSchema handles GET /api/mrp/schema.
func (h *Handler) apiCalculateSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"request":  calculateSchemas.request,
		"response": calculateSchemas.response,
	})
}

var calculateSchemas = struct {
	request, response *jsonschema.Schema
}{
	request:  reflectSchema(app.CalculateRequest{}),
	response: reflectSchema(calculateResponse{}),
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

func reflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case decimalType:
				return &jsonschema.Schema{Type: "string", Pattern: `^-?\d+(\.\d+)?$`}
			case uuidType:
				return &jsonschema.Schema{Type: "string", Format: "uuid"}
			}
			return nil
		},
	}
	return reflector.Reflect(v)
}
