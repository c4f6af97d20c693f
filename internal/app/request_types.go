package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculateRequest asks for the material requirements of a production run.
type CalculateRequest struct {
	ItemID   uuid.UUID `json:"item_id" jsonschema:"required,description=Finished good to produce"`
	Quantity int64     `json:"quantity" jsonschema:"required,minimum=1,description=Units of the finished good"`
}

// CreateItemRequest is the input for adding an item to the catalog.
type CreateItemRequest struct {
	Code           string           `json:"item_code"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Category       string           `json:"category"`
	Unit           string           `json:"unit"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	OpeningStock   decimal.Decimal  `json:"current_stock"`
	MinStock       decimal.Decimal  `json:"min_stock"`
	MaxStock       *decimal.Decimal `json:"max_stock"`
	IsRawMaterial  bool             `json:"is_raw_material"`
	IsFinishedGood bool             `json:"is_finished_good"`
}

// ReceiveStockRequest is the input for recording a goods receipt.
type ReceiveStockRequest struct {
	ItemID   uuid.UUID       `json:"-"`
	Quantity decimal.Decimal `json:"quantity"`
	Notes    string          `json:"notes"`
}

// DefineBOMRequest is the input for creating a bill of materials.
type DefineBOMRequest struct {
	FinishedGoodID uuid.UUID        `json:"finished_good_id"`
	Lines          []BOMLineRequest `json:"lines"`
}

// BOMLineRequest is a single line within a DefineBOMRequest.
type BOMLineRequest struct {
	RawMaterialID    uuid.UUID       `json:"raw_material_id"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	Unit             string          `json:"unit"` // empty means the raw material's unit
	Notes            string          `json:"notes"`
}

// CreateWorkOrderRequest is the input for opening a work order.
type CreateWorkOrderRequest struct {
	ItemID     uuid.UUID  `json:"item_id"`
	Quantity   int64      `json:"quantity_to_produce"`
	Number     string     `json:"wo_number"` // generated when empty
	StartDate  *time.Time `json:"start_date"`
	TargetDate *time.Time `json:"target_date"`
	Notes      string     `json:"notes"`
}

// UpdateWorkOrderRequest carries the optional fields of a progress update.
// Status and Stage are validated against their closed sets.
type UpdateWorkOrderRequest struct {
	Status           *string `json:"status"`
	Stage            *string `json:"production_stage"`
	QuantityProduced *int64  `json:"quantity_produced"`
	Notes            *string `json:"notes"`
}
