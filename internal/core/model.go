package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places kept for stock, BOM and
// price quantities. Values with more places are rejected, never rounded.
const QuantityScale = 4

// fitsScale reports whether d has no digits beyond QuantityScale.
func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(QuantityScale))
}

// Item is a catalog record: a raw material, a finished good, or both.
// CurrentStock is never negative; it is mutated only through stock movements.
type Item struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"item_code"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Category       string           `json:"category,omitempty"`
	Unit           string           `json:"unit"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	CurrentStock   decimal.Decimal  `json:"current_stock"`
	MinStock       decimal.Decimal  `json:"min_stock"`
	MaxStock       *decimal.Decimal `json:"max_stock,omitempty"`
	IsRawMaterial  bool             `json:"is_raw_material"`
	IsFinishedGood bool             `json:"is_finished_good"`
	CreatedBy      string           `json:"created_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsLowStock reports whether the item has fallen below its reorder point.
func (i Item) IsLowStock() bool {
	return i.CurrentStock.LessThan(i.MinStock)
}

// BOMLine relates one finished good to one raw material.
// QuantityRequired is per single unit of the finished good.
type BOMLine struct {
	ID               uuid.UUID       `json:"id"`
	FinishedGoodID   uuid.UUID       `json:"finished_good_id"`
	RawMaterialID    uuid.UUID       `json:"raw_material_id"`
	RawMaterialCode  string          `json:"raw_material_code"` // joined from items
	RawMaterialName  string          `json:"raw_material_name"` // joined from items
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	Unit             string          `json:"unit"` // empty means the raw material's own unit
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// BOMLineInput is one line of a new bill of materials.
type BOMLineInput struct {
	RawMaterialID    uuid.UUID
	QuantityRequired decimal.Decimal
	Unit             string
	Notes            string
}

// WorkOrderStatus is the closed set of work order states.
type WorkOrderStatus string

const (
	StatusPending    WorkOrderStatus = "pending"
	StatusApproved   WorkOrderStatus = "approved"
	StatusProcessing WorkOrderStatus = "processing"
	StatusCompleted  WorkOrderStatus = "completed"
	StatusCancelled  WorkOrderStatus = "cancelled"
)

// ParseWorkOrderStatus rejects anything outside the closed status set.
func ParseWorkOrderStatus(s string) (WorkOrderStatus, error) {
	switch st := WorkOrderStatus(s); st {
	case StatusPending, StatusApproved, StatusProcessing, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmtInvalidEnum("status", s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s WorkOrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ProductionStage tracks where a work order is on the shop floor.
type ProductionStage string

const (
	StagePlanning   ProductionStage = "planning"
	StageAssembling ProductionStage = "assembling"
	StageFinishing  ProductionStage = "finishing"
	StagePacking    ProductionStage = "packing"
	StageCompleted  ProductionStage = "completed"
)

// ParseProductionStage rejects anything outside the closed stage set.
func ParseProductionStage(s string) (ProductionStage, error) {
	switch st := ProductionStage(s); st {
	case StagePlanning, StageAssembling, StageFinishing, StagePacking, StageCompleted:
		return st, nil
	}
	return "", fmtInvalidEnum("production stage", s)
}

// WorkOrder is a production order for a finished good.
// Status progresses through the state machine:
//
//	pending → approved → processing → completed
//	pending | approved | processing → cancelled
type WorkOrder struct {
	ID                uuid.UUID       `json:"id"`
	Number            string          `json:"wo_number"`
	ItemID            uuid.UUID       `json:"item_id"`
	ItemCode          string          `json:"item_code"` // joined from items
	ItemName          string          `json:"item_name"` // joined from items
	QuantityToProduce int64           `json:"quantity_to_produce"`
	QuantityProduced  int64           `json:"quantity_produced"`
	Status            WorkOrderStatus `json:"status"`
	Stage             ProductionStage `json:"production_stage"`
	StartDate         *time.Time      `json:"start_date,omitempty"`
	TargetDate        *time.Time      `json:"target_date,omitempty"`
	CompletionDate    *time.Time      `json:"completion_date,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementOpening          MovementType = "opening"
	MovementIn               MovementType = "in"
	MovementOut              MovementType = "out"
	MovementAdjustment       MovementType = "adjustment"
	MovementProductionUse    MovementType = "production_use"
	MovementProductionReturn MovementType = "production_return"
)

// StockMovement is an append-only audit record of a signed stock change.
type StockMovement struct {
	ID            uuid.UUID       `json:"id"`
	ItemID        uuid.UUID       `json:"item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Type          MovementType    `json:"movement_type"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProductionLog records progress on a work order.
type ProductionLog struct {
	ID                uuid.UUID       `json:"id"`
	WorkOrderID       uuid.UUID       `json:"work_order_id"`
	Stage             ProductionStage `json:"production_stage"`
	QuantityCompleted int64           `json:"quantity_completed"`
	Notes             string          `json:"notes,omitempty"`
	LoggedBy          string          `json:"logged_by,omitempty"`
	LoggedAt          time.Time       `json:"logged_at"`
}

// Requirement is the derived material need of one BOM line for a production run.
// It is never persisted.
type Requirement struct {
	RawMaterialID   uuid.UUID       `json:"raw_material_id"`
	RawMaterialCode string          `json:"raw_material_code"`
	RawMaterialName string          `json:"raw_material_name"`
	Unit            string          `json:"unit"`
	QuantityPerUnit decimal.Decimal `json:"quantity_required"`
	TotalRequired   decimal.Decimal `json:"total_required"`
	CurrentStock    decimal.Decimal `json:"current_stock"`
	Shortage        decimal.Decimal `json:"shortage"`
}

// IsShort reports whether this line cannot be covered by current stock.
func (r Requirement) IsShort() bool {
	return r.Shortage.IsPositive()
}

// ReservedLine is one item of a committed reservation.
type ReservedLine struct {
	ItemID     uuid.UUID       `json:"item_id"`
	ItemCode   string          `json:"item_code"`
	Quantity   decimal.Decimal `json:"quantity"`
	NewStock   decimal.Decimal `json:"new_stock"`
	MovementID uuid.UUID       `json:"movement_id"`
}

// ReservationReceipt enumerates every item and the exact quantity reserved
// for a work order.
type ReservationReceipt struct {
	WorkOrderID uuid.UUID        `json:"work_order_id"`
	Quantity    int64            `json:"production_quantity"`
	State       ReservationState `json:"state"`
	Lines       []ReservedLine   `json:"lines"`
	ReservedAt  time.Time        `json:"reserved_at"`
}

// StockDrift is an item whose materialized stock disagrees with its movement log.
type StockDrift struct {
	ItemID       uuid.UUID       `json:"item_id"`
	ItemCode     string          `json:"item_code"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MovementSum  decimal.Decimal `json:"movement_sum"`
	Difference   decimal.Decimal `json:"difference"`
}
