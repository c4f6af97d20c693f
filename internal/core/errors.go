package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error taxonomy for MRP calculation and stock reservation.
// All are terminal for the current call; none are retried internally.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrNoBOMDefined      = errors.New("no BOM defined")
	ErrInvalidBOMLine    = errors.New("invalid BOM line")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("item not found")
	ErrStorageFailure    = errors.New("storage failure")

	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBOMExists         = errors.New("BOM already exists")
	ErrCyclicBOM         = errors.New("cyclic BOM")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateItemCode = errors.New("duplicate item code")
	ErrDuplicateWONumber = errors.New("duplicate work order number")
)

// Shortage describes one raw material that cannot cover its requirement.
type Shortage struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ItemCode  string          `json:"item_code"`
	ItemName  string          `json:"item_name"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

// Missing returns how much stock is lacking.
func (s Shortage) Missing() decimal.Decimal {
	return s.Required.Sub(s.Available)
}

// InsufficientStockError lists every item that blocked a reservation.
// errors.Is(err, ErrInsufficientStock) holds for it.
type InsufficientStockError struct {
	Items []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		label := s.ItemName
		if label == "" {
			label = s.ItemCode
		}
		if label == "" {
			label = s.ItemID.String()
		}
		parts = append(parts, fmt.Sprintf("%s: need %s, have %s", label, s.Required.String(), s.Available.String()))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ItemIDs returns the ids of the short items in report order.
func (e *InsufficientStockError) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(e.Items))
	for i, s := range e.Items {
		ids[i] = s.ItemID
	}
	return ids
}

// storageFailure wraps an unexpected store error so that callers can match
// ErrStorageFailure while keeping the cause in the chain.
func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// classify keeps the domain errors a store may legitimately return and turns
// everything else into a storage failure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrWorkOrderNotFound),
		errors.Is(err, ErrDuplicateItemCode),
		errors.Is(err, ErrDuplicateWONumber),
		errors.Is(err, ErrStorageFailure):
		return fmt.Errorf("%s: %w", op, err)
	}
	return storageFailure(op, err)
}

func fmtInvalidEnum(kind, value string) error {
	return fmt.Errorf("%w: unknown %s %q", ErrInvalidInput, kind, value)
}
