package service

import (
	"errors"
	"fmt"

	"go-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validation failures are detected before any mutation is attempted; only
// CommitError can surface after the atomic unit started, and it guarantees
// the unit left no partial trace.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidTier     = errors.New("product has no wholesale price")
	ErrBelowMinimumQty = errors.New("quantity below wholesale minimum")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidMovement = errors.New("invalid stock movement type")
)

// ProductNotFoundError names the cart line's unknown product.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError reports how far the request overshot availability.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s",
		e.ProductName, e.Requested, e.Available)
}

// InsufficientPaymentError reports a tendered amount below the cart total.
type InsufficientPaymentError struct {
	Total    decimal.Decimal
	Tendered decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("payment %s is less than total %s", e.Tendered, e.Total)
}

// LineError tags a pricing failure with the offending cart line.
type LineError struct {
	Line      int
	ProductID uuid.UUID
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (product %s): %v", e.Line, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// FieldError reports a request field that failed struct validation.
type FieldError struct {
	Field string
	Tag   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation failed: field '%s' failed on tag '%s'", e.Field, e.Tag)
}

// CommitError wraps a persistence failure of the atomic unit. The checkout is
// safely retryable: nothing was persisted and the retry generates a fresh
// invoice number.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// IsValidationError reports whether err belongs to the reject-before-mutation
// family, which handlers map to 400 instead of 500.
func IsValidationError(err error) bool {
	var (
		notFound     *ProductNotFoundError
		noStock      *InsufficientStockError
		shortPayment *InsufficientPaymentError
		line         *LineError
		field        *FieldError
	)
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidTier),
		errors.Is(err, ErrBelowMinimumQty),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidMovement):
		return true
	case errors.As(err, &notFound),
		errors.As(err, &noStock),
		errors.As(err, &shortPayment),
		errors.As(err, &line),
		errors.As(err, &field):
		return true
	}
	return false
}

// ValidMovementType reports whether t is one of IN, OUT, ADJUSTMENT.
func ValidMovementType(t model.MovementType) bool {
	switch t {
	case model.MovementIn, model.MovementOut, model.MovementAdjustment:
		return true
	}
	return false
}
