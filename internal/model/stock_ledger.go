package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// StockLedgerEntry is one immutable row of the append-only stock audit log.
// Quantity is the SIGNED delta applied to the product's stock, so at any
// point in time product.Stock equals the sum of its ledger quantities.
// For ADJUSTMENT the delta is newStock - previousStock, never the absolute
// value that was requested.
type StockLedgerEntry struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`

	Type     MovementType    `gorm:"type:varchar(10);not null;index" json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Quantity decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity"`
	Note     string          `gorm:"type:text" json:"note"`

	UserID uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName keeps the historical table name used by the reporting views.
func (StockLedgerEntry) TableName() string {
	return "stock_ledger"
}
