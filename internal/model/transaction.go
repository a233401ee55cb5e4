package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PriceType string

const (
	PriceRetail    PriceType = "RETAIL"
	PriceWholesale PriceType = "WHOLESALE"
)

// Payment methods accepted at the register.
const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
	PaymentQRIS     = "QRIS"
)

// Transaction is one committed checkout. Items are created together with the
// transaction and cascade with it; they are never mutated afterwards.
type Transaction struct {
	BaseModel
	InvoiceNumber string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"invoice_number"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	PaymentAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"payment_amount"`
	ChangeAmount  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"change_amount"`
	PaymentMethod string          `gorm:"type:varchar(20);default:CASH" json:"payment_method"`

	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Items []TransactionItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

// TransactionItem freezes the quantity, price and tier of one cart line at
// sale time. Catalog price changes never touch committed items.
type TransactionItem struct {
	BaseModel
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index" json:"transaction_id"`

	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Quantity  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	PriceType PriceType       `gorm:"type:varchar(10);not null;default:RETAIL" json:"price_type"`
	Unit      string          `gorm:"type:varchar(20)" json:"unit"`
}
