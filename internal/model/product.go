package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog item. Stock is decimal because weight-based products
// (SoldByWeight) can be sold in fractional quantities like 0.25 kg.
type Product struct {
	BaseModel
	SKU         string `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Description string `gorm:"type:text" json:"description"`

	BuyPrice           decimal.Decimal  `gorm:"type:decimal(14,2);default:0" json:"buy_price"`
	SellPrice          decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"sell_price"`
	SellPriceWholesale *decimal.Decimal `gorm:"type:decimal(14,2)" json:"sell_price_wholesale,omitempty"`
	WholesaleMinQty    decimal.Decimal  `gorm:"type:decimal(12,2);default:1" json:"wholesale_min_qty"`

	// Unit labels and conversion: one wholesale unit equals UnitConversion
	// retail units (e.g. 1 dus = 12 pcs). Stock is always counted in retail units.
	Unit           string          `gorm:"type:varchar(20);default:pcs" json:"unit"`
	UnitWholesale  *string         `gorm:"type:varchar(20)" json:"unit_wholesale,omitempty"`
	UnitConversion decimal.Decimal `gorm:"type:decimal(12,2);default:1" json:"unit_conversion"`

	SoldByWeight bool            `gorm:"default:false" json:"sold_by_weight"`
	Stock        decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"stock"`
	MinStock     decimal.Decimal `gorm:"type:decimal(14,2);default:5" json:"min_stock"`

	ExpiryDate      *time.Time `gorm:"type:date" json:"expiry_date,omitempty"`
	ExpiryAlertDays int        `gorm:"default:30" json:"expiry_alert_days"`

	CategoryID *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category   *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty" validate:"-"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}

// HasWholesale reports whether the product can be sold at the wholesale tier.
func (p *Product) HasWholesale() bool {
	return p.SellPriceWholesale != nil && p.SellPriceWholesale.IsPositive()
}

// IsLowStock reports whether stock has fallen to or under the minimum threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock.LessThanOrEqual(p.MinStock)
}

// DaysUntilExpiry returns the whole days left before ExpiryDate, or false if
// the product has no expiry date.
func (p *Product) DaysUntilExpiry(now time.Time) (int, bool) {
	if p.ExpiryDate == nil {
		return 0, false
	}
	days := int(p.ExpiryDate.Sub(now).Hours() / 24)
	return days, true
}

// IsExpiringSoon reports whether the product expires within its alert window.
func (p *Product) IsExpiringSoon(now time.Time) bool {
	days, ok := p.DaysUntilExpiry(now)
	return ok && days <= p.ExpiryAlertDays
}
