package service

import (
	"go-pos-backend/internal/model"

	"github.com/shopspring/decimal"
)

// PriceQuote is the result of resolving one cart line: the unit price that
// will be charged and the stock that must be reserved, expressed in retail
// units. StockQuantity differs from Quantity only at the wholesale tier,
// where the unit conversion factor applies (buying 5 dus of 12 pcs reserves
// 60 pcs of stock).
type PriceQuote struct {
	UnitPrice     decimal.Decimal
	Unit          string
	Quantity      decimal.Decimal
	Subtotal      decimal.Decimal
	StockQuantity decimal.Decimal
	PriceType     model.PriceType
}

// ResolvePrice determines the price, unit label and stock consumption for a
// requested quantity and tier. Pure function, no side effects.
//
// Quantity rules: weight-sold products accept fractional quantities with up
// to two decimal places; everything else requires whole numbers. Quantity
// must be strictly positive either way.
func ResolvePrice(p *model.Product, priceType model.PriceType, quantity decimal.Decimal) (*PriceQuote, error) {
	if !quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	if p.SoldByWeight {
		if !quantity.Round(2).Equal(quantity) {
			return nil, ErrInvalidQuantity
		}
	} else if !quantity.IsInteger() {
		return nil, ErrInvalidQuantity
	}

	switch priceType {
	case model.PriceWholesale:
		if !p.HasWholesale() {
			return nil, ErrInvalidTier
		}
		if quantity.LessThan(p.WholesaleMinQty) {
			// Rejected, never silently bumped up to the minimum
			return nil, ErrBelowMinimumQty
		}

		unit := p.Unit
		if p.UnitWholesale != nil && *p.UnitWholesale != "" {
			unit = *p.UnitWholesale
		}
		conversion := p.UnitConversion
		if !conversion.IsPositive() {
			conversion = decimal.NewFromInt(1)
		}

		price := *p.SellPriceWholesale
		return &PriceQuote{
			UnitPrice:     price,
			Unit:          unit,
			Quantity:      quantity,
			Subtotal:      price.Mul(quantity),
			StockQuantity: quantity.Mul(conversion),
			PriceType:     model.PriceWholesale,
		}, nil

	case model.PriceRetail, "":
		return &PriceQuote{
			UnitPrice:     p.SellPrice,
			Unit:          p.Unit,
			Quantity:      quantity,
			Subtotal:      p.SellPrice.Mul(quantity),
			StockQuantity: quantity,
			PriceType:     model.PriceRetail,
		}, nil

	default:
		return nil, ErrInvalidTier
	}
}
