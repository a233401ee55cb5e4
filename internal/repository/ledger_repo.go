package repository

import (
	"time"

	"go-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerFilter narrows the stock-history listing.
type LedgerFilter struct {
	Type      *model.MovementType
	ProductID *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// LedgerPage is one page of stock-history rows.
type LedgerPage struct {
	Data       []model.StockLedgerEntry `json:"data"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	Total      int64                    `json:"total"`
	TotalPages int64                    `json:"total_pages"`
}

// StockMovementData aggregates in/out volume per day for the dashboard chart.
type StockMovementData struct {
	Date     string          `json:"date"`
	Inbound  decimal.Decimal `json:"inbound"`
	Outbound decimal.Decimal `json:"outbound"`
}

type LedgerRepository interface {
	Create(tx *gorm.DB, entry *model.StockLedgerEntry) error
	FindAll(filter LedgerFilter) (*LedgerPage, error)
	SumQuantity(productID uuid.UUID) (decimal.Decimal, error)
	GetStockMovement(startDate, endDate time.Time) ([]StockMovementData, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

func NewLedgerRepo(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db}
}

func (r *ledgerRepo) Create(tx *gorm.DB, entry *model.StockLedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(entry).Error
}

func (r *ledgerRepo) FindAll(filter LedgerFilter) (*LedgerPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}

	q := r.db.Model(&model.StockLedgerEntry{})
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		q = q.Where("created_at BETWEEN ? AND ?", *filter.StartDate, *filter.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []model.StockLedgerEntry
	err := q.Preload("Product").Preload("User").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	totalPages := (total + int64(filter.PageSize) - 1) / int64(filter.PageSize)
	return &LedgerPage{
		Data:       entries,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// SumQuantity totals the signed deltas of one product; it must always equal
// the product's current stock field.
func (r *ledgerRepo) SumQuantity(productID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.Model(&model.StockLedgerEntry{}).
		Where("product_id = ?", productID).
		Select("SUM(quantity)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *ledgerRepo) GetStockMovement(startDate, endDate time.Time) ([]StockMovementData, error) {
	var results []StockMovementData

	// Deltas are signed: IN rows are positive, OUT rows negative. The chart
	// wants positive magnitudes on both series.
	rows, err := r.db.Model(&model.StockLedgerEntry{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN type = 'IN' THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = 'OUT' THEN -quantity ELSE 0 END), 0) as outbound
		`).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		results = append(results, data)
	}

	return results, nil
}
