package repository

import (
	"time"

	"go-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionFilter narrows FindAll results. KasirID limits the listing to
// one cashier's own sales.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	KasirID   *uuid.UUID
}

// TopProduct is an aggregate row for the best-seller report.
type TopProduct struct {
	Product       model.Product   `json:"product"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// DailySales is revenue aggregated per reporting bucket.
type DailySales struct {
	Date              string          `json:"date"`
	TotalTransactions int64           `json:"total_transactions"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalItems        decimal.Decimal `json:"total_items"`
}

type TransactionRepository interface {
	Create(tx *gorm.DB, transaction *model.Transaction) error
	FindAll(filter TransactionFilter) ([]model.Transaction, error)
	FindByID(id uuid.UUID) (*model.Transaction, error)
	FindByInvoiceNumber(invoiceNumber string) (*model.Transaction, error)
	FindInRange(start, end time.Time) ([]model.Transaction, error)
	TodayStats(now time.Time) (count int64, revenue decimal.Decimal, err error)
	TopProducts(start, end *time.Time, limit int) ([]TopProduct, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(tx *gorm.DB, transaction *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(transaction).Error
}

func (r *transactionRepo) FindAll(filter TransactionFilter) ([]model.Transaction, error) {
	var transactions []model.Transaction
	q := r.db.Preload("User").Preload("Items.Product").Order("created_at DESC")

	if filter.StartDate != nil && filter.EndDate != nil {
		q = q.Where("created_at BETWEEN ? AND ?", *filter.StartDate, *filter.EndDate)
	}
	if filter.KasirID != nil {
		q = q.Where("user_id = ?", *filter.KasirID)
	}

	err := q.Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.Preload("User").Preload("Items.Product").
		First(&transaction, "id = ?", id).Error
	return &transaction, err
}

func (r *transactionRepo) FindByInvoiceNumber(invoiceNumber string) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.Preload("User").Preload("Items.Product").
		First(&transaction, "invoice_number = ?", invoiceNumber).Error
	return &transaction, err
}

func (r *transactionRepo) FindInRange(start, end time.Time) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.Preload("Items").
		Where("created_at BETWEEN ? AND ?", start, end).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) TodayStats(now time.Time) (int64, decimal.Decimal, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24*time.Hour - time.Nanosecond)

	var count int64
	if err := r.db.Model(&model.Transaction{}).
		Where("created_at BETWEEN ? AND ?", startOfDay, endOfDay).
		Count(&count).Error; err != nil {
		return 0, decimal.Zero, err
	}

	var revenue decimal.NullDecimal
	if err := r.db.Model(&model.Transaction{}).
		Where("created_at BETWEEN ? AND ?", startOfDay, endOfDay).
		Select("SUM(total_amount)").
		Scan(&revenue).Error; err != nil {
		return 0, decimal.Zero, err
	}
	if !revenue.Valid {
		return count, decimal.Zero, nil
	}
	return count, revenue.Decimal, nil
}

func (r *transactionRepo) TopProducts(start, end *time.Time, limit int) ([]TopProduct, error) {
	type row struct {
		ProductID     uuid.UUID
		TotalQuantity decimal.Decimal
		TotalAmount   decimal.Decimal
	}

	q := r.db.Model(&model.TransactionItem{}).
		Select("product_id, SUM(quantity) as total_quantity, SUM(subtotal) as total_amount").
		Group("product_id").
		Order("total_quantity DESC").
		Limit(limit)

	if start != nil && end != nil {
		q = q.Where("created_at BETWEEN ? AND ?", *start, *end)
	}

	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]TopProduct, 0, len(rows))
	for _, rw := range rows {
		var product model.Product
		if err := r.db.First(&product, "id = ?", rw.ProductID).Error; err != nil {
			continue // product hard-deleted, skip
		}
		results = append(results, TopProduct{
			Product:       product,
			TotalQuantity: rw.TotalQuantity,
			TotalAmount:   rw.TotalAmount,
		})
	}
	return results, nil
}
