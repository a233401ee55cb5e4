package repository

import (
	"time"

	"go-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductFilter narrows FindAll results.
type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	ActiveOnly bool
}

type ProductRepository interface {
	Create(tx *gorm.DB, product *model.Product) error
	FindAll(filter ProductFilter) ([]model.Product, error)
	FindByID(id uuid.UUID) (*model.Product, error)
	FindByIDs(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	FindBySKU(sku string) (*model.Product, error)
	FindExpiring(now time.Time) ([]model.Product, error)
	Update(product *model.Product) error
	Delete(id uuid.UUID) error
	Deactivate(id uuid.UUID) error
	CountTransactionItems(id uuid.UUID) (int64, error)

	// Stock mutations. All take the tx handle so they compose into the same
	// atomic unit as the ledger insert. The conditional variants report
	// whether the guard held via the returned bool.
	DecrementStock(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) (bool, error)
	IncrementStock(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error
	SetStockIfUnchanged(tx *gorm.DB, id uuid.UUID, newStock, prevStock decimal.Decimal) (bool, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(tx *gorm.DB, product *model.Product) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(product).Error
}

func (r *productRepo) FindAll(filter ProductFilter) ([]model.Product, error) {
	var products []model.Product
	q := r.db.Preload("Category").Order("name ASC")

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name LIKE ? OR sku LIKE ?", like, like)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	err := q.Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.Preload("Category").First(&product, "id = ?", id).Error
	return &product, err
}

func (r *productRepo) FindByIDs(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	if tx == nil {
		tx = r.db
	}
	var products []model.Product
	err := tx.Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepo) FindBySKU(sku string) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "sku = ?", sku).Error
	return &product, err
}

func (r *productRepo) FindExpiring(now time.Time) ([]model.Product, error) {
	var products []model.Product
	err := r.db.Preload("Category").
		Where("is_active = ? AND expiry_date IS NOT NULL", true).
		Order("expiry_date ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	// Alert window differs per product, filter in memory
	expiring := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.IsExpiringSoon(now) {
			expiring = append(expiring, p)
		}
	}
	return expiring, nil
}

func (r *productRepo) Update(product *model.Product) error {
	return r.db.Save(product).Error
}

func (r *productRepo) Delete(id uuid.UUID) error {
	// Hard delete; ledger rows cascade. Only valid for products without
	// transaction history, the service checks first.
	return r.db.Unscoped().Delete(&model.Product{}, "id = ?", id).Error
}

func (r *productRepo) Deactivate(id uuid.UUID) error {
	return r.db.Model(&model.Product{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *productRepo) CountTransactionItems(id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.TransactionItem{}).
		Where("product_id = ?", id).
		Count(&count).Error
	return count, err
}

// DecrementStock subtracts qty with a floor check in a single statement so
// two concurrent checkouts cannot both pass the sufficiency test.
func (r *productRepo) DecrementStock(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productRepo) IncrementStock(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error {
	return tx.Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// SetStockIfUnchanged writes an absolute stock value guarded by the value the
// caller read, so a concurrent mutation makes the write fail instead of being
// silently overwritten.
func (r *productRepo) SetStockIfUnchanged(tx *gorm.DB, id uuid.UUID, newStock, prevStock decimal.Decimal) (bool, error) {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock = ?", id, prevStock).
		Update("stock", newStock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
