package service

import (
	"errors"
	"fmt"
	"time"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrSKUTaken        = errors.New("SKU already exists")
	ErrProductNotFound = errors.New("product not found")
)

// ExpiringProduct pairs a product with the days left before it expires.
type ExpiringProduct struct {
	Product         model.Product `json:"product"`
	DaysUntilExpiry int           `json:"days_until_expiry"`
}

// UpdateProductRequest carries the editable catalog fields. Stock is absent
// on purpose: every stock change goes through the checkout engine or
// AdjustStock so the ledger stays complete. IsActive is a pointer so a body
// that omits it cannot deactivate the product by accident.
type UpdateProductRequest struct {
	SKU                string           `json:"sku"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	BuyPrice           decimal.Decimal  `json:"buy_price"`
	SellPrice          decimal.Decimal  `json:"sell_price"`
	SellPriceWholesale *decimal.Decimal `json:"sell_price_wholesale"`
	WholesaleMinQty    decimal.Decimal  `json:"wholesale_min_qty"`
	Unit               string           `json:"unit"`
	UnitWholesale      *string          `json:"unit_wholesale"`
	UnitConversion     decimal.Decimal  `json:"unit_conversion"`
	SoldByWeight       bool             `json:"sold_by_weight"`
	MinStock           decimal.Decimal  `json:"min_stock"`
	ExpiryDate         *time.Time       `json:"expiry_date"`
	ExpiryAlertDays    int              `json:"expiry_alert_days"`
	CategoryID         *uuid.UUID       `json:"category_id"`
	IsActive           *bool            `json:"is_active"`
}

// DeleteResult tells the caller whether the product was removed or only
// deactivated because transaction history references it.
type DeleteResult struct {
	Deleted     bool `json:"deleted"`
	Deactivated bool `json:"deactivated"`
}

type ProductService interface {
	CreateProduct(req *model.Product, actorID uuid.UUID) error
	UpdateProduct(id uuid.UUID, req *UpdateProductRequest) (*model.Product, error)
	DeleteProduct(id uuid.UUID) (*DeleteResult, error)
	GetProducts(filter repository.ProductFilter) ([]model.Product, error)
	GetProductByID(id uuid.UUID) (*model.Product, error)
	GetExpiringProducts() ([]ExpiringProduct, error)
}

type productService struct {
	productRepo repository.ProductRepository
	ledgerRepo  repository.LedgerRepository
	db          *gorm.DB
}

func NewProductService(pRepo repository.ProductRepository, lRepo repository.LedgerRepository, db *gorm.DB) ProductService {
	return &productService{
		productRepo: pRepo,
		ledgerRepo:  lRepo,
		db:          db,
	}
}

// CreateProduct stores a new catalog item. A non-zero opening stock gets a
// matching IN ledger entry in the same transaction, so the ledger reconciles
// from the very first row.
func (s *productService) CreateProduct(req *model.Product, actorID uuid.UUID) error {
	// 1. Validasi struct dasar
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}
	if req.Stock.IsNegative() {
		return ErrInvalidQuantity
	}

	// 2. Cek duplikasi SKU
	existing, _ := s.productRepo.FindBySKU(req.SKU)
	if existing != nil && existing.ID != uuid.Nil {
		return ErrSKUTaken
	}

	// 3. Simpan produk + stok awal atomik
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.productRepo.Create(tx, req); err != nil {
			return err
		}
		if req.Stock.IsPositive() {
			entry := &model.StockLedgerEntry{
				ProductID: req.ID,
				Type:      model.MovementIn,
				Quantity:  req.Stock,
				Note:      "Stok awal",
				UserID:    actorID,
			}
			if err := s.ledgerRepo.Create(tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateProduct changes catalog fields only.
func (s *productService) UpdateProduct(id uuid.UUID, req *UpdateProductRequest) (*model.Product, error) {
	existing, err := s.productRepo.FindByID(id)
	if err != nil {
		return nil, ErrProductNotFound
	}

	if req.SKU != "" && req.SKU != existing.SKU {
		taken, _ := s.productRepo.FindBySKU(req.SKU)
		if taken != nil && taken.ID != uuid.Nil && taken.ID != id {
			return nil, ErrSKUTaken
		}
		existing.SKU = req.SKU
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.BuyPrice = req.BuyPrice
	existing.SellPrice = req.SellPrice
	existing.SellPriceWholesale = req.SellPriceWholesale
	existing.WholesaleMinQty = req.WholesaleMinQty
	existing.Unit = req.Unit
	existing.UnitWholesale = req.UnitWholesale
	existing.UnitConversion = req.UnitConversion
	existing.SoldByWeight = req.SoldByWeight
	existing.MinStock = req.MinStock
	existing.ExpiryDate = req.ExpiryDate
	existing.ExpiryAlertDays = req.ExpiryAlertDays
	existing.CategoryID = req.CategoryID
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if errs := validator.ValidateStruct(existing); len(errs) > 0 {
		firstErr := errs[0]
		return nil, fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	if err := s.productRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteProduct hard-deletes only when no transaction item references the
// product; otherwise it deactivates, preserving sale history and the ledger.
func (s *productService) DeleteProduct(id uuid.UUID) (*DeleteResult, error) {
	if _, err := s.productRepo.FindByID(id); err != nil {
		return nil, ErrProductNotFound
	}

	count, err := s.productRepo.CountTransactionItems(id)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		if err := s.productRepo.Deactivate(id); err != nil {
			return nil, err
		}
		return &DeleteResult{Deactivated: true}, nil
	}

	if err := s.productRepo.Delete(id); err != nil {
		return nil, err
	}
	return &DeleteResult{Deleted: true}, nil
}

func (s *productService) GetProducts(filter repository.ProductFilter) ([]model.Product, error) {
	return s.productRepo.FindAll(filter)
}

func (s *productService) GetProductByID(id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *productService) GetExpiringProducts() ([]ExpiringProduct, error) {
	products, err := s.productRepo.FindExpiring(time.Now())
	if err != nil {
		return nil, err
	}

	results := make([]ExpiringProduct, 0, len(products))
	for _, p := range products {
		days, _ := p.DaysUntilExpiry(time.Now())
		results = append(results, ExpiringProduct{Product: p, DaysUntilExpiry: days})
	}
	return results, nil
}
