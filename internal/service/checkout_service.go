package service

import (
	"errors"
	"fmt"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/internal/ws"
	"go-pos-backend/pkg/invoice"
	"go-pos-backend/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// invoiceAttempts bounds the regenerate-and-retry loop on invoice-number
// collisions. The suffix space is 36^6, two collisions in a row already
// indicate something is wrong with the random source.
const invoiceAttempts = 3

// CartLine is one requested item of a checkout.
type CartLine struct {
	ProductID uuid.UUID       `json:"product_id" validate:"uuid_required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"decimal_gt0"`
	PriceType model.PriceType `json:"price_type" validate:"omitempty,oneof=RETAIL WHOLESALE"`
}

// CheckoutRequest is the full cart presented at the register.
type CheckoutRequest struct {
	Items         []CartLine      `json:"items" validate:"dive"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=CASH TRANSFER QRIS"`
}

// AdjustStockRequest is a standalone stock correction outside of sales.
// For ADJUSTMENT, Quantity is the new absolute stock value; the ledger
// records the signed difference.
type AdjustStockRequest struct {
	ProductID uuid.UUID          `json:"product_id" validate:"uuid_required"`
	Type      model.MovementType `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Quantity  decimal.Decimal    `json:"quantity"`
	Note      string             `json:"note"`
}

// CheckoutService validates and commits sales and stock corrections. Every
// stock mutation happens inside one database transaction together with its
// ledger entry (and, for sales, the transaction row), so either everything
// is persisted or nothing is.
type CheckoutService interface {
	Checkout(req *CheckoutRequest, cashierID uuid.UUID) (*model.Transaction, error)
	AdjustStock(req *AdjustStockRequest, actorID uuid.UUID) (*model.StockLedgerEntry, error)
	GetTransactions(filter repository.TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(id uuid.UUID) (*model.Transaction, error)
	GetTransactionByInvoice(invoiceNumber string) (*model.Transaction, error)
	GetStockHistory(filter repository.LedgerFilter) (*repository.LedgerPage, error)
}

type checkoutService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	ledgerRepo      repository.LedgerRepository
	db              *gorm.DB
	wsHub           *ws.Hub

	// newInvoice generates candidate invoice numbers; swapped out in tests
	// to force collisions.
	newInvoice func() string
}

func NewCheckoutService(
	pRepo repository.ProductRepository,
	tRepo repository.TransactionRepository,
	lRepo repository.LedgerRepository,
	db *gorm.DB,
	hub *ws.Hub,
) CheckoutService {
	return &checkoutService{
		productRepo:     pRepo,
		transactionRepo: tRepo,
		ledgerRepo:      lRepo,
		db:              db,
		wsHub:           hub,
		newInvoice:      invoice.Generate,
	}
}

// Checkout runs the full sale pipeline: validate the cart, price every line,
// verify and reserve stock, then commit the transaction, the stock
// decrements and the ledger entries as one atomic unit.
//
// A duplicate invoice number aborts the database transaction, so the retry
// re-runs the whole unit with a freshly generated number. That is safe
// because a failed unit leaves no state behind.
func (s *checkoutService) Checkout(req *CheckoutRequest, cashierID uuid.UUID) (*model.Transaction, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, &FieldError{Field: errs[0].FailedField, Tag: errs[0].Tag}
	}

	var committed *model.Transaction
	var lastErr error

	for attempt := 0; attempt < invoiceAttempts; attempt++ {
		invoiceNumber := s.newInvoice()

		tx, err := s.checkoutOnce(req, cashierID, invoiceNumber)
		if err == nil {
			committed = tx
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Invoice collision, regenerate and retry transparently
			lastErr = err
			continue
		}
		if IsValidationError(err) {
			return nil, err
		}
		return nil, &CommitError{Err: err}
	}

	if committed == nil {
		return nil, &CommitError{Err: lastErr}
	}

	// Reload with relations for the receipt
	full, err := s.transactionRepo.FindByID(committed.ID)
	if err != nil {
		full = committed
	}

	s.broadcastSale(full)
	return full, nil
}

// checkoutOnce executes one attempt of the atomic unit. Any returned error
// rolls the whole unit back.
func (s *checkoutService) checkoutOnce(req *CheckoutRequest, cashierID uuid.UUID, invoiceNumber string) (*model.Transaction, error) {
	var transaction *model.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 1. Resolve every referenced product
		ids := make([]uuid.UUID, 0, len(req.Items))
		for _, line := range req.Items {
			ids = append(ids, line.ProductID)
		}
		products, err := s.productRepo.FindByIDs(tx, ids)
		if err != nil {
			return err
		}
		productMap := make(map[uuid.UUID]*model.Product, len(products))
		for i := range products {
			productMap[products[i].ID] = &products[i]
		}

		// 2. Price each line, tagging failures with the offending line
		quotes := make([]*PriceQuote, len(req.Items))
		needed := make(map[uuid.UUID]decimal.Decimal) // total stock per product across lines
		for i, line := range req.Items {
			product, ok := productMap[line.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: line.ProductID}
			}

			quote, err := ResolvePrice(product, line.PriceType, line.Quantity)
			if err != nil {
				return &LineError{Line: i + 1, ProductID: line.ProductID, Err: err}
			}
			quotes[i] = quote
			needed[product.ID] = needed[product.ID].Add(quote.StockQuantity)
		}

		// 3. Sufficiency pre-check on the combined consumption per product.
		// The conditional decrement below remains the authoritative guard;
		// this check only produces a precise error before anything mutates.
		for id, qty := range needed {
			product := productMap[id]
			if qty.GreaterThan(product.Stock) {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   qty,
					Available:   product.Stock,
				}
			}
		}

		// 4. Totals and payment
		total := decimal.Zero
		for _, quote := range quotes {
			total = total.Add(quote.Subtotal)
		}
		if req.PaymentAmount.LessThan(total) {
			return &InsufficientPaymentError{Total: total, Tendered: req.PaymentAmount}
		}
		change := req.PaymentAmount.Sub(total)

		paymentMethod := req.PaymentMethod
		if paymentMethod == "" {
			paymentMethod = model.PaymentCash
		}

		// 5. Commit: transaction row + items
		items := make([]model.TransactionItem, len(req.Items))
		for i, quote := range quotes {
			items[i] = model.TransactionItem{
				ProductID: req.Items[i].ProductID,
				Quantity:  quote.Quantity,
				Price:     quote.UnitPrice,
				Subtotal:  quote.Subtotal,
				PriceType: quote.PriceType,
				Unit:      quote.Unit,
			}
		}
		transaction = &model.Transaction{
			InvoiceNumber: invoiceNumber,
			TotalAmount:   total,
			PaymentAmount: req.PaymentAmount,
			ChangeAmount:  change,
			PaymentMethod: paymentMethod,
			UserID:        cashierID,
			Items:         items,
		}
		if err := s.transactionRepo.Create(tx, transaction); err != nil {
			return err
		}

		// 6. Stock decrements. The floor check inside the UPDATE closes the
		// race window between two checkouts over the same product: losing the
		// guard here rolls back the entire sale.
		for i, quote := range quotes {
			product := productMap[req.Items[i].ProductID]

			ok, err := s.productRepo.DecrementStock(tx, product.ID, quote.StockQuantity)
			if err != nil {
				return err
			}
			if !ok {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   quote.StockQuantity,
					Available:   product.Stock,
				}
			}

			// 7. Matching ledger entry, signed delta
			entry := &model.StockLedgerEntry{
				ProductID: product.ID,
				Type:      model.MovementOut,
				Quantity:  quote.StockQuantity.Neg(),
				Note:      fmt.Sprintf("Penjualan - %s", invoiceNumber),
				UserID:    cashierID,
			}
			if err := s.ledgerRepo.Create(tx, entry); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// AdjustStock applies a manual stock movement and its ledger entry as one
// atomic unit. ADJUSTMENT interprets Quantity as the new absolute stock and
// stores the net difference in the ledger, so the ledger stays a true audit
// trail of changes.
func (s *checkoutService) AdjustStock(req *AdjustStockRequest, actorID uuid.UUID) (*model.StockLedgerEntry, error) {
	if !ValidMovementType(req.Type) {
		return nil, ErrInvalidMovement
	}
	switch req.Type {
	case model.MovementIn, model.MovementOut:
		if !req.Quantity.IsPositive() {
			return nil, ErrInvalidQuantity
		}
	case model.MovementAdjustment:
		if req.Quantity.IsNegative() {
			return nil, ErrInvalidQuantity
		}
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, &FieldError{Field: errs[0].FailedField, Tag: errs[0].Tag}
	}

	var entry *model.StockLedgerEntry

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.First(&product, "id = ?", req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ProductNotFoundError{ProductID: req.ProductID}
			}
			return err
		}

		var delta decimal.Decimal
		switch req.Type {
		case model.MovementIn:
			delta = req.Quantity
			if err := s.productRepo.IncrementStock(tx, product.ID, req.Quantity); err != nil {
				return err
			}

		case model.MovementOut:
			delta = req.Quantity.Neg()
			ok, err := s.productRepo.DecrementStock(tx, product.ID, req.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   req.Quantity,
					Available:   product.Stock,
				}
			}

		case model.MovementAdjustment:
			delta = req.Quantity.Sub(product.Stock)
			ok, err := s.productRepo.SetStockIfUnchanged(tx, product.ID, req.Quantity, product.Stock)
			if err != nil {
				return err
			}
			if !ok {
				// Someone mutated stock between our read and write; the
				// caller retries against the fresh value
				return fmt.Errorf("stock changed concurrently for %s", product.Name)
			}
		}

		entry = &model.StockLedgerEntry{
			ProductID: product.ID,
			Type:      req.Type,
			Quantity:  delta,
			Note:      req.Note,
			UserID:    actorID,
		}
		return s.ledgerRepo.Create(tx, entry)
	})

	if err != nil {
		if IsValidationError(err) {
			return nil, err
		}
		return nil, &CommitError{Err: err}
	}

	s.broadcastStockChange(entry)
	return entry, nil
}

func (s *checkoutService) GetTransactions(filter repository.TransactionFilter) ([]model.Transaction, error) {
	return s.transactionRepo.FindAll(filter)
}

func (s *checkoutService) GetTransactionByID(id uuid.UUID) (*model.Transaction, error) {
	return s.transactionRepo.FindByID(id)
}

func (s *checkoutService) GetTransactionByInvoice(invoiceNumber string) (*model.Transaction, error) {
	return s.transactionRepo.FindByInvoiceNumber(invoiceNumber)
}

func (s *checkoutService) GetStockHistory(filter repository.LedgerFilter) (*repository.LedgerPage, error) {
	return s.ledgerRepo.FindAll(filter)
}

// broadcastSale pushes the committed sale to the websocket feed. Runs after
// commit so a rollback never produces a phantom event.
func (s *checkoutService) broadcastSale(transaction *model.Transaction) {
	if s.wsHub == nil {
		return
	}
	go s.wsHub.Publish(map[string]interface{}{
		"type":           "sale_committed",
		"invoice_number": transaction.InvoiceNumber,
		"total_amount":   transaction.TotalAmount,
		"item_count":     len(transaction.Items),
	})
}

func (s *checkoutService) broadcastStockChange(entry *model.StockLedgerEntry) {
	if s.wsHub == nil {
		return
	}
	go s.wsHub.Publish(map[string]interface{}{
		"type":       "stock_update",
		"product_id": entry.ProductID,
		"movement":   entry.Type,
		"quantity":   entry.Quantity,
	})
}
