package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/pkg/invoice"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database per test. The shared cache
// keeps all pooled connections on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.Transaction{},
		&model.TransactionItem{},
		&model.StockLedgerEntry{},
	))
	return db
}

type checkoutFixture struct {
	db       *gorm.DB
	service  CheckoutService
	products repository.ProductRepository
	ledger   repository.LedgerRepository
	cashier  *model.User
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newTestDB(t)

	cashier := &model.User{Name: "Kasir Satu", Email: "kasir@example.com", Role: model.RoleKasir, IsActive: true}
	require.NoError(t, cashier.SetPassword("secret1"))
	require.NoError(t, db.Create(cashier).Error)

	productRepo := repository.NewProductRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	svc := NewCheckoutService(productRepo, repository.NewTransactionRepo(db), ledgerRepo, db, nil)

	return &checkoutFixture{
		db:       db,
		service:  svc,
		products: productRepo,
		ledger:   ledgerRepo,
		cashier:  cashier,
	}
}

// seedProduct stores a product plus the opening IN ledger entry so that the
// ledger reconciles from the start, mirroring what the product service does.
func (f *checkoutFixture) seedProduct(t *testing.T, p *model.Product) *model.Product {
	t.Helper()
	require.NoError(t, f.db.Create(p).Error)
	if p.Stock.IsPositive() {
		entry := &model.StockLedgerEntry{
			ProductID: p.ID,
			Type:      model.MovementIn,
			Quantity:  p.Stock,
			Note:      "Stok awal",
			UserID:    f.cashier.ID,
		}
		require.NoError(t, f.db.Create(entry).Error)
	}
	return p
}

func (f *checkoutFixture) currentStock(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	product, err := f.products.FindByID(id)
	require.NoError(t, err)
	return product.Stock
}

// requireLedgerReconciles asserts the core invariant: the stock column always
// equals the sum of the product's signed ledger deltas.
func (f *checkoutFixture) requireLedgerReconciles(t *testing.T, id uuid.UUID) {
	t.Helper()
	sum, err := f.ledger.SumQuantity(id)
	require.NoError(t, err)
	stock := f.currentStock(t, id)
	require.True(t, stock.Equal(sum), "stock %s != ledger sum %s", stock, sum)
}

func TestCheckoutRetail(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "SAB-001", Name: "Sabun Mandi",
		SellPrice: dec("15000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("50"), IsActive: true,
	})

	tx, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("2"), PriceType: model.PriceRetail}},
		PaymentAmount: dec("30000"),
	}, f.cashier.ID)
	require.NoError(t, err)

	assert.True(t, tx.TotalAmount.Equal(dec("30000")))
	assert.True(t, tx.ChangeAmount.Equal(dec("0")))
	assert.Equal(t, model.PaymentCash, tx.PaymentMethod)
	assert.True(t, strings.HasPrefix(tx.InvoiceNumber, "INV"))
	require.Len(t, tx.Items, 1)
	assert.True(t, tx.Items[0].Subtotal.Equal(dec("30000")))

	assert.True(t, f.currentStock(t, p.ID).Equal(dec("48")))
	f.requireLedgerReconciles(t, p.ID)

	// Ledger entry references the invoice
	var entry model.StockLedgerEntry
	require.NoError(t, f.db.Where("product_id = ? AND type = ?", p.ID, model.MovementOut).First(&entry).Error)
	assert.True(t, entry.Quantity.Equal(dec("-2")))
	assert.Contains(t, entry.Note, tx.InvoiceNumber)
}

func TestCheckoutWholesaleConvertsStockUnits(t *testing.T) {
	f := newCheckoutFixture(t)
	wholesale := dec("8000")
	unitWholesale := "dus"
	p := f.seedProduct(t, &model.Product{
		SKU: "AQA-001", Name: "Air Mineral",
		SellPrice: dec("1000"), SellPriceWholesale: &wholesale,
		WholesaleMinQty: dec("5"), Unit: "pcs", UnitWholesale: &unitWholesale,
		UnitConversion: dec("12"), Stock: dec("120"), IsActive: true,
	})

	tx, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("5"), PriceType: model.PriceWholesale}},
		PaymentAmount: dec("40000"),
	}, f.cashier.ID)
	require.NoError(t, err)

	assert.True(t, tx.TotalAmount.Equal(dec("40000")))
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "dus", tx.Items[0].Unit)
	assert.Equal(t, model.PriceWholesale, tx.Items[0].PriceType)
	// Item stores the sold quantity (5 dus); stock loses 5 x 12 = 60 pcs
	assert.True(t, tx.Items[0].Quantity.Equal(dec("5")))
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("60")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.service.Checkout(&CheckoutRequest{PaymentAmount: dec("1000")}, f.cashier.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutUnknownProduct(t *testing.T) {
	f := newCheckoutFixture(t)
	ghost := uuid.New()

	_, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: ghost, Quantity: dec("1")}},
		PaymentAmount: dec("1000"),
	}, f.cashier.ID)

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, ghost, notFound.ProductID)
}

func TestCheckoutInsufficientPayment(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "KPI-001", Name: "Kopi Bubuk",
		SellPrice: dec("20000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	_, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("2")}},
		PaymentAmount: dec("39999"),
	}, f.cashier.ID)

	var short *InsufficientPaymentError
	require.ErrorAs(t, err, &short)
	assert.True(t, short.Total.Equal(dec("40000")))

	// No side effects on reject
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("10")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "GLA-001", Name: "Gula Pasir",
		SellPrice: dec("14000"), Unit: "kg",
		UnitConversion: dec("1"), SoldByWeight: true, Stock: dec("3"), IsActive: true,
	})

	_, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("5")}},
		PaymentAmount: dec("100000"),
	}, f.cashier.ID)

	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	assert.Equal(t, p.ID, noStock.ProductID)
	assert.True(t, noStock.Available.Equal(dec("3")))

	assert.True(t, f.currentStock(t, p.ID).Equal(dec("3")))
	f.requireLedgerReconciles(t, p.ID)
}

// A failing line rejects the whole cart: no transaction, no items, no stock
// change and no ledger rows may survive the attempt.
func TestCheckoutAllOrNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	good := f.seedProduct(t, &model.Product{
		SKU: "OK-001", Name: "Mie Instan",
		SellPrice: dec("3000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("100"), IsActive: true,
	})
	scarce := f.seedProduct(t, &model.Product{
		SKU: "NO-001", Name: "Minyak Goreng",
		SellPrice: dec("18000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("1"), IsActive: true,
	})

	_, err := f.service.Checkout(&CheckoutRequest{
		Items: []CartLine{
			{ProductID: good.ID, Quantity: dec("10")},
			{ProductID: scarce.ID, Quantity: dec("2")},
		},
		PaymentAmount: dec("1000000"),
	}, f.cashier.ID)

	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)

	var txCount, itemCount, outCount int64
	f.db.Model(&model.Transaction{}).Count(&txCount)
	f.db.Model(&model.TransactionItem{}).Count(&itemCount)
	f.db.Model(&model.StockLedgerEntry{}).Where("type = ?", model.MovementOut).Count(&outCount)
	assert.Zero(t, txCount)
	assert.Zero(t, itemCount)
	assert.Zero(t, outCount)
	assert.True(t, f.currentStock(t, good.ID).Equal(dec("100")))
	assert.True(t, f.currentStock(t, scarce.ID).Equal(dec("1")))
}

// Two lines of the same product (retail + wholesale) must be checked against
// stock as a combined consumption.
func TestCheckoutCombinedConsumptionSameProduct(t *testing.T) {
	f := newCheckoutFixture(t)
	wholesale := dec("8000")
	p := f.seedProduct(t, &model.Product{
		SKU: "SRD-001", Name: "Sarden Kaleng",
		SellPrice: dec("10000"), SellPriceWholesale: &wholesale,
		WholesaleMinQty: dec("5"), Unit: "pcs",
		UnitConversion: dec("12"), Stock: dec("65"), IsActive: true,
	})

	// 5 dus (60 pcs) + 10 pcs = 70 pcs needed, only 65 on hand
	_, err := f.service.Checkout(&CheckoutRequest{
		Items: []CartLine{
			{ProductID: p.ID, Quantity: dec("5"), PriceType: model.PriceWholesale},
			{ProductID: p.ID, Quantity: dec("10"), PriceType: model.PriceRetail},
		},
		PaymentAmount: dec("1000000"),
	}, f.cashier.ID)

	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("65")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestCheckoutTagsPricingErrorWithLine(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "TLR-001", Name: "Telur Ayam",
		SellPrice: dec("2500"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("30"), IsActive: true,
	})

	_, err := f.service.Checkout(&CheckoutRequest{
		Items: []CartLine{
			{ProductID: p.ID, Quantity: dec("2")},
			{ProductID: p.ID, Quantity: dec("1.5")}, // fractional, not sold by weight
		},
		PaymentAmount: dec("100000"),
	}, f.cashier.ID)

	var line *LineError
	require.ErrorAs(t, err, &line)
	assert.Equal(t, 2, line.Line)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCheckoutSequentialOversell(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "SSU-001", Name: "Susu Kental",
		SellPrice: dec("12000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	// Each wants 6 of 10: the first commits, the second must fail
	req := &CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("6")}},
		PaymentAmount: dec("72000"),
	}
	_, err := f.service.Checkout(req, f.cashier.ID)
	require.NoError(t, err)

	_, err = f.service.Checkout(req, f.cashier.ID)
	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)

	assert.True(t, f.currentStock(t, p.ID).Equal(dec("4")))
	f.requireLedgerReconciles(t, p.ID)
}

// Racing checkouts must never oversell: with two carts each wanting 60% of
// stock, exactly one commits and the other gets the stock error.
func TestCheckoutConcurrentNoOversell(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "RCE-001", Name: "Beras Medium",
		SellPrice: dec("13000"), Unit: "kg",
		UnitConversion: dec("1"), SoldByWeight: true, Stock: dec("10"), IsActive: true,
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Checkout(&CheckoutRequest{
				Items:         []CartLine{{ProductID: p.ID, Quantity: dec("6")}},
				PaymentAmount: dec("78000"),
			}, f.cashier.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one of the racing checkouts must commit: %v", errs)

	assert.True(t, f.currentStock(t, p.ID).Equal(dec("4")))
	f.requireLedgerReconciles(t, p.ID)
}

// A duplicate invoice number must be retried transparently: the second
// attempt uses a freshly generated number and the aborted first attempt
// leaves no partial rows behind.
func TestCheckoutRetriesOnInvoiceCollision(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "RTI-001", Name: "Roti Tawar",
		SellPrice: dec("16000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("20"), IsActive: true,
	})

	taken := invoice.Generate()
	require.NoError(t, f.db.Create(&model.Transaction{
		InvoiceNumber: taken,
		TotalAmount:   dec("1000"),
		PaymentAmount: dec("1000"),
		ChangeAmount:  dec("0"),
		PaymentMethod: model.PaymentCash,
		UserID:        f.cashier.ID,
	}).Error)

	// First candidate collides with the seeded invoice number
	calls := 0
	f.service.(*checkoutService).newInvoice = func() string {
		calls++
		if calls == 1 {
			return taken
		}
		return invoice.Generate()
	}

	tx, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("2")}},
		PaymentAmount: dec("32000"),
	}, f.cashier.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.NotEqual(t, taken, tx.InvoiceNumber)

	// Exactly one sale committed on top of the seeded row, charged once
	var txCount, itemCount, outCount int64
	f.db.Model(&model.Transaction{}).Count(&txCount)
	f.db.Model(&model.TransactionItem{}).Count(&itemCount)
	f.db.Model(&model.StockLedgerEntry{}).Where("type = ?", model.MovementOut).Count(&outCount)
	assert.EqualValues(t, 2, txCount)
	assert.EqualValues(t, 1, itemCount)
	assert.EqualValues(t, 1, outCount)
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("18")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestCheckoutRejectsMalformedRequest(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "PRM-001", Name: "Permen Karet",
		SellPrice: dec("500"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	var fieldErr *FieldError

	_, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("1")}},
		PaymentAmount: dec("500"),
		PaymentMethod: "BARTER",
	}, f.cashier.ID)
	require.ErrorAs(t, err, &fieldErr)
	assert.True(t, IsValidationError(err))

	_, err = f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: uuid.Nil, Quantity: dec("1")}},
		PaymentAmount: dec("500"),
	}, f.cashier.ID)
	assert.ErrorAs(t, err, &fieldErr)

	assert.True(t, f.currentStock(t, p.ID).Equal(dec("10")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestAdjustStockIn(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "ADJ-001", Name: "Tepung Terigu",
		SellPrice: dec("11000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("5"), IsActive: true,
	})

	entry, err := f.service.AdjustStock(&AdjustStockRequest{
		ProductID: p.ID, Type: model.MovementIn, Quantity: dec("20"), Note: "Restock supplier",
	}, f.cashier.ID)
	require.NoError(t, err)

	assert.True(t, entry.Quantity.Equal(dec("20")))
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("25")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestAdjustStockOutInsufficient(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "ADJ-002", Name: "Garam Dapur",
		SellPrice: dec("4000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("3"), IsActive: true,
	})

	_, err := f.service.AdjustStock(&AdjustStockRequest{
		ProductID: p.ID, Type: model.MovementOut, Quantity: dec("4"), Note: "Barang rusak",
	}, f.cashier.ID)

	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("3")))
	f.requireLedgerReconciles(t, p.ID)
}

// ADJUSTMENT takes the new absolute value but the ledger records the signed
// net delta, keeping the audit trail a log of changes.
func TestAdjustStockAdjustmentStoresNetDelta(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "ADJ-003", Name: "Kecap Manis",
		SellPrice: dec("9000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("40"), IsActive: true,
	})

	entry, err := f.service.AdjustStock(&AdjustStockRequest{
		ProductID: p.ID, Type: model.MovementAdjustment, Quantity: dec("25"), Note: "Stock opname",
	}, f.cashier.ID)
	require.NoError(t, err)

	assert.True(t, entry.Quantity.Equal(dec("-15")))
	assert.Equal(t, model.MovementAdjustment, entry.Type)
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("25")))
	f.requireLedgerReconciles(t, p.ID)
}

func TestAdjustStockValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "ADJ-004", Name: "Saus Sambal",
		SellPrice: dec("7000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	_, err := f.service.AdjustStock(&AdjustStockRequest{
		ProductID: p.ID, Type: "TRANSFER", Quantity: dec("5"),
	}, f.cashier.ID)
	assert.ErrorIs(t, err, ErrInvalidMovement)

	_, err = f.service.AdjustStock(&AdjustStockRequest{
		ProductID: p.ID, Type: model.MovementIn, Quantity: dec("0"),
	}, f.cashier.ID)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.service.AdjustStock(&AdjustStockRequest{
		ProductID: uuid.Nil, Type: model.MovementIn, Quantity: dec("5"),
	}, f.cashier.ID)
	var fieldErr *FieldError
	assert.ErrorAs(t, err, &fieldErr)

	_, err = f.service.AdjustStock(&AdjustStockRequest{
		ProductID: uuid.New(), Type: model.MovementIn, Quantity: dec("5"),
	}, f.cashier.ID)
	var notFound *ProductNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
