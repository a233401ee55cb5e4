package service

import (
	"testing"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductFixture(t *testing.T) (*checkoutFixture, ProductService) {
	t.Helper()
	f := newCheckoutFixture(t)
	svc := NewProductService(f.products, f.ledger, f.db)
	return f, svc
}

func TestCreateProductWritesOpeningLedgerEntry(t *testing.T) {
	f, svc := newProductFixture(t)

	p := &model.Product{
		SKU: "NEW-001", Name: "Produk Baru",
		SellPrice: dec("5000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("30"), IsActive: true,
	}
	require.NoError(t, svc.CreateProduct(p, f.cashier.ID))

	var entry model.StockLedgerEntry
	require.NoError(t, f.db.Where("product_id = ?", p.ID).First(&entry).Error)
	assert.Equal(t, model.MovementIn, entry.Type)
	assert.True(t, entry.Quantity.Equal(dec("30")))
	assert.Equal(t, "Stok awal", entry.Note)
	f.requireLedgerReconciles(t, p.ID)
}

func TestCreateProductZeroStockSkipsLedger(t *testing.T) {
	f, svc := newProductFixture(t)

	p := &model.Product{
		SKU: "NEW-002", Name: "Produk Kosong",
		SellPrice: dec("5000"), Unit: "pcs",
		UnitConversion: dec("1"), IsActive: true,
	}
	require.NoError(t, svc.CreateProduct(p, f.cashier.ID))

	var count int64
	f.db.Model(&model.StockLedgerEntry{}).Where("product_id = ?", p.ID).Count(&count)
	assert.Zero(t, count)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	f, svc := newProductFixture(t)

	first := &model.Product{
		SKU: "DUP-001", Name: "Pertama",
		SellPrice: dec("1000"), Unit: "pcs", UnitConversion: dec("1"), IsActive: true,
	}
	require.NoError(t, svc.CreateProduct(first, f.cashier.ID))

	second := &model.Product{
		SKU: "DUP-001", Name: "Kedua",
		SellPrice: dec("2000"), Unit: "pcs", UnitConversion: dec("1"), IsActive: true,
	}
	assert.ErrorIs(t, svc.CreateProduct(second, f.cashier.ID), ErrSKUTaken)
}

// A product with sale history must be deactivated, never hard-deleted: its
// line items and ledger entries are the audit trail.
func TestDeleteProductWithHistoryDeactivates(t *testing.T) {
	f, svc := newProductFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "DEL-001", Name: "Laris Manis",
		SellPrice: dec("2000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	_, err := f.service.Checkout(&CheckoutRequest{
		Items:         []CartLine{{ProductID: p.ID, Quantity: dec("1")}},
		PaymentAmount: dec("2000"),
	}, f.cashier.ID)
	require.NoError(t, err)

	result, err := svc.DeleteProduct(p.ID)
	require.NoError(t, err)
	assert.True(t, result.Deactivated)
	assert.False(t, result.Deleted)

	kept, err := f.products.FindByID(p.ID)
	require.NoError(t, err)
	assert.False(t, kept.IsActive)
}

func TestDeleteProductWithoutHistory(t *testing.T) {
	f, svc := newProductFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "DEL-002", Name: "Tidak Laku",
		SellPrice: dec("2000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	result, err := svc.DeleteProduct(p.ID)
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	_, err = svc.GetProductByID(p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProductDoesNotTouchStock(t *testing.T) {
	f, svc := newProductFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "UPD-001", Name: "Harga Lama",
		SellPrice: dec("2000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("10"), IsActive: true,
	})

	updated, err := svc.UpdateProduct(p.ID, &UpdateProductRequest{
		SKU: p.SKU, Name: "Harga Baru",
		SellPrice: dec("2500"), Unit: "pcs",
		UnitConversion: dec("1"), MinStock: p.MinStock,
	})
	require.NoError(t, err)
	assert.Equal(t, "Harga Baru", updated.Name)
	assert.True(t, f.currentStock(t, p.ID).Equal(dec("10")))
	f.requireLedgerReconciles(t, p.ID)
}

// A PUT body that omits is_active must not deactivate the product; only an
// explicit false does.
func TestUpdateProductOmittedIsActiveKeepsState(t *testing.T) {
	f, svc := newProductFixture(t)
	p := f.seedProduct(t, &model.Product{
		SKU: "UPD-002", Name: "Masih Aktif",
		SellPrice: dec("2000"), Unit: "pcs",
		UnitConversion: dec("1"), Stock: dec("5"), IsActive: true,
	})

	updated, err := svc.UpdateProduct(p.ID, &UpdateProductRequest{
		SKU: p.SKU, Name: p.Name, SellPrice: dec("2100"),
		Unit: "pcs", UnitConversion: dec("1"),
	})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	inactive := false
	updated, err = svc.UpdateProduct(p.ID, &UpdateProductRequest{
		SKU: p.SKU, Name: p.Name, SellPrice: dec("2100"),
		Unit: "pcs", UnitConversion: dec("1"), IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
}

func TestProductFilterActiveOnly(t *testing.T) {
	f, svc := newProductFixture(t)
	f.seedProduct(t, &model.Product{
		SKU: "ACT-001", Name: "Aktif",
		SellPrice: dec("1000"), Unit: "pcs", UnitConversion: dec("1"), IsActive: true,
	})
	f.seedProduct(t, &model.Product{
		SKU: "ACT-002", Name: "Nonaktif",
		SellPrice: dec("1000"), Unit: "pcs", UnitConversion: dec("1"), IsActive: false,
	})

	active, err := svc.GetProducts(repository.ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Aktif", active[0].Name)

	all, err := svc.GetProducts(repository.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
