package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupInvoiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.InvoiceModel{})
	require.NoError(t, err)

	return db
}

func testInvoice(number, group string) *invoicing.Invoice {
	return &invoicing.Invoice{
		TemplateName:  "default",
		InvoiceGroup:  group,
		InvoiceNumber: number,
		Created:       time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromFloat(120.50),
		Debtor:        invoicing.Debtor{Name: "Acme Corp", City: "Rotterdam"},
		Lines: invoicing.InvoiceLines{
			{Title: "Consulting", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromFloat(60.25)},
		},
		Data: map[string]string{"po": "PO-9"},
	}
}

func TestGormInvoiceRepository_Create(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	t.Run("assigns ID and round-trips all fields", func(t *testing.T) {
		inv := testInvoice("INV-0001", "default")
		inv.ExtKey = "order-42"

		require.NoError(t, repo.Create(ctx, inv))
		assert.NotZero(t, inv.ID)

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-0001", found.InvoiceNumber)
		assert.Equal(t, "default", found.InvoiceGroup)
		assert.Equal(t, "order-42", found.ExtKey)
		assert.Equal(t, "Acme Corp", found.Debtor.Name)
		require.Len(t, found.Lines, 1)
		assert.True(t, found.Lines[0].Price.Equal(decimal.NewFromFloat(60.25)))
		assert.Equal(t, "PO-9", found.Data["po"])
	})

	t.Run("rejects duplicate invoice number", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testInvoice("INV-0002", "default")))

		err := repo.Create(ctx, testInvoice("INV-0002", "default"))
		assert.ErrorIs(t, err, shared.ErrDuplicateNumber)
	})

	t.Run("rejects duplicate number even across groups", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testInvoice("INV-0003", "default")))

		err := repo.Create(ctx, testInvoice("INV-0003", "proforma"))
		assert.ErrorIs(t, err, shared.ErrDuplicateNumber)
	})
}

// Two writers that both derived their number from the same history: the
// loser gets ErrDuplicateNumber, recomputes from the fresh last number and
// lands on a strictly higher one.
func TestGormInvoiceRepository_CreateRetryAfterCollision(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	group := invoicing.InvoiceGroup{Name: "default", NumberPattern: "INV-{counter}", Digits: 4}

	last, err := repo.LastNumberForGroup(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, last)

	number, err := group.FormatNumber(1, nil)
	require.NoError(t, err)

	// Both writers computed the same candidate; the first one wins.
	require.NoError(t, repo.Create(ctx, testInvoice(number, "default")))

	loser := testInvoice(number, "default")
	err = repo.Create(ctx, loser)
	require.ErrorIs(t, err, shared.ErrDuplicateNumber)

	// The loser recomputes against the persisted history.
	last, err = repo.LastNumberForGroup(ctx, "default")
	require.NoError(t, err)
	counter, err := group.ParseCounter(last)
	require.NoError(t, err)

	next, err := group.FormatNumber(counter+1, nil)
	require.NoError(t, err)
	assert.Greater(t, next, number)

	loser.InvoiceNumber = next
	require.NoError(t, repo.Create(ctx, loser))
}

func TestGormInvoiceRepository_Update(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	t.Run("updates mutable fields only", func(t *testing.T) {
		inv := testInvoice("INV-0010", "default")
		require.NoError(t, repo.Create(ctx, inv))

		inv.Amount = decimal.NewFromFloat(200)
		inv.PdfFile = "invoice-INV-0010.pdf"
		inv.Debtor.Name = "Acme B.V."
		inv.InvoiceNumber = "INV-9999" // must not be persisted
		inv.InvoiceGroup = "proforma"  // must not be persisted
		require.NoError(t, repo.Update(ctx, inv))

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-0010", found.InvoiceNumber)
		assert.Equal(t, "default", found.InvoiceGroup)
		assert.Equal(t, "invoice-INV-0010.pdf", found.PdfFile)
		assert.Equal(t, "Acme B.V.", found.Debtor.Name)
		assert.True(t, found.Amount.Equal(decimal.NewFromFloat(200)))
	})

	t.Run("returns not found for unknown ID", func(t *testing.T) {
		inv := testInvoice("INV-0011", "default")
		inv.ID = 987654
		err := repo.Update(ctx, inv)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormInvoiceRepository_Find(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := testInvoice("INV-0020", "default")
	inv.ExtKey = "order-7"
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("by number", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, "INV-0020")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, found.ID)
	})

	t.Run("by number not found", func(t *testing.T) {
		_, err := repo.FindByNumber(ctx, "INV-404")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("by ID not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, 424242)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("by ext key", func(t *testing.T) {
		second := testInvoice("INV-0021", "default")
		second.ExtKey = "order-7"
		require.NoError(t, repo.Create(ctx, second))

		found, err := repo.FindByExtKey(ctx, "order-7")
		require.NoError(t, err)
		assert.Len(t, found, 2)

		none, err := repo.FindByExtKey(ctx, "order-void")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestGormInvoiceRepository_LastNumberForGroup(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	t.Run("empty group yields empty string", func(t *testing.T) {
		last, err := repo.LastNumberForGroup(ctx, "default")
		require.NoError(t, err)
		assert.Empty(t, last)
	})

	t.Run("returns highest number in group only", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testInvoice("INV-0001", "default")))
		require.NoError(t, repo.Create(ctx, testInvoice("INV-0005", "default")))
		require.NoError(t, repo.Create(ctx, testInvoice("PRO-0100", "proforma")))

		last, err := repo.LastNumberForGroup(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, "INV-0005", last)

		last, err = repo.LastNumberForGroup(ctx, "proforma")
		require.NoError(t, err)
		assert.Equal(t, "PRO-0100", last)
	})
}

func TestGormInvoiceRepository_ListAndCount(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	for _, n := range []string{"INV-0001", "INV-0002", "INV-0003"} {
		require.NoError(t, repo.Create(ctx, testInvoice(n, "default")))
	}
	pro := testInvoice("PRO-0001", "proforma")
	pro.TemplateName = "proforma"
	require.NoError(t, repo.Create(ctx, pro))

	t.Run("filters by group", func(t *testing.T) {
		invoices, err := repo.List(ctx, invoicing.ListFilter{InvoiceGroup: "default"})
		require.NoError(t, err)
		assert.Len(t, invoices, 3)

		count, err := repo.Count(ctx, invoicing.ListFilter{InvoiceGroup: "default"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})

	t.Run("filters by template", func(t *testing.T) {
		invoices, err := repo.List(ctx, invoicing.ListFilter{Template: "proforma"})
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, "PRO-0001", invoices[0].InvoiceNumber)
	})

	t.Run("default order is invoice_number descending", func(t *testing.T) {
		invoices, err := repo.List(ctx, invoicing.ListFilter{InvoiceGroup: "default"})
		require.NoError(t, err)
		require.Len(t, invoices, 3)
		assert.Equal(t, "INV-0003", invoices[0].InvoiceNumber)
		assert.Equal(t, "INV-0001", invoices[2].InvoiceNumber)
	})

	t.Run("explicit ascending order", func(t *testing.T) {
		invoices, err := repo.List(ctx, invoicing.ListFilter{
			InvoiceGroup: "default",
			OrderBy:      "invoice_number",
			OrderDir:     "asc",
		})
		require.NoError(t, err)
		require.Len(t, invoices, 3)
		assert.Equal(t, "INV-0001", invoices[0].InvoiceNumber)
	})

	t.Run("hostile order field falls back to default", func(t *testing.T) {
		invoices, err := repo.List(ctx, invoicing.ListFilter{
			OrderBy:  "id; DROP TABLE invoices",
			OrderDir: "asc",
		})
		require.NoError(t, err)
		assert.Len(t, invoices, 4)
	})

	t.Run("paginates", func(t *testing.T) {
		page, err := repo.List(ctx, invoicing.ListFilter{
			InvoiceGroup: "default",
			OrderBy:      "invoice_number",
			OrderDir:     "asc",
			Page:         2,
			PageSize:     2,
		})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "INV-0003", page[0].InvoiceNumber)
	})
}

func TestGormInvoiceRepository_Delete(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	t.Run("deletes by ID", func(t *testing.T) {
		inv := testInvoice("INV-0030", "default")
		require.NoError(t, repo.Create(ctx, inv))
		require.NoError(t, repo.Delete(ctx, inv.ID))

		_, err := repo.FindByID(ctx, inv.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("deleting absent ID is not an error", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx, 999999))
	})

	t.Run("deletes many", func(t *testing.T) {
		a := testInvoice("INV-0031", "default")
		b := testInvoice("INV-0032", "default")
		c := testInvoice("INV-0033", "default")
		for _, inv := range []*invoicing.Invoice{a, b, c} {
			require.NoError(t, repo.Create(ctx, inv))
		}

		require.NoError(t, repo.DeleteMany(ctx, []uint{a.ID, b.ID}))

		count, err := repo.Count(ctx, invoicing.ListFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		require.NoError(t, repo.DeleteMany(ctx, nil))
	})
}
