package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockInvoiceRepository creates a GormInvoiceRepository backed by a mocked
// Postgres connection. The sqlite suite covers behavior against a live
// database; these tests pin down SQL shape and driver error handling that
// sqlite cannot reproduce.
func newMockInvoiceRepository(t *testing.T) (*GormInvoiceRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormInvoiceRepository(gormDB), mock, mockDB
}

func TestGormInvoiceRepository_CreateTranslatesPostgresDuplicate(t *testing.T) {
	repo, mock, mockDB := newMockInvoiceRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_invoices_invoice_number" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), &invoicing.Invoice{
		TemplateName:  "default",
		InvoiceGroup:  "default",
		InvoiceNumber: "INV-0001",
		Created:       time.Now(),
		Amount:        decimal.NewFromInt(100),
	})

	assert.ErrorIs(t, err, shared.ErrDuplicateNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_CreatePropagatesOtherErrors(t *testing.T) {
	repo, mock, mockDB := newMockInvoiceRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnError(errors.New("ERROR: connection refused"))

	err := repo.Create(context.Background(), &invoicing.Invoice{
		TemplateName:  "default",
		InvoiceGroup:  "default",
		InvoiceNumber: "INV-0001",
		Created:       time.Now(),
		Amount:        decimal.NewFromInt(100),
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrDuplicateNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_LastNumberForGroupQuery(t *testing.T) {
	repo, mock, mockDB := newMockInvoiceRepository(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{
		"id", "template", "created", "invoice_number", "invoice_group",
		"amount", "ext_key", "pdf_file", "debtor", "invoice_lines", "data",
	}).AddRow(
		uint(3), "default", time.Now(), "INV-0042", "default",
		decimal.NewFromInt(100), nil, nil, "", "", "",
	)

	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE invoice_group = \$1 ORDER BY invoice_number DESC,"invoices"\."id" LIMIT \$2`).
		WithArgs("default", 1).
		WillReturnRows(rows)

	number, err := repo.LastNumberForGroup(context.Background(), "default")

	assert.NoError(t, err)
	assert.Equal(t, "INV-0042", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_UpdateExcludesImmutableColumns(t *testing.T) {
	repo, mock, mockDB := newMockInvoiceRepository(t)
	defer mockDB.Close()

	mock.ExpectExec(`UPDATE "invoices" SET .* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &invoicing.Invoice{
		ID:            7,
		TemplateName:  "default",
		InvoiceGroup:  "default",
		InvoiceNumber: "INV-0007",
		Amount:        decimal.NewFromInt(250),
		PdfFile:       "invoice-INV-0007.pdf",
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
