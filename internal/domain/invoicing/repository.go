package invoicing

import (
	"context"
)

// ListFilter narrows and orders invoice listings.
type ListFilter struct {
	Template     string
	InvoiceGroup string
	OrderBy      string // invoice_number, invoice_group, template, amount, created
	OrderDir     string // asc or desc
	Page         int
	PageSize     int
}

// InvoiceRepository defines the persistence port for invoices.
// Create must surface the invoice-number uniqueness violation as
// shared.ErrDuplicateNumber so callers can retry number generation.
type InvoiceRepository interface {
	// Create inserts a new invoice and assigns its ID
	Create(ctx context.Context, invoice *Invoice) error

	// Update persists changes to an existing invoice.
	// The invoice number and group are never modified by updates.
	Update(ctx context.Context, invoice *Invoice) error

	// FindByID finds an invoice by its ID
	FindByID(ctx context.Context, id uint) (*Invoice, error)

	// FindByNumber finds an invoice by its unique number
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// FindByExtKey finds invoices correlated to an external key
	FindByExtKey(ctx context.Context, extKey string) ([]Invoice, error)

	// LastNumberForGroup returns the highest invoice number in a group,
	// or "" when the group has no invoices yet
	LastNumberForGroup(ctx context.Context, group string) (string, error)

	// List returns a page of invoices matching the filter
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)

	// Count returns the number of invoices matching the filter
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// Delete removes an invoice by ID; deleting an absent ID is not an error
	Delete(ctx context.Context, id uint) error

	// DeleteMany removes a batch of invoices by ID
	DeleteMany(ctx context.Context, ids []uint) error
}
