package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create inserts a new invoice. A unique-constraint violation on the
// invoice number surfaces as shared.ErrDuplicateNumber so the service's
// generation retry loop can recompute against fresh history.
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	model, err := models.InvoiceModelFromDomain(invoice)
	if err != nil {
		return err
	}
	model.ID = 0

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrDuplicateNumber
		}
		return err
	}

	invoice.ID = model.ID
	return nil
}

// Update persists changes to an existing invoice. The number, group and
// creation timestamp are deliberately excluded: they are assigned once.
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *invoicing.Invoice) error {
	model, err := models.InvoiceModelFromDomain(invoice)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", invoice.ID).
		Select("template", "amount", "ext_key", "pdf_file", "debtor", "invoice_lines", "data").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uint) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByNumber finds an invoice by its unique number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "invoice_number = ?", invoiceNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByExtKey finds invoices correlated to an external key
func (r *GormInvoiceRepository) FindByExtKey(ctx context.Context, extKey string) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("ext_key = ?", extKey).
		Order("created DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toDomainSlice(invoiceModels)
}

// LastNumberForGroup returns the highest invoice number within a group,
// or "" when the group has no invoices yet.
func (r *GormInvoiceRepository) LastNumberForGroup(ctx context.Context, group string) (string, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("invoice_group = ?", group).
		Order("invoice_number DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return model.InvoiceNumber, nil
}

// List returns a page of invoices matching the filter
func (r *GormInvoiceRepository) List(ctx context.Context, filter invoicing.ListFilter) ([]invoicing.Invoice, error) {
	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "invoice_number")
	orderDir := ValidateSortOrder(filter.OrderDir)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var invoiceModels []models.InvoiceModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter).
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toDomainSlice(invoiceModels)
}

// Count returns the number of invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter invoicing.ListFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes an invoice by ID; deleting an absent ID is not an error
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.InvoiceModel{}, "id = ?", id).Error
}

// DeleteMany removes a batch of invoices by ID
func (r *GormInvoiceRepository) DeleteMany(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&models.InvoiceModel{}, "id IN ?", ids).Error
}

// applyFilter applies template/group filtering to a query
func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter invoicing.ListFilter) *gorm.DB {
	if filter.Template != "" {
		query = query.Where("template = ?", filter.Template)
	}
	if filter.InvoiceGroup != "" {
		query = query.Where("invoice_group = ?", filter.InvoiceGroup)
	}
	return query
}

// toDomainSlice converts persistence models to domain invoices
func toDomainSlice(invoiceModels []models.InvoiceModel) ([]invoicing.Invoice, error) {
	invoices := make([]invoicing.Invoice, 0, len(invoiceModels))
	for i := range invoiceModels {
		inv, err := invoiceModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// GORM translates driver errors when TranslateError is enabled; the string
// checks cover sqlite in tests and drivers without translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
