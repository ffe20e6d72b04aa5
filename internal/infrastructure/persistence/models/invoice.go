package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the GORM model for the invoices table. The contact,
// line and free-form data travel as JSON blobs; the invoice number carries
// the uniqueness constraint the number generator's retry loop depends on.
type InvoiceModel struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	Template      string          `gorm:"type:varchar(255);not null"`
	Created       time.Time       `gorm:"not null"`
	InvoiceNumber string          `gorm:"column:invoice_number;type:varchar(255);not null;uniqueIndex:idx_invoices_invoice_number"`
	InvoiceGroup  string          `gorm:"column:invoice_group;type:varchar(255);not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(9,2);not null"`
	ExtKey        *string         `gorm:"column:ext_key;type:varchar(255);index"`
	PdfFile       *string         `gorm:"column:pdf_file;type:varchar(255)"`
	Debtor        string          `gorm:"type:text"`
	InvoiceLines  string          `gorm:"column:invoice_lines;type:text"`
	Data          string          `gorm:"type:text"`
}

// TableName returns the table name for InvoiceModel
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts InvoiceModel to a domain Invoice
func (m *InvoiceModel) ToDomain() (*invoicing.Invoice, error) {
	inv := &invoicing.Invoice{
		ID:            m.ID,
		TemplateName:  m.Template,
		InvoiceGroup:  m.InvoiceGroup,
		InvoiceNumber: m.InvoiceNumber,
		Created:       m.Created,
		Amount:        m.Amount,
	}
	if m.ExtKey != nil {
		inv.ExtKey = *m.ExtKey
	}
	if m.PdfFile != nil {
		inv.PdfFile = *m.PdfFile
	}
	if m.Debtor != "" {
		if err := json.Unmarshal([]byte(m.Debtor), &inv.Debtor); err != nil {
			return nil, fmt.Errorf("invoice %d: decoding debtor: %w", m.ID, err)
		}
	}
	if m.InvoiceLines != "" {
		if err := json.Unmarshal([]byte(m.InvoiceLines), &inv.Lines); err != nil {
			return nil, fmt.Errorf("invoice %d: decoding lines: %w", m.ID, err)
		}
	}
	if m.Data != "" {
		if err := json.Unmarshal([]byte(m.Data), &inv.Data); err != nil {
			return nil, fmt.Errorf("invoice %d: decoding data: %w", m.ID, err)
		}
	}
	return inv, nil
}

// InvoiceModelFromDomain creates an InvoiceModel from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) (*InvoiceModel, error) {
	debtor, err := json.Marshal(inv.Debtor)
	if err != nil {
		return nil, fmt.Errorf("encoding debtor: %w", err)
	}
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return nil, fmt.Errorf("encoding lines: %w", err)
	}
	data, err := json.Marshal(inv.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding data: %w", err)
	}

	m := &InvoiceModel{
		ID:            inv.ID,
		Template:      inv.TemplateName,
		Created:       inv.Created,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceGroup:  inv.InvoiceGroup,
		Amount:        inv.Amount,
		Debtor:        string(debtor),
		InvoiceLines:  string(lines),
		Data:          string(data),
	}
	if inv.ExtKey != "" {
		m.ExtKey = &inv.ExtKey
	}
	if inv.PdfFile != "" {
		m.PdfFile = &inv.PdfFile
	}
	return m, nil
}
