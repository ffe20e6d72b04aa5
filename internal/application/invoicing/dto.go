package invoicing

import (
	"time"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// DebtorDTO carries billing contact data over the API
type DebtorDTO struct {
	Name    string `json:"name" binding:"required"`
	Company string `json:"company,omitempty"`
	Address string `json:"address,omitempty"`
	Zip     string `json:"zip,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// InvoiceLineDTO carries one invoice line over the API
type InvoiceLineDTO struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// CreateInvoiceRequest is the payload for creating an invoice. The invoice
// number is never supplied by the caller; it is generated server-side from
// the group's pattern.
type CreateInvoiceRequest struct {
	Template     string            `json:"template" binding:"required"`
	InvoiceGroup string            `json:"invoice_group" binding:"required"`
	ExtKey       string            `json:"ext_key,omitempty"`
	Amount       *decimal.Decimal  `json:"amount,omitempty"`
	Debtor       DebtorDTO         `json:"debtor" binding:"required"`
	Lines        []InvoiceLineDTO  `json:"lines"`
	Data         map[string]string `json:"data,omitempty"`
}

// UpdateInvoiceRequest is the payload for updating an invoice. Only mutable
// fields appear here: number, group and creation time are assigned once.
// Nil pointers mean "leave unchanged".
type UpdateInvoiceRequest struct {
	ExtKey *string           `json:"ext_key,omitempty"`
	Amount *decimal.Decimal  `json:"amount,omitempty"`
	Debtor *DebtorDTO        `json:"debtor,omitempty"`
	Lines  *[]InvoiceLineDTO `json:"lines,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
}

// ListInvoicesRequest narrows and orders an invoice listing
type ListInvoicesRequest struct {
	Template     string `form:"template"`
	InvoiceGroup string `form:"invoice_group"`
	OrderBy      string `form:"order_by"`
	OrderDir     string `form:"order_dir"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}

// InvoiceResponse is the API representation of an invoice
type InvoiceResponse struct {
	ID            uint              `json:"id"`
	Template      string            `json:"template"`
	InvoiceGroup  string            `json:"invoice_group"`
	InvoiceNumber string            `json:"invoice_number"`
	Created       time.Time         `json:"created"`
	Amount        decimal.Decimal   `json:"amount"`
	ExtKey        string            `json:"ext_key,omitempty"`
	PdfFile       string            `json:"pdf_file,omitempty"`
	Debtor        DebtorDTO         `json:"debtor"`
	Lines         []InvoiceLineDTO  `json:"lines"`
	Data          map[string]string `json:"data,omitempty"`
}

// ListInvoicesResponse is a page of invoices plus listing metadata
type ListInvoicesResponse struct {
	Items []InvoiceResponse `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
}

// GroupResponse describes a configured numbering group
type GroupResponse struct {
	Name          string `json:"name"`
	NumberPattern string `json:"number_pattern"`
	Digits        int    `json:"digits"`
}

// TemplateResponse describes a configured invoice template
type TemplateResponse struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// DownloadKeyResponse carries a freshly issued download grant
type DownloadKeyResponse struct {
	InvoiceID   uint   `json:"invoice_id"`
	DownloadKey string `json:"download_key"`
}

// toDomainInvoice builds a domain invoice from a create request
func (r CreateInvoiceRequest) toDomainInvoice() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		TemplateName: r.Template,
		InvoiceGroup: r.InvoiceGroup,
		ExtKey:       r.ExtKey,
		Debtor:       toDomainDebtor(r.Debtor),
		Lines:        toDomainLines(r.Lines),
		Data:         r.Data,
	}
	if r.Amount != nil {
		inv.Amount = *r.Amount
	} else {
		inv.Amount = inv.Lines.Sum()
	}
	return inv
}

func toDomainDebtor(d DebtorDTO) invoicing.Debtor {
	return invoicing.Debtor{
		Name:    d.Name,
		Company: d.Company,
		Address: d.Address,
		Zip:     d.Zip,
		City:    d.City,
		Country: d.Country,
		Email:   d.Email,
		Phone:   d.Phone,
	}
}

func toDomainLines(lines []InvoiceLineDTO) invoicing.InvoiceLines {
	out := make(invoicing.InvoiceLines, 0, len(lines))
	for _, l := range lines {
		out = append(out, invoicing.InvoiceLine{
			Title:       l.Title,
			Description: l.Description,
			Quantity:    l.Quantity,
			Price:       l.Price,
		})
	}
	return out
}

// ToInvoiceResponse converts a domain invoice into its API representation
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	lines := make([]InvoiceLineDTO, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, InvoiceLineDTO{
			Title:       l.Title,
			Description: l.Description,
			Quantity:    l.Quantity,
			Price:       l.Price,
		})
	}
	return InvoiceResponse{
		ID:            inv.ID,
		Template:      inv.TemplateName,
		InvoiceGroup:  inv.InvoiceGroup,
		InvoiceNumber: inv.InvoiceNumber,
		Created:       inv.Created,
		Amount:        inv.Amount,
		ExtKey:        inv.ExtKey,
		PdfFile:       inv.PdfFile,
		Debtor: DebtorDTO{
			Name:    inv.Debtor.Name,
			Company: inv.Debtor.Company,
			Address: inv.Debtor.Address,
			Zip:     inv.Debtor.Zip,
			City:    inv.Debtor.City,
			Country: inv.Debtor.Country,
			Email:   inv.Debtor.Email,
			Phone:   inv.Debtor.Phone,
		},
		Lines: lines,
		Data:  inv.Data,
	}
}
