package invoicing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Debtor holds the billing contact data embedded in an invoice.
type Debtor struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Address string `json:"address,omitempty"`
	Zip     string `json:"zip,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// InvoiceLine is a single charge line on an invoice.
type InvoiceLine struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Total returns quantity times unit price.
func (l InvoiceLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

// InvoiceLines is an ordered collection of charge lines.
type InvoiceLines []InvoiceLine

// Sum returns the total of all lines.
func (ls InvoiceLines) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Total())
	}
	return total
}

// Invoice is a numbered financial document. The invoice number is assigned
// exactly once at creation and is unique across all groups; PdfFile is set
// after the first successful render-to-file and points into the PDF archive.
type Invoice struct {
	ID            uint
	TemplateName  string
	InvoiceGroup  string
	InvoiceNumber string
	Created       time.Time
	Amount        decimal.Decimal
	ExtKey        string
	PdfFile       string
	Debtor        Debtor
	Lines         InvoiceLines
	Data          map[string]string
}

// PdfFilename derives the archive filename for this invoice. It is a pure
// function of the invoice number, so repeated renders converge on one file.
func (i *Invoice) PdfFilename() string {
	return "invoice-" + sanitizeFilename(i.InvoiceNumber) + ".pdf"
}

// sanitizeFilename replaces path-hostile characters in an invoice number
func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}
