package invoicing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/registry"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/rendering"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TemplateData is the root object invoice templates execute against
type TemplateData struct {
	Invoice *invoicing.Invoice
	Params  map[string]any
	Total   decimal.Decimal
}

// DocumentRenderer produces invoice documents: raw HTML for PDF conversion,
// PDFs via the headless browser, and standalone HTML for direct viewing.
// It has no storage side effects.
type DocumentRenderer struct {
	registry *registry.Registry
	engine   *rendering.TemplateEngine
	pdf      rendering.PDFRenderer
	baseURL  string
	logger   *zap.Logger
}

// NewDocumentRenderer creates a DocumentRenderer. baseURL is used to make
// relative asset references absolute in standalone HTML output.
func NewDocumentRenderer(
	reg *registry.Registry,
	engine *rendering.TemplateEngine,
	pdf rendering.PDFRenderer,
	baseURL string,
	logger *zap.Logger,
) *DocumentRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentRenderer{
		registry: reg,
		engine:   engine,
		pdf:      pdf,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// RenderHTML executes the invoice's template with extra parameters layered
// over the template defaults (extra wins on collision).
func (r *DocumentRenderer) RenderHTML(invoice *invoicing.Invoice, extra map[string]any) (string, error) {
	tmpl, ok := r.registry.Template(invoice.TemplateName)
	if !ok {
		return "", shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Unknown invoice template %q", invoice.TemplateName))
	}

	merged := tmpl.MergeParams(extra)
	data := TemplateData{
		Invoice: invoice,
		Params:  merged.Params,
		Total:   invoice.Amount,
	}

	return r.engine.Render(merged.Name, merged.Source, data)
}

// RenderPDF renders the invoice's HTML and converts it to an A4 PDF
func (r *DocumentRenderer) RenderPDF(ctx context.Context, invoice *invoicing.Invoice) ([]byte, error) {
	html, err := r.RenderHTML(invoice, nil)
	if err != nil {
		return nil, err
	}

	result, err := r.pdf.Render(ctx, &rendering.RenderRequest{
		HTML:  html,
		Title: invoice.InvoiceNumber,
	})
	if err != nil {
		r.logger.Error("invoice PDF rendering failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err))
		return nil, err
	}

	return result.PDFData, nil
}

// RenderStandaloneHTML renders the invoice's HTML with relative asset
// references rewritten to absolute URLs, so it displays correctly outside
// the application's origin.
func (r *DocumentRenderer) RenderStandaloneHTML(invoice *invoicing.Invoice) (string, error) {
	html, err := r.RenderHTML(invoice, nil)
	if err != nil {
		return "", err
	}
	return rewriteRelativeURLs(html, r.baseURL), nil
}

var assetAttrPattern = regexp.MustCompile(`(?i)\b(src|href)=["']([^"']+)["']`)

// rewriteRelativeURLs makes relative src/href references absolute against
// baseURL. Already-absolute references, fragments and data URLs pass
// through untouched.
func rewriteRelativeURLs(html, baseURL string) string {
	if baseURL == "" {
		return html
	}
	base := strings.TrimRight(baseURL, "/")

	return assetAttrPattern.ReplaceAllStringFunc(html, func(match string) string {
		parts := assetAttrPattern.FindStringSubmatch(match)
		attr, ref := parts[1], parts[2]
		if isAbsoluteRef(ref) {
			return match
		}
		return fmt.Sprintf(`%s="%s/%s"`, attr, base, strings.TrimLeft(ref, "/"))
	})
}

func isAbsoluteRef(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(ref, "//") ||
		strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "mailto:")
}
