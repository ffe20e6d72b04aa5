package invoicing_test

import (
	"context"
	"testing"

	app "github.com/jdearaujo/invoicemaker/internal/application/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/config"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/registry"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/rendering"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, pdf rendering.PDFRenderer, templates ...config.TemplateDef) *app.DocumentRenderer {
	if len(templates) == 0 {
		templates = []config.TemplateDef{{
			Name:   "default",
			Source: `<p>{{ .Invoice.InvoiceNumber }} owes {{ formatMoney .Total }} ({{ .Params.color }})</p>`,
			Params: map[string]any{"color": "blue"},
		}}
	}
	reg, err := registry.New(&config.InvoicemakerConfig{
		InvoiceGroups: []config.GroupConfig{{Name: "default", NumberPattern: "INV-{counter}", Digits: 4}},
		Templates:     templates,
	})
	require.NoError(t, err)
	return app.NewDocumentRenderer(reg, rendering.NewTemplateEngine(), pdf, "http://billing.test/assets", nil)
}

func TestDocumentRenderer_RenderHTML(t *testing.T) {
	renderer := newTestRenderer(t, &fakePDFRenderer{})
	invoice := &invoicing.Invoice{
		TemplateName:  "default",
		InvoiceNumber: "INV-0042",
		Amount:        decimal.NewFromFloat(1250),
	}

	t.Run("binds invoice and template params", func(t *testing.T) {
		html, err := renderer.RenderHTML(invoice, nil)
		require.NoError(t, err)
		assert.Equal(t, "<p>INV-0042 owes 1,250.00 (blue)</p>", html)
	})

	t.Run("extra params override defaults", func(t *testing.T) {
		html, err := renderer.RenderHTML(invoice, map[string]any{"color": "red"})
		require.NoError(t, err)
		assert.Contains(t, html, "(red)")

		// Defaults are untouched for the next render
		html, err = renderer.RenderHTML(invoice, nil)
		require.NoError(t, err)
		assert.Contains(t, html, "(blue)")
	})

	t.Run("unknown template is a validation error", func(t *testing.T) {
		missing := &invoicing.Invoice{TemplateName: "missing"}
		_, err := renderer.RenderHTML(missing, nil)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})
}

func TestDocumentRenderer_RenderPDF(t *testing.T) {
	t.Run("renders HTML then converts", func(t *testing.T) {
		pdf := &fakePDFRenderer{data: []byte("%PDF")}
		renderer := newTestRenderer(t, pdf)

		data, err := renderer.RenderPDF(context.Background(), &invoicing.Invoice{
			TemplateName:  "default",
			InvoiceNumber: "INV-0001",
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF"), data)
		assert.Equal(t, 1, pdf.renders)
	})

	t.Run("engine failure surfaces before conversion", func(t *testing.T) {
		pdf := &fakePDFRenderer{data: []byte("%PDF")}
		renderer := newTestRenderer(t, pdf, config.TemplateDef{
			Name:   "default",
			Source: `{{ .Missing.Deep }}`,
		})

		_, err := renderer.RenderPDF(context.Background(), &invoicing.Invoice{
			TemplateName:  "default",
			InvoiceNumber: "INV-0001",
		})
		require.Error(t, err)
		assert.Zero(t, pdf.renders)
	})
}

func TestDocumentRenderer_RenderStandaloneHTML(t *testing.T) {
	renderer := newTestRenderer(t, &fakePDFRenderer{}, config.TemplateDef{
		Name: "default",
		Source: `<link href="css/invoice.css"><img src="/logo.png">` +
			`<a href="https://example.com/x">x</a><a href="#top">top</a>` +
			`<img src="data:image/png;base64,AA==">`,
	})

	html, err := renderer.RenderStandaloneHTML(&invoicing.Invoice{
		TemplateName:  "default",
		InvoiceNumber: "INV-0001",
	})
	require.NoError(t, err)

	assert.Contains(t, html, `href="http://billing.test/assets/css/invoice.css"`)
	assert.Contains(t, html, `src="http://billing.test/assets/logo.png"`)
	assert.Contains(t, html, `href="https://example.com/x"`)
	assert.Contains(t, html, `href="#top"`)
	assert.Contains(t, html, `src="data:image/png;base64,AA=="`)
}
