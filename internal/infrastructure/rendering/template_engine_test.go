package rendering

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEngine_Render(t *testing.T) {
	engine := NewTemplateEngine()

	t.Run("binds data with formatting helpers", func(t *testing.T) {
		content := `<p>{{ .Number }}: {{ formatMoney .Amount }} due {{ formatDate .Due }}</p>`
		data := map[string]interface{}{
			"Number": "INV-0042",
			"Amount": decimal.NewFromFloat(1234.5),
			"Due":    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}

		html, err := engine.Render("invoice", content, data)
		require.NoError(t, err)
		assert.Equal(t, "<p>INV-0042: 1,234.50 due 2026-04-01</p>", html)
	})

	t.Run("empty content fails", func(t *testing.T) {
		_, err := engine.Render("invoice", "", nil)
		require.Error(t, err)
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
	})

	t.Run("parse failure reports invalid HTML", func(t *testing.T) {
		_, err := engine.Render("invoice", "{{ .Broken", nil)
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
	})

	t.Run("execution failure reports render failed", func(t *testing.T) {
		// Struct field lookups fail at execution time, unlike map keys,
		// which chain to no-value.
		_, err := engine.Render("invoice", `{{ .Missing }}`, struct{ Number string }{"INV-0042"})
		require.Error(t, err)
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeRenderFailed, renderErr.Code)
	})

	t.Run("escapes untrusted values", func(t *testing.T) {
		html, err := engine.Render("invoice", `{{ .V }}`, map[string]interface{}{"V": "<script>"})
		require.NoError(t, err)
		assert.Equal(t, "&lt;script&gt;", html)
	})

	t.Run("safeHTML passes trusted markup through", func(t *testing.T) {
		html, err := engine.Render("invoice", `{{ safeHTML .V }}`, map[string]interface{}{"V": "<b>x</b>"})
		require.NoError(t, err)
		assert.Equal(t, "<b>x</b>", html)
	})
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"small amount", decimal.NewFromFloat(12.5), "12.50"},
		{"thousands grouped", decimal.NewFromFloat(1234567.89), "1,234,567.89"},
		{"negative", decimal.NewFromFloat(-1200), "-1,200.00"},
		{"zero", decimal.Zero, "0.00"},
		{"from string", "999.9", "999.90"},
		{"from int", 1000, "1,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(tt.input))
		})
	}
}

func TestTemplateHelpers(t *testing.T) {
	assert.Equal(t, "21%", formatPercent(decimal.NewFromFloat(0.21), 0))
	assert.Equal(t, "3.142", formatDecimal(decimal.NewFromFloat(3.14159), 3))
	assert.Equal(t, "Acme Billing", titleCase("acme billing"))
	assert.Equal(t, "", formatDate(nil))
	assert.Equal(t, "2026-04-01", formatDate("2026-04-01"))
	assert.Equal(t, "fallback", defaultFunc("", "fallback"))
	assert.Equal(t, "kept", defaultFunc("kept", "fallback"))
	assert.True(t, divFunc(1, 0).IsZero())
	assert.True(t, addFunc(1, "2.5").Equal(decimal.NewFromFloat(3.5)))
}
