package invoicing

import (
	"maps"
	"strings"

	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
)

// Template is a named HTML template plus its default parameter set.
// Templates are immutable after loading; MergeParams returns a derived view.
type Template struct {
	Name   string         // Unique template name
	Source string         // HTML template body
	Params map[string]any // Default parameters available during rendering
}

// Validate checks that the template definition is usable
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Template name is required")
	}
	if strings.TrimSpace(t.Source) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Template source is required")
	}
	return nil
}

// MergeParams returns a copy of the template with extra parameters layered
// over the defaults. Extra wins on key collision; the receiver is unchanged.
func (t Template) MergeParams(extra map[string]any) Template {
	merged := make(map[string]any, len(t.Params)+len(extra))
	maps.Copy(merged, t.Params)
	maps.Copy(merged, extra)
	return Template{
		Name:   t.Name,
		Source: t.Source,
		Params: merged,
	}
}
