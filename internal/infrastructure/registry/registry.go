// Package registry exposes the invoice groups and templates declared in
// configuration as an immutable lookup structure.
package registry

import (
	"fmt"
	"sort"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/config"
)

// Registry holds the configured invoice groups and templates. It is built
// once at startup and never mutated afterwards, so lookups are safe from
// any goroutine.
type Registry struct {
	groups    map[string]invoicing.InvoiceGroup
	templates map[string]invoicing.Template
}

// New builds a Registry from configuration, validating every entry.
func New(cfg *config.InvoicemakerConfig) (*Registry, error) {
	r := &Registry{
		groups:    make(map[string]invoicing.InvoiceGroup, len(cfg.InvoiceGroups)),
		templates: make(map[string]invoicing.Template, len(cfg.Templates)),
	}

	for _, gc := range cfg.InvoiceGroups {
		group := invoicing.InvoiceGroup{
			Name:          gc.Name,
			NumberPattern: gc.NumberPattern,
			Digits:        gc.Digits,
		}
		if err := group.Validate(); err != nil {
			return nil, fmt.Errorf("invoice group %q: %w", gc.Name, err)
		}
		r.groups[group.Name] = group
	}

	for _, tc := range cfg.Templates {
		tmpl := invoicing.Template{
			Name:   tc.Name,
			Source: tc.Source,
			Params: tc.Params,
		}
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", tc.Name, err)
		}
		r.templates[tmpl.Name] = tmpl
	}

	return r, nil
}

// Group looks up an invoice group by name.
func (r *Registry) Group(name string) (invoicing.InvoiceGroup, bool) {
	g, ok := r.groups[name]
	return g, ok
}

// Template looks up a template by name.
func (r *Registry) Template(name string) (invoicing.Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Groups returns all configured groups sorted by name.
func (r *Registry) Groups() []invoicing.InvoiceGroup {
	groups := make([]invoicing.InvoiceGroup, 0, len(r.groups))
	for _, g := range r.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// Templates returns all configured templates sorted by name.
func (r *Registry) Templates() []invoicing.Template {
	templates := make([]invoicing.Template, 0, len(r.templates))
	for _, t := range r.templates {
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates
}
