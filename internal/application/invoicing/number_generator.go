package invoicing

import (
	"context"
	"fmt"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
)

// NumberGenerator derives the next invoice number for a group from the
// group's persisted history. It takes no lock: two concurrent generations
// can produce the same candidate, and the unique constraint on the invoice
// number decides the winner. Callers retry on shared.ErrDuplicateNumber.
type NumberGenerator struct {
	repo invoicing.InvoiceRepository
}

// NewNumberGenerator creates a NumberGenerator backed by the invoice repository
func NewNumberGenerator(repo invoicing.InvoiceRepository) *NumberGenerator {
	return &NumberGenerator{repo: repo}
}

// Next produces the next number for the group: the counter of the group's
// highest existing number plus one, or 1 for an empty group, substituted
// into the group's pattern along with any data placeholders.
func (g *NumberGenerator) Next(ctx context.Context, group invoicing.InvoiceGroup, data map[string]string) (string, error) {
	last, err := g.repo.LastNumberForGroup(ctx, group.Name)
	if err != nil {
		return "", fmt.Errorf("looking up last number for group %s: %w", group.Name, err)
	}

	counter := 1
	if last != "" {
		parsed, err := group.ParseCounter(last)
		if err != nil {
			return "", err
		}
		counter = parsed + 1
	}

	return group.FormatNumber(counter, data)
}
