package invoicing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
)

// InvoiceGroup is a named numbering scope. Invoice numbers are sequential
// within a group; the counter occupies the trailing Digits characters of
// every number the group produces.
type InvoiceGroup struct {
	Name          string // Unique group name
	NumberPattern string // Pattern with {counter} and optional data placeholders
	Digits        int    // Fixed width of the zero-padded counter segment
}

// Validate checks that the group definition is usable
func (g InvoiceGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Invoice group name is required")
	}
	if g.Digits < 1 {
		return shared.NewDomainError("INVALID_INPUT", "Invoice group digit width must be at least 1")
	}
	// ParseCounter reads the trailing Digits characters of every number the
	// group produced, so the counter must be the final pattern segment.
	if !strings.HasSuffix(g.NumberPattern, "{counter}") {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Number pattern of group %s must end with the {counter} placeholder", g.Name))
	}
	return nil
}

// FormatNumber substitutes the zero-padded counter and any data placeholders
// into the group's number pattern. The counter must fit the configured digit
// width: the trailing-substring parse that derives the next counter depends
// on every number ending in exactly Digits counter characters, so a wider
// counter is rejected rather than silently widened.
func (g InvoiceGroup) FormatNumber(counter int, data map[string]string) (string, error) {
	if counter < 1 {
		return "", shared.NewDomainError("INVALID_INPUT", "Invoice counter must be positive")
	}

	padded := fmt.Sprintf("%0*d", g.Digits, counter)
	if len(padded) > g.Digits {
		return "", shared.NewDomainError("COUNTER_OVERFLOW",
			fmt.Sprintf("Counter %d exceeds the %d-digit width of group %s", counter, g.Digits, g.Name))
	}

	number := g.NumberPattern
	for key, value := range data {
		number = strings.ReplaceAll(number, "{"+key+"}", value)
	}
	if strings.Contains(number, "{year}") {
		number = strings.ReplaceAll(number, "{year}", strconv.Itoa(time.Now().Year()))
	}

	return strings.ReplaceAll(number, "{counter}", padded), nil
}

// ParseCounter extracts the counter from a previously generated number by
// taking its trailing Digits characters.
func (g InvoiceGroup) ParseCounter(invoiceNumber string) (int, error) {
	if len(invoiceNumber) < g.Digits {
		return 0, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Invoice number %q is shorter than the %d-digit counter of group %s", invoiceNumber, g.Digits, g.Name))
	}
	counter, err := strconv.Atoi(invoiceNumber[len(invoiceNumber)-g.Digits:])
	if err != nil {
		return 0, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Invoice number %q does not end in a %d-digit counter", invoiceNumber, g.Digits))
	}
	return counter, nil
}
