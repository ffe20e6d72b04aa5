package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/shared"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/registry"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/rendering"
	"go.uber.org/zap"
)

// maxNumberAttempts bounds the duplicate-number retry loop. Each attempt
// re-reads the group's latest number, so a retry only collides again when
// another writer won the race a second time.
const maxNumberAttempts = 5

// InvoiceService orchestrates the invoice lifecycle: numbered creation,
// document rendering, archival, downloads and deletion.
type InvoiceService struct {
	repo       invoicing.InvoiceRepository
	registry   *registry.Registry
	numbers    *NumberGenerator
	renderer   *DocumentRenderer
	archive    *rendering.PdfArchive
	authorizer *DownloadAuthorizer
	logger     *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	repo invoicing.InvoiceRepository,
	reg *registry.Registry,
	numbers *NumberGenerator,
	renderer *DocumentRenderer,
	archive *rendering.PdfArchive,
	authorizer *DownloadAuthorizer,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		repo:       repo,
		registry:   reg,
		numbers:    numbers,
		renderer:   renderer,
		archive:    archive,
		authorizer: authorizer,
		logger:     logger,
	}
}

// Create allocates an invoice number, persists the invoice and renders its
// PDF. Number allocation races are resolved by the unique constraint: on a
// duplicate the number is recomputed from fresh history, up to
// maxNumberAttempts times. A render failure after persist is returned as an
// error; the persisted row simply stays without a pdf_file.
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	group, ok := s.registry.Group(req.InvoiceGroup)
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Unknown invoice group %q", req.InvoiceGroup))
	}
	if _, ok := s.registry.Template(req.Template); !ok {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Unknown invoice template %q", req.Template))
	}

	invoice := req.toDomainInvoice()
	invoice.Created = time.Now()

	if err := s.createWithNumber(ctx, invoice, group); err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.Uint("id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("invoice_group", invoice.InvoiceGroup))

	if err := s.renderAndArchive(ctx, invoice); err != nil {
		return nil, err
	}

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// createWithNumber runs the generate-and-insert loop
func (s *InvoiceService) createWithNumber(ctx context.Context, invoice *invoicing.Invoice, group invoicing.InvoiceGroup) error {
	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx, group, invoice.Data)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		err = s.repo.Create(ctx, invoice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrDuplicateNumber) {
			s.logger.Error("invoice insert failed", zap.Error(err))
			return shared.ErrPersistence
		}

		lastErr = err
		s.logger.Debug("invoice number collision, retrying",
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt))
	}

	// Exhausting the retry budget is a server-side failure, not a conflict
	// the client can resolve.
	s.logger.Error("invoice number allocation exhausted",
		zap.String("invoice_group", group.Name),
		zap.Int("attempts", maxNumberAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("allocating invoice number for group %s after %d attempts: %w",
		group.Name, maxNumberAttempts, shared.ErrPersistence)
}

// renderAndArchive regenerates the invoice's PDF, archives it when archival
// is enabled and records the archive filename on the invoice. The filename
// depends only on the invoice number, so repeated calls overwrite the same
// file: the operation is idempotent.
func (s *InvoiceService) renderAndArchive(ctx context.Context, invoice *invoicing.Invoice) error {
	pdfData, err := s.renderer.RenderPDF(ctx, invoice)
	if err != nil {
		return err
	}

	stored, err := s.archive.Store(invoice, pdfData)
	if err != nil {
		return err
	}
	if !stored {
		// Archival was switched off since the file was recorded; the
		// reference would point at a stale render.
		if invoice.PdfFile != "" && !s.archive.Enabled() {
			invoice.PdfFile = ""
			if err := s.repo.Update(ctx, invoice); err != nil {
				return fmt.Errorf("clearing archive filename on invoice %d: %w", invoice.ID, err)
			}
		}
		return nil
	}

	fileName := s.archive.Filename(invoice)
	if invoice.PdfFile != fileName {
		invoice.PdfFile = fileName
		if err := s.repo.Update(ctx, invoice); err != nil {
			return fmt.Errorf("recording archive filename on invoice %d: %w", invoice.ID, err)
		}
	}
	return nil
}

// Rerender regenerates and re-archives an invoice's PDF, overwriting any
// previously archived file.
func (s *InvoiceService) Rerender(ctx context.Context, id uint) (*InvoiceResponse, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.renderAndArchive(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("invoice rerendered",
		zap.Uint("id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber))

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// Update applies the mutable fields of an update request to an invoice.
// The invoice number, group and creation time are never changed.
func (s *InvoiceService) Update(ctx context.Context, id uint, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ExtKey != nil {
		invoice.ExtKey = *req.ExtKey
	}
	if req.Debtor != nil {
		invoice.Debtor = toDomainDebtor(*req.Debtor)
	}
	if req.Lines != nil {
		invoice.Lines = toDomainLines(*req.Lines)
		invoice.Amount = invoice.Lines.Sum()
	}
	if req.Amount != nil {
		invoice.Amount = *req.Amount
	}
	if req.Data != nil {
		invoice.Data = req.Data
	}

	if err := s.repo.Update(ctx, invoice); err != nil {
		return nil, err
	}

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// Get returns a single invoice by ID
func (s *InvoiceService) Get(ctx context.Context, id uint) (*InvoiceResponse, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// InvoiceByNumber returns the domain invoice behind a number. Download
// handlers need the domain object to drive authorization and rendering.
func (s *InvoiceService) InvoiceByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	return s.repo.FindByNumber(ctx, number)
}

// ByExtKey returns the invoices correlated to an external key
func (s *InvoiceService) ByExtKey(ctx context.Context, extKey string) ([]InvoiceResponse, error) {
	invoices, err := s.repo.FindByExtKey(ctx, extKey)
	if err != nil {
		return nil, err
	}
	items := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		items = append(items, ToInvoiceResponse(&invoices[i]))
	}
	return items, nil
}

// List returns a filtered, ordered page of invoices plus the total count
func (s *InvoiceService) List(ctx context.Context, req ListInvoicesRequest) (*ListInvoicesResponse, error) {
	filter := invoicing.ListFilter{
		Template:     req.Template,
		InvoiceGroup: req.InvoiceGroup,
		OrderBy:      req.OrderBy,
		OrderDir:     req.OrderDir,
		Page:         req.Page,
		PageSize:     req.PageSize,
	}

	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}

	items := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		items = append(items, ToInvoiceResponse(&invoices[i]))
	}

	return &ListInvoicesResponse{
		Items: items,
		Total: total,
		Page:  page,
	}, nil
}

// Delete removes an invoice and its archived PDF
func (s *InvoiceService) Delete(ctx context.Context, id uint) error {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if invoice.PdfFile != "" {
		if err := s.archive.Delete(invoice.PdfFile); err != nil {
			s.logger.Warn("failed to delete archived PDF",
				zap.Uint("id", id),
				zap.String("pdf_file", invoice.PdfFile),
				zap.Error(err))
		}
	}
	return nil
}

// DeleteMany removes a batch of invoices
func (s *InvoiceService) DeleteMany(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// FetchPDF returns the invoice's PDF document: the archived file when the
// invoice references one that still exists, otherwise a fresh render.
// Fetching never writes to the archive.
func (s *InvoiceService) FetchPDF(ctx context.Context, invoice *invoicing.Invoice) ([]byte, error) {
	if invoice.PdfFile != "" && s.archive.Has(invoice.PdfFile) {
		return s.archive.Load(invoice.PdfFile)
	}
	return s.renderer.RenderPDF(ctx, invoice)
}

// StandaloneHTML returns the invoice's HTML document with asset references
// made absolute
func (s *InvoiceService) StandaloneHTML(invoice *invoicing.Invoice) (string, error) {
	return s.renderer.RenderStandaloneHTML(invoice)
}

// IssueDownloadKey issues a session-bound download key for an invoice
func (s *InvoiceService) IssueDownloadKey(ctx context.Context, id uint, session *SessionContext) (*DownloadKeyResponse, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DownloadKeyResponse{
		InvoiceID:   invoice.ID,
		DownloadKey: s.authorizer.Issue(invoice, session),
	}, nil
}

// AuthorizeDownload verifies a download key presented for an invoice
func (s *InvoiceService) AuthorizeDownload(invoice *invoicing.Invoice, session *SessionContext, key string) bool {
	return s.authorizer.Verify(invoice, session, key)
}

// Groups lists the configured numbering groups
func (s *InvoiceService) Groups() []GroupResponse {
	groups := s.registry.Groups()
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupResponse{
			Name:          g.Name,
			NumberPattern: g.NumberPattern,
			Digits:        g.Digits,
		})
	}
	return out
}

// Templates lists the configured invoice templates
func (s *InvoiceService) Templates() []TemplateResponse {
	templates := s.registry.Templates()
	out := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, TemplateResponse{
			Name:   t.Name,
			Params: t.Params,
		})
	}
	return out
}
