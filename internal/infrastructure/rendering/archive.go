package rendering

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"go.uber.org/zap"
)

// PdfArchiveConfig contains configuration for the on-disk PDF archive
type PdfArchiveConfig struct {
	// Enabled toggles archival; when false, Store is a no-op
	Enabled bool
	// BasePath is the root directory for archived PDFs
	BasePath string
	// Logger for operations
	Logger *zap.Logger
}

// PdfArchive stores rendered invoice PDFs on the local file system, one
// file per invoice named after the invoice number. Re-rendering an invoice
// overwrites its file in place.
type PdfArchive struct {
	enabled  bool
	basePath string
	logger   *zap.Logger
}

// NewPdfArchive creates a PDF archive rooted at the configured path.
// The path is normalized before use so config values like "storage/../pdfs"
// collapse to a single canonical root.
func NewPdfArchive(config *PdfArchiveConfig) (*PdfArchive, error) {
	if config == nil {
		config = &PdfArchiveConfig{}
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = "storage/invoices"
	}
	basePath = filepath.Clean(filepath.FromSlash(basePath))

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.Enabled {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, NewRenderError(ErrCodeStorageFailed,
				fmt.Sprintf("failed to create archive directory: %s", basePath), err)
		}
	}

	return &PdfArchive{
		enabled:  config.Enabled,
		basePath: basePath,
		logger:   logger,
	}, nil
}

// Enabled reports whether archival is switched on
func (a *PdfArchive) Enabled() bool {
	return a.enabled
}

// Filename returns the archive filename for an invoice. It depends only on
// the invoice number, so repeated renders converge on the same file.
func (a *PdfArchive) Filename(invoice *invoicing.Invoice) string {
	return invoice.PdfFilename()
}

// Store writes an invoice PDF into the archive and reports whether a file
// was written. With archival disabled nothing is written and (false, nil)
// is returned; callers then leave the invoice's pdf_file unset.
func (a *PdfArchive) Store(invoice *invoicing.Invoice, pdfData []byte) (bool, error) {
	if !a.enabled {
		return false, nil
	}
	if len(pdfData) == 0 {
		return false, NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}

	if err := os.MkdirAll(a.basePath, 0755); err != nil {
		return false, NewRenderError(ErrCodeStorageFailed, "failed to create archive directory", err)
	}

	fileName := a.Filename(invoice)
	filePath := filepath.Join(a.basePath, fileName)

	if err := os.WriteFile(filePath, pdfData, 0644); err != nil {
		return false, NewRenderError(ErrCodeStorageFailed, "failed to write PDF file", err)
	}

	a.logger.Info("invoice PDF archived",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("path", filePath),
		zap.Int("size", len(pdfData)))

	return true, nil
}

// Load reads a previously archived PDF by its stored filename
func (a *PdfArchive) Load(fileName string) ([]byte, error) {
	filePath, err := a.resolve(fileName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewRenderError(ErrCodeStorageFailed, "archived PDF not found: "+fileName, err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to read PDF file", err)
	}
	return data, nil
}

// Has reports whether a stored filename exists in the archive
func (a *PdfArchive) Has(fileName string) bool {
	if fileName == "" {
		return false
	}
	filePath, err := a.resolve(fileName)
	if err != nil {
		return false
	}
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

// Delete removes an archived PDF; a missing file is not an error
func (a *PdfArchive) Delete(fileName string) error {
	if fileName == "" {
		return nil
	}
	filePath, err := a.resolve(fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return NewRenderError(ErrCodeStorageFailed, "failed to delete PDF file", err)
	}
	return nil
}

// resolve joins a stored filename to the archive root, rejecting any name
// that would escape it
func (a *PdfArchive) resolve(fileName string) (string, error) {
	clean := filepath.Clean(fileName)
	if filepath.IsAbs(clean) || strings.Contains(fileName, "..") || strings.ContainsAny(fileName, "/\\") {
		a.logger.Warn("blocked archive path escape", zap.String("file", fileName))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid archive filename", nil)
	}
	return filepath.Join(a.basePath, clean), nil
}
