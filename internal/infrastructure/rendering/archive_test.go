package rendering

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArchive(t *testing.T, enabled bool) *PdfArchive {
	archive, err := NewPdfArchive(&PdfArchiveConfig{
		Enabled:  enabled,
		BasePath: t.TempDir(),
	})
	require.NoError(t, err)
	return archive
}

func TestPdfArchive_Store(t *testing.T) {
	invoice := &invoicing.Invoice{ID: 1, InvoiceNumber: "INV-0001"}

	t.Run("writes file when enabled", func(t *testing.T) {
		archive := testArchive(t, true)

		stored, err := archive.Store(invoice, []byte("%PDF-1.7 fake"))
		require.NoError(t, err)
		assert.True(t, stored)

		data, err := archive.Load(archive.Filename(invoice))
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7 fake"), data)
	})

	t.Run("no-op when disabled", func(t *testing.T) {
		archive := testArchive(t, false)

		stored, err := archive.Store(invoice, []byte("%PDF-1.7 fake"))
		require.NoError(t, err)
		assert.False(t, stored)
		assert.False(t, archive.Has(archive.Filename(invoice)))
	})

	t.Run("overwrites on repeat store", func(t *testing.T) {
		archive := testArchive(t, true)

		_, err := archive.Store(invoice, []byte("first"))
		require.NoError(t, err)
		_, err = archive.Store(invoice, []byte("second render"))
		require.NoError(t, err)

		data, err := archive.Load(archive.Filename(invoice))
		require.NoError(t, err)
		assert.Equal(t, []byte("second render"), data)
	})

	t.Run("rejects empty data", func(t *testing.T) {
		archive := testArchive(t, true)
		_, err := archive.Store(invoice, nil)
		assert.Error(t, err)
	})
}

func TestPdfArchive_Filename(t *testing.T) {
	archive := testArchive(t, true)

	plain := &invoicing.Invoice{InvoiceNumber: "INV-0042"}
	assert.Equal(t, "invoice-INV-0042.pdf", archive.Filename(plain))

	// Hostile numbers cannot smuggle path segments into the archive
	hostile := &invoicing.Invoice{InvoiceNumber: "../etc/passwd"}
	assert.Equal(t, "invoice-..-etc-passwd.pdf", archive.Filename(hostile))
}

func TestPdfArchive_LoadAndHas(t *testing.T) {
	archive := testArchive(t, true)

	t.Run("missing file", func(t *testing.T) {
		_, err := archive.Load("invoice-INV-9999.pdf")
		assert.Error(t, err)
		assert.False(t, archive.Has("invoice-INV-9999.pdf"))
		assert.False(t, archive.Has(""))
	})

	t.Run("rejects escaping filenames", func(t *testing.T) {
		_, err := archive.Load("../outside.pdf")
		assert.Error(t, err)
		_, err = archive.Load("/etc/passwd")
		assert.Error(t, err)
		_, err = archive.Load("sub/dir.pdf")
		assert.Error(t, err)
	})
}

func TestPdfArchive_Delete(t *testing.T) {
	archive := testArchive(t, true)
	invoice := &invoicing.Invoice{ID: 3, InvoiceNumber: "INV-0003"}

	_, err := archive.Store(invoice, []byte("data"))
	require.NoError(t, err)

	fileName := archive.Filename(invoice)
	require.True(t, archive.Has(fileName))

	require.NoError(t, archive.Delete(fileName))
	assert.False(t, archive.Has(fileName))

	// Deleting again is fine
	assert.NoError(t, archive.Delete(fileName))
	assert.NoError(t, archive.Delete(""))
}

func TestNewPdfArchive_NormalizesBasePath(t *testing.T) {
	root := t.TempDir()
	messy := filepath.Join(root, "storage", "..", "storage", "invoices")

	archive, err := NewPdfArchive(&PdfArchiveConfig{Enabled: true, BasePath: messy})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "storage", "invoices"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, archive.Enabled())
}
