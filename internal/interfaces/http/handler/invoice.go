package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	app "github.com/jdearaujo/invoicemaker/internal/application/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// InvoiceHandler serves the invoice HTTP API
type InvoiceHandler struct {
	BaseHandler
	service *app.InvoiceService
	logger  *zap.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service *app.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceHandler{service: service, logger: logger}
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.GET("", h.List)
		invoices.POST("", h.Create)
		invoices.GET("/:id", h.Get)
		invoices.PUT("/:id", h.Update)
		invoices.DELETE("/:id", h.Delete)
		invoices.DELETE("", h.DeleteMany)
		invoices.POST("/:id/rerender", h.Rerender)
		invoices.POST("/:id/download-key", h.IssueDownloadKey)
		invoices.GET("/pdf/:number", h.DownloadPDF)
		invoices.GET("/html/:number", h.ViewHTML)
		invoices.GET("/groups", h.Groups)
		invoices.GET("/templates", h.Templates)
		invoices.GET("/by-ext-key/:key", h.ByExtKey)
	}
}

// List returns a filtered, ordered page of invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var req app.ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid listing parameters: "+err.Error())
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	resp, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, resp.Items, resp.Total, resp.Page, req.PageSize)
}

// Create creates an invoice, allocating its number and rendering its PDF
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req app.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid invoice payload: "+err.Error())
		return
	}

	resp, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Get returns a single invoice by ID
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	resp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Update modifies an invoice's mutable fields
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req app.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid invoice payload: "+err.Error())
		return
	}

	resp, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Delete removes one invoice
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// deleteManyRequest is the bulk deletion payload
type deleteManyRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// DeleteMany removes a batch of invoices
func (h *InvoiceHandler) DeleteMany(c *gin.Context) {
	var req deleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid deletion payload: "+err.Error())
		return
	}

	if err := h.service.DeleteMany(c.Request.Context(), req.IDs); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Rerender regenerates an invoice's PDF, overwriting the archived file
func (h *InvoiceHandler) Rerender(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	resp, err := h.service.Rerender(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// IssueDownloadKey issues a download key bound to the caller's session
func (h *InvoiceHandler) IssueDownloadKey(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	session := middleware.GetSession(c)
	if session == nil {
		h.InternalError(c, "No session available")
		return
	}

	resp, err := h.service.IssueDownloadKey(c.Request.Context(), id, session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// DownloadPDF serves an invoice PDF by number. The archived file is served
// when present; otherwise the document is rendered on the fly.
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	invoice, ok := h.authorizedInvoice(c)
	if !ok {
		return
	}

	data, err := h.service.FetchPDF(c.Request.Context(), invoice)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	disposition := "attachment"
	if c.Query("inline") == "1" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", disposition+`; filename="`+invoice.PdfFilename()+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// ViewHTML serves an invoice as standalone HTML
func (h *InvoiceHandler) ViewHTML(c *gin.Context) {
	invoice, ok := h.authorizedInvoice(c)
	if !ok {
		return
	}

	html, err := h.service.StandaloneHTML(invoice)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Groups lists the configured numbering groups
func (h *InvoiceHandler) Groups(c *gin.Context) {
	h.Success(c, h.service.Groups())
}

// Templates lists the configured invoice templates
func (h *InvoiceHandler) Templates(c *gin.Context) {
	h.Success(c, h.service.Templates())
}

// ByExtKey returns the invoices correlated to an external key
func (h *InvoiceHandler) ByExtKey(c *gin.Context) {
	items, err := h.service.ByExtKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// invoiceID parses the :id path parameter
func (h *InvoiceHandler) invoiceID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.BadRequest(c, "Invalid invoice ID")
		return 0, false
	}
	return uint(id), true
}

// authorizedInvoice resolves the :number path parameter and checks the
// download key against the caller's session: 404 for an unknown number,
// 400 for a missing or invalid key.
func (h *InvoiceHandler) authorizedInvoice(c *gin.Context) (*invoicing.Invoice, bool) {
	number := c.Param("number")
	invoice, err := h.service.InvoiceByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}

	session := middleware.GetSession(c)
	if !h.service.AuthorizeDownload(invoice, session, c.Query("key")) {
		h.logger.Warn("rejected invoice download",
			zap.String("invoice_number", number),
			zap.String("client_ip", c.ClientIP()))
		h.BadRequest(c, "Invalid download key")
		return nil, false
	}

	return invoice, true
}
