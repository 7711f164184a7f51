package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	obstracing "github.com/smallbiznis/tka-invoice/internal/observability/tracing"
)

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.InvoiceIDKey, resp.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req invoicedomain.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = invoiceIDParam(c)

	resp, err := s.invoiceSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), invoiceIDParam(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), invoiceIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query invoicedomain.ListInvoiceRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Invoices, resp.PageInfo)
}

func (s *Server) AddInvoiceLine(c *gin.Context) {
	var req invoicedomain.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = invoiceIDParam(c)

	s.respondInvoice(c, http.StatusCreated)(s.invoiceSvc.AddLine(c.Request.Context(), req))
}

func (s *Server) ReplaceInvoiceLines(c *gin.Context) {
	var req invoicedomain.ReplaceLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = invoiceIDParam(c)

	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.ReplaceLines(c.Request.Context(), req))
}

func (s *Server) DeleteInvoiceLine(c *gin.Context) {
	lineID := strings.TrimSpace(c.Param("lineId"))
	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.DeleteLine(c.Request.Context(), invoiceIDParam(c), lineID))
}

// ImportInvoiceLines reads a CSV or XLSX upload from the "file" field. The
// optional "mode" field is append (default) or replace.
func (s *Server) ImportInvoiceLines(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		AbortWithError(c, newValidationError("file", "unreadable_file", "file could not be read"))
		return
	}
	defer file.Close()

	mode := invoicedomain.ImportMode(strings.ToLower(strings.TrimSpace(c.PostForm("mode"))))
	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.ImportLines(c.Request.Context(), invoicedomain.ImportLinesRequest{
		InvoiceID: invoiceIDParam(c),
		Filename:  header.Filename,
		Reader:    file,
		Mode:      mode,
	}))
}

func (s *Server) RecalculateInvoice(c *gin.Context) {
	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.Recalculate(c.Request.Context(), invoiceIDParam(c)))
}

func (s *Server) IssueInvoice(c *gin.Context) {
	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.Issue(c.Request.Context(), invoiceIDParam(c)))
}

func (s *Server) PayInvoice(c *gin.Context) {
	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.MarkPaid(c.Request.Context(), invoiceIDParam(c)))
}

func (s *Server) CancelInvoice(c *gin.Context) {
	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.respondInvoice(c, http.StatusOK)(s.invoiceSvc.Cancel(c.Request.Context(), invoiceIDParam(c), req.Reason))
}

// RenderInvoicePDF streams the stored invoice as a PDF attachment, or inline
// when ?inline=true.
func (s *Server) RenderInvoicePDF(c *gin.Context) {
	rendered, err := s.invoiceSvc.RenderPDF(c.Request.Context(), invoiceIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	disposition := "attachment"
	if strings.EqualFold(strings.TrimSpace(c.Query("inline")), "true") {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, rendered.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", rendered.Content)
}

func (s *Server) respondInvoice(c *gin.Context, status int) func(invoicedomain.Invoice, error) {
	return func(item invoicedomain.Invoice, err error) {
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(status, gin.H{"data": item})
	}
}

func invoiceIDParam(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(obstracing.InvoiceIDKey, id)
	return id
}
