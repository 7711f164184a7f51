package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/authorization"
	bankaccountdomain "github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/invoice/importer"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	"github.com/smallbiznis/tka-invoice/internal/observability"
	workerdomain "github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompanyService struct {
	companydomain.Service
	created companydomain.CreateCompanyRequest
	err     error
}

func (f *fakeCompanyService) Create(_ context.Context, req companydomain.CreateCompanyRequest) (companydomain.Company, error) {
	f.created = req
	if f.err != nil {
		return companydomain.Company{}, f.err
	}
	return companydomain.Company{ID: snowflake.ID(10), Name: req.Name}, nil
}

func (f *fakeCompanyService) List(_ context.Context, req companydomain.ListCompanyRequest) (companydomain.ListCompanyResponse, error) {
	f.created = companydomain.CreateCompanyRequest{Name: req.Search}
	return companydomain.ListCompanyResponse{
		PageInfo:  pagination.PageInfo{HasMore: true, NextPageToken: "next"},
		Companies: []companydomain.Company{{ID: snowflake.ID(10), Name: "PT Maju Jaya"}},
	}, nil
}

func (f *fakeCompanyService) Delete(_ context.Context, _ string) error {
	return f.err
}

type fakeInvoiceService struct {
	invoicedomain.Service
	calls    []string
	imported invoicedomain.ImportLinesRequest
	body     []byte
	err      error
}

func (f *fakeInvoiceService) invoice(call string) (invoicedomain.Invoice, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return invoicedomain.Invoice{}, f.err
	}
	return invoicedomain.Invoice{
		ID:            snowflake.ID(42),
		Number:        "001/INV-TKA/III/2025",
		Status:        invoicedomain.InvoiceStatusDraft,
		VATPercentage: decimal.NewFromInt(11),
	}, nil
}

func (f *fakeInvoiceService) GetByID(_ context.Context, _ string) (invoicedomain.Invoice, error) {
	return f.invoice("get")
}

func (f *fakeInvoiceService) Create(_ context.Context, _ invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	return f.invoice("create")
}

func (f *fakeInvoiceService) Issue(_ context.Context, _ string) (invoicedomain.Invoice, error) {
	return f.invoice("issue")
}

func (f *fakeInvoiceService) Cancel(_ context.Context, _ string, reason string) (invoicedomain.Invoice, error) {
	return f.invoice("cancel:" + reason)
}

func (f *fakeInvoiceService) ImportLines(_ context.Context, req invoicedomain.ImportLinesRequest) (invoicedomain.Invoice, error) {
	f.imported = req
	if req.Reader != nil {
		f.body, _ = io.ReadAll(req.Reader)
	}
	return f.invoice("import")
}

func (f *fakeInvoiceService) RenderPDF(_ context.Context, _ string) (invoicedomain.RenderedPDF, error) {
	f.calls = append(f.calls, "pdf")
	if f.err != nil {
		return invoicedomain.RenderedPDF{}, f.err
	}
	return invoicedomain.RenderedPDF{Filename: "001-inv-tka-iii-2025-pt-maju-jaya.pdf", Content: []byte("%PDF-1.3")}, nil
}

type testServer struct {
	engine   *gin.Engine
	company  *fakeCompanyService
	invoices *fakeInvoiceService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	ts := &testServer{
		engine:   NewEngine(observability.Config{}, nil),
		company:  &fakeCompanyService{},
		invoices: &fakeInvoiceService{},
	}
	NewServer(ServerParams{
		Gin:               ts.engine,
		AuthzSvc:          authz,
		AuditSvc:          nil,
		CompanySvc:        ts.company,
		JobDescriptionSvc: struct{ jobdescriptiondomain.Service }{},
		WorkerSvc:         struct{ workerdomain.Service }{},
		BankAccountSvc:    struct{ bankaccountdomain.Service }{},
		InvoiceSvc:        ts.invoices,
	})
	return ts
}

func (ts *testServer) do(method, path, role string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthNeedsNoRole(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresActorRole(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/companies", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Type)
}

func TestRolePermissions(t *testing.T) {
	ts := newTestServer(t)
	body := `{"name":"PT Maju Jaya"}`

	w := ts.do(http.MethodPost, "/api/companies", "viewer", bytes.NewBufferString(body), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Type)

	w = ts.do(http.MethodPost, "/api/companies", "Staff", bytes.NewBufferString(body), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PT Maju Jaya", ts.company.created.Name)

	var resp struct {
		Data companydomain.Company `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, snowflake.ID(10), resp.Data.ID)

	w = ts.do(http.MethodPost, "/api/invoices/42/issue", "staff", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, ts.invoices.calls)

	w = ts.do(http.MethodPost, "/api/invoices/42/issue", "finance", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"issue"}, ts.invoices.calls)

	w = ts.do(http.MethodGet, "/api/audit_logs", "staff", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListCompaniesEnvelope(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/companies?search=maju&page_size=5", "viewer", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data     []companydomain.Company `json:"data"`
		PageInfo pagination.PageInfo     `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.PageInfo.HasMore)
	assert.Equal(t, "next", resp.PageInfo.NextPageToken)
	assert.Equal(t, "maju", ts.company.created.Name)
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"not found", invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
		{"not draft", invoicedomain.ErrInvoiceNotDraft, http.StatusConflict, "conflict"},
		{"transition", invoicedomain.ErrInvalidStatusTransition, http.StatusConflict, "conflict"},
		{"validation", invoicedomain.ErrInvalidVATPercentage, http.StatusBadRequest, "validation_error"},
		{"wrapped", fmt.Errorf("create: %w", invoicedomain.ErrMissingPrice), http.StatusBadRequest, "validation_error"},
		{"unknown", errors.New("db gone"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.invoices.err = tc.err
			w := ts.do(http.MethodGet, "/api/invoices/42", "viewer", nil, "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.typ, decodeError(t, w).Type)
		})
	}
}

func TestCompanyConflictAndDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.company.err = companydomain.ErrNameTaken
	w := ts.do(http.MethodPost, "/api/companies", "admin", bytes.NewBufferString(`{"name":"PT X"}`), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "company name taken", decodeError(t, w).Message)

	ts.company.err = nil
	w = ts.do(http.MethodDelete, "/api/companies/10", "admin", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodPost, "/api/companies", "admin", bytes.NewBufferString(`{"name":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidationErrorCarriesField(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.err = invoicedomain.ErrInvalidVATPercentage
	w := ts.do(http.MethodPost, "/api/invoices", "staff", bytes.NewBufferString(`{"company_id":"1"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "vat_percentage", payload.Errors[0].Field)
	assert.Equal(t, "invalid_vat_percentage", payload.Errors[0].Code)
}

func TestCancelPassesReason(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/invoices/42/cancel", "finance", bytes.NewBufferString(`{"reason":"salah tagih"}`), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cancel:salah tagih"}, ts.invoices.calls)
}

func TestRenderInvoicePDF(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/invoices/42/pdf", "viewer", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="001-inv-tka-iii-2025-pt-maju-jaya.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	w = ts.do(http.MethodGet, "/api/invoices/42/pdf?inline=true", "viewer", nil, "")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inline;")
}

func multipartBody(t *testing.T, filename, content, mode string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if mode != "" {
		require.NoError(t, mw.WriteField("mode", mode))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestImportInvoiceLines(t *testing.T) {
	ts := newTestServer(t)
	csv := "baris,worker,quantity\n1,Li Wei,2\n"
	body, contentType := multipartBody(t, "lines.csv", csv, "Replace")

	w := ts.do(http.MethodPost, "/api/invoices/42/lines/import", "staff", body, contentType)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", ts.invoices.imported.InvoiceID)
	assert.Equal(t, "lines.csv", ts.invoices.imported.Filename)
	assert.Equal(t, invoicedomain.ImportModeReplace, ts.invoices.imported.Mode)
	assert.Equal(t, csv, string(ts.invoices.body))
}

func TestImportRowErrorReportsRow(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.err = &importer.RowError{Row: 3, Err: invoicedomain.ErrWorkerNotFound}
	body, contentType := multipartBody(t, "lines.csv", "worker\nNobody\n", "")

	w := ts.do(http.MethodPost, "/api/invoices/42/lines/import", "staff", body, contentType)
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "row_3", payload.Errors[0].Field)
	assert.Equal(t, "worker_not_found", payload.Errors[0].Code)

	w = ts.do(http.MethodPost, "/api/invoices/42/lines/import", "staff", bytes.NewBufferString("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file", decodeError(t, w).Errors[0].Field)
}

func TestImportUnreadableFileIsBadRequest(t *testing.T) {
	for _, name := range []string{"lines.csv", "lines.xlsx"} {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.invoices.err = fmt.Errorf("%w: %v", importer.ErrUnreadableFile, errors.New("zip: not a valid zip file"))
			body, contentType := multipartBody(t, name, "garbage", "")

			w := ts.do(http.MethodPost, "/api/invoices/42/lines/import", "staff", body, contentType)
			require.Equal(t, http.StatusBadRequest, w.Code)
			payload := decodeError(t, w)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, "file", payload.Errors[0].Field)
			assert.Equal(t, "unreadable_import_file", payload.Errors[0].Code)
		})
	}

	_, err := importer.Parse("lines.csv", strings.NewReader("baris,quantity\n1,\"2\n"))
	status, payload := mapError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "file", payload.Errors[0].Field)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(fmt.Errorf("wrap: %w", invoicedomain.ErrInvoiceNotDraft))
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "invoice_not_draft", code)

	typ, code = classifyErrorForLog(auditdomain.ErrInvalidTimeRange)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_time_range", code)
}
