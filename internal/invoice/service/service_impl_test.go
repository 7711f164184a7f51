package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	bankaccountdomain "github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	"github.com/smallbiznis/tka-invoice/internal/config"
	"github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/invoice/importer"
	"github.com/smallbiznis/tka-invoice/internal/invoice/repository"
	"github.com/smallbiznis/tka-invoice/internal/invoice/totals"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	"github.com/smallbiznis/tka-invoice/internal/migration"
	"github.com/smallbiznis/tka-invoice/internal/providers/pdf"
	workerdomain "github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) AuditLog(_ context.Context, action string, _ string, _ *string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

// failingTotalsRepo fails the aggregate write, after the lines were already
// changed inside the transaction.
type failingTotalsRepo struct {
	domain.Repository
	err error
}

func (r *failingTotalsRepo) UpdateTotals(context.Context, *gorm.DB, *domain.Invoice) error {
	return r.err
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	clock   *clock.FakeClock
	node    *snowflake.Node
	audit   *recordingAudit
	company companydomain.Company
	other   companydomain.Company
	job     jobdescriptiondomain.JobDescription
	worker  workerdomain.Worker
	bank    bankaccountdomain.BankAccount
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	rec := &recordingAudit{}

	svc := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Repo:     repository.Provide(),
		Config:   config.NewStaticInvoiceConfigHolder(config.DefaultInvoiceConfig()),
		PDF:      pdf.New(),
		AuditSvc: rec,
	}).(*Service)

	f := &fixture{svc: svc, db: conn, clock: fake, node: node, audit: rec}
	now := fake.Now()

	f.company = companydomain.Company{ID: node.Generate(), Name: "PT Maju Jaya", Address: "Jl. Sudirman 1", CreatedAt: now, UpdatedAt: now}
	f.other = companydomain.Company{ID: node.Generate(), Name: "PT Lain", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&f.company).Error)
	require.NoError(t, conn.Create(&f.other).Error)

	f.job = jobdescriptiondomain.JobDescription{
		ID: node.Generate(), CompanyID: f.company.ID, Title: "Engineer",
		Price: decimal.NewFromInt(1000000), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, conn.Create(&f.job).Error)

	f.worker = workerdomain.Worker{
		ID: node.Generate(), CompanyID: f.company.ID, JobDescriptionID: &f.job.ID,
		Name: "John Doe", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, conn.Create(&f.worker).Error)

	f.bank = bankaccountdomain.BankAccount{
		ID: node.Generate(), BankName: "BCA", AccountNumber: "0061234567",
		AccountHolder: "TKA Services", IsDefault: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, conn.Create(&f.bank).Error)
	return f
}

func (f *fixture) draft(t *testing.T) domain.Invoice {
	t.Helper()
	invoice, err := f.svc.Create(context.Background(), domain.CreateInvoiceRequest{
		CompanyID:   f.company.ID.String(),
		InvoiceDate: "2025-03-14",
	})
	require.NoError(t, err)
	return invoice
}

func (f *fixture) workerLine(qty int64) domain.LineInput {
	return domain.LineInput{WorkerID: f.worker.ID.String(), Quantity: qty}
}

func customLine(description, price string, qty int64) domain.LineInput {
	p := decimal.RequireFromString(price)
	return domain.LineInput{Description: description, CustomPrice: &p, Quantity: qty}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got.String())
}

func TestCreateAssignsNumberAndDefaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first := f.draft(t)
	assert.Equal(t, "001/INV-TKA/III/2025", first.Number)
	assert.Equal(t, domain.InvoiceStatusDraft, first.Status)
	assert.Equal(t, "PT Maju Jaya", first.CompanyName)
	assertMoney(t, "11", first.VATPercentage)
	assertMoney(t, "0", first.TotalAmount)
	require.NotNil(t, first.BankAccountID)
	assert.Equal(t, f.bank.ID, *first.BankAccountID)
	require.NotNil(t, first.DueDate)
	assert.Equal(t, "2025-04-13", first.DueDate.UTC().Format(dateLayout))

	second := f.draft(t)
	assert.Equal(t, "002/INV-TKA/III/2025", second.Number)

	nextYear, err := f.svc.Create(ctx, domain.CreateInvoiceRequest{
		CompanyID:   f.company.ID.String(),
		InvoiceDate: "2026-01-05",
	})
	require.NoError(t, err)
	assert.Equal(t, "001/INV-TKA/I/2026", nextYear.Number)

	assert.Contains(t, f.audit.actions, "invoice.create")
}

func TestCreateValidatesInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateInvoiceRequest{CompanyID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)

	_, err = f.svc.Create(ctx, domain.CreateInvoiceRequest{CompanyID: f.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrCompanyNotFound)

	_, err = f.svc.Create(ctx, domain.CreateInvoiceRequest{
		CompanyID: f.company.ID.String(), InvoiceDate: "2025-03-14", DueDate: "2025-03-01",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDueDate)

	vat := decimal.RequireFromString("100.5")
	_, err = f.svc.Create(ctx, domain.CreateInvoiceRequest{CompanyID: f.company.ID.String(), VATPercentage: &vat})
	assert.ErrorIs(t, err, domain.ErrInvalidVATPercentage)

	_, err = f.svc.Create(ctx, domain.CreateInvoiceRequest{CompanyID: f.company.ID.String(), InvoiceDate: "14/03/2025"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestCreateWithLinesComputesTotals(t *testing.T) {
	f := setup(t)

	invoice, err := f.svc.Create(context.Background(), domain.CreateInvoiceRequest{
		CompanyID:   f.company.ID.String(),
		InvoiceDate: "2025-03-14",
		Lines: []domain.LineInput{
			f.workerLine(2),
			customLine("Visa fee", "150000.50", 3),
		},
	})
	require.NoError(t, err)
	require.Len(t, invoice.Lines, 2)

	// 2,000,000 + 450,001.50; VAT 11% = 269,500.165 -> 269,500
	assertMoney(t, "2450001.50", invoice.Subtotal)
	assertMoney(t, "269500", invoice.VATAmount)
	assertMoney(t, "2719501.50", invoice.TotalAmount)

	first := invoice.Lines[0]
	assert.Equal(t, 1, first.LineOrder)
	assert.Equal(t, 1, first.Baris)
	assert.Equal(t, "John Doe - Engineer", first.Description)
	require.NotNil(t, first.JobDescriptionID)
	assert.Equal(t, f.job.ID, *first.JobDescriptionID)
	assert.False(t, first.CustomPrice.Valid)
	assert.Equal(t, "John Doe", first.WorkerName)
	assert.Equal(t, "Engineer", first.JobTitle)

	second := invoice.Lines[1]
	assert.Equal(t, 2, second.LineOrder)
	assert.True(t, second.CustomPrice.Valid)
	assertMoney(t, "450001.50", second.LineTotal)
}

func TestAddLineAndDeleteLineKeepAggregateInSync(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	baris := 1
	_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)
	shared := customLine("Medical check", "250000", 1)
	shared.Baris = &baris
	_, err = f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: shared})
	require.NoError(t, err)
	invoice, err = f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: customLine("Courier", "50000", 2)})
	require.NoError(t, err)

	require.Len(t, invoice.Lines, 3)
	assert.Equal(t, 1, invoice.Lines[1].Baris)
	assert.Equal(t, 3, invoice.Lines[2].Baris)
	assertMoney(t, "1350000", invoice.Subtotal)
	assertMoney(t, "148500", invoice.VATAmount)
	assertMoney(t, "1498500", invoice.TotalAmount)

	invoice, err = f.svc.DeleteLine(ctx, id, invoice.Lines[1].ID.String())
	require.NoError(t, err)
	require.Len(t, invoice.Lines, 2)
	assert.Equal(t, 1, invoice.Lines[0].LineOrder)
	assert.Equal(t, 2, invoice.Lines[1].LineOrder)
	assert.Equal(t, "Courier", invoice.Lines[1].Description)
	assertMoney(t, "1100000", invoice.Subtotal)
	assertMoney(t, "1221000", invoice.TotalAmount)

	_, err = f.svc.DeleteLine(ctx, id, f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrLineNotFound)

	invoice, err = f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: customLine("Permit", "10000", 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, invoice.Lines[2].LineOrder)
}

func TestReplaceLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)

	_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: invoice.ID.String(), LineInput: f.workerLine(5)})
	require.NoError(t, err)

	invoice, err = f.svc.ReplaceLines(ctx, domain.ReplaceLinesRequest{
		InvoiceID: invoice.ID.String(),
		Lines:     []domain.LineInput{customLine("B", "200", 1), customLine("A", "100", 1)},
	})
	require.NoError(t, err)
	require.Len(t, invoice.Lines, 2)
	assert.Equal(t, "B", invoice.Lines[0].Description)
	assert.Equal(t, "A", invoice.Lines[1].Description)
	assertMoney(t, "300", invoice.Subtotal)
	assertMoney(t, "33", invoice.VATAmount)

	invoice, err = f.svc.ReplaceLines(ctx, domain.ReplaceLinesRequest{InvoiceID: invoice.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, invoice.Lines)
	assertMoney(t, "0", invoice.TotalAmount)
}

func TestLineRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()
	now := f.clock.Now()

	foreign := workerdomain.Worker{ID: f.node.Generate(), CompanyID: f.other.ID, Name: "Outsider", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.db.Create(&foreign).Error)
	bare := workerdomain.Worker{ID: f.node.Generate(), CompanyID: f.company.ID, Name: "No Job", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.db.Create(&bare).Error)

	cases := []struct {
		name string
		in   domain.LineInput
		want error
	}{
		{"other company worker", domain.LineInput{WorkerID: foreign.ID.String(), Quantity: 1}, domain.ErrCompanyMismatch},
		{"no price source", domain.LineInput{WorkerID: bare.ID.String(), Quantity: 1}, domain.ErrMissingPrice},
		{"zero quantity", f.workerLine(0), domain.ErrInvalidQuantity},
		{"quantity too large", f.workerLine(domain.MaxLineQuantity + 1), domain.ErrInvalidQuantity},
		{"three decimal price", customLine("Fee", "1.005", 1), domain.ErrInvalidPrice},
		{"unknown worker", domain.LineInput{WorkerID: f.node.Generate().String(), Quantity: 1}, domain.ErrWorkerNotFound},
		{"no description", domain.LineInput{CustomPrice: &decimal.Zero, Quantity: 1}, domain.ErrInvalidDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: tc.in})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	lines := make([]domain.LineInput, domain.MaxLinesPerInvoice+1)
	_, err := f.svc.ReplaceLines(ctx, domain.ReplaceLinesRequest{InvoiceID: id, Lines: lines})
	assert.ErrorIs(t, err, domain.ErrTooManyLines)

	stored, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored.Lines)
	assertMoney(t, "0", stored.TotalAmount)
}

func TestImportLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)

	csv := "baris,worker,job_description,description,quantity,custom_price\n" +
		"1,john doe,,,2,\n" +
		"1,,Engineer,Onboarding,1,500000\n"
	invoice, err := f.svc.ImportLines(ctx, domain.ImportLinesRequest{
		InvoiceID: invoice.ID.String(),
		Filename:  "march.csv",
		Reader:    strings.NewReader(csv),
	})
	require.NoError(t, err)
	require.Len(t, invoice.Lines, 2)
	assert.Equal(t, 1, invoice.Lines[1].Baris)
	assertMoney(t, "2500000", invoice.Subtotal)

	_, err = f.svc.ImportLines(ctx, domain.ImportLinesRequest{
		InvoiceID: invoice.ID.String(),
		Filename:  "bad.csv",
		Reader:    strings.NewReader("worker,quantity\nNobody,1\n"),
		Mode:      domain.ImportModeReplace,
	})
	require.ErrorIs(t, err, domain.ErrWorkerNotFound)
	var rowErr *importer.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)

	stored, err := f.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)

	stored, err = f.svc.ImportLines(ctx, domain.ImportLinesRequest{
		InvoiceID: invoice.ID.String(),
		Filename:  "replace.csv",
		Reader:    strings.NewReader("description,custom_price\nFlat fee,100\n"),
		Mode:      domain.ImportModeReplace,
	})
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assertMoney(t, "111", stored.TotalAmount)

	_, err = f.svc.ImportLines(ctx, domain.ImportLinesRequest{InvoiceID: invoice.ID.String(), Filename: "x.csv", Reader: strings.NewReader(""), Mode: "merge"})
	assert.ErrorIs(t, err, domain.ErrInvalidImportMode)
}

func TestLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	_, err := f.svc.Issue(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvoiceHasNoLines)

	_, err = f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	f.clock.Advance(time.Hour)
	issued, err := f.svc.Issue(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusIssued, issued.Status)
	require.NotNil(t, issued.IssuedAt)
	assertMoney(t, "1110000", issued.TotalAmount)

	_, err = f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotDraft)
	_, err = f.svc.Recalculate(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotDraft)
	note := "late"
	_, err = f.svc.Update(ctx, domain.UpdateInvoiceRequest{ID: id, Notes: &note})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotDraft)
	assert.ErrorIs(t, f.svc.Delete(ctx, id), domain.ErrInvoiceNotDeletable)

	_, err = f.svc.Cancel(ctx, id, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidCancelReason)

	paid, err := f.svc.MarkPaid(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = f.svc.Cancel(ctx, id, "duplicate")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	assert.Contains(t, f.audit.actions, "invoice.issue")
	assert.Contains(t, f.audit.actions, "invoice.pay")
}

func TestCancelAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, id)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, id, "wrong company")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, cancelled.Status)
	assert.Equal(t, "wrong company", cancelled.CancelReason)

	require.NoError(t, f.svc.Delete(ctx, id))
	_, err = f.svc.GetByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

	var lines int64
	require.NoError(t, f.db.Model(&domain.InvoiceLine{}).Where("invoice_id = ?", invoice.ID).Count(&lines).Error)
	assert.Zero(t, lines)
}

func TestUpdateRecomputesOnVATChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)

	zero := decimal.Zero
	none := ""
	notes := "Maret 2025"
	updated, err := f.svc.Update(ctx, domain.UpdateInvoiceRequest{
		ID: id, VATPercentage: &zero, BankAccountID: &none, Notes: &notes,
	})
	require.NoError(t, err)
	assertMoney(t, "0", updated.VATAmount)
	assertMoney(t, "1000000", updated.TotalAmount)
	assert.Nil(t, updated.BankAccountID)
	assert.Equal(t, "Maret 2025", updated.Notes)

	early := "2025-03-01"
	_, err = f.svc.Update(ctx, domain.UpdateInvoiceRequest{ID: id, DueDate: &early})
	assert.ErrorIs(t, err, domain.ErrInvalidDueDate)
}

func TestRecalculateRepairsDriftAndRenderDoesNot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(`UPDATE invoices SET total_amount = 1 WHERE id = ?`, invoice.ID).Error)

	rendered, err := f.svc.RenderPDF(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "001-inv-tka-iii-2025-pt-maju-jaya.pdf", rendered.Filename)
	assert.True(t, bytes.HasPrefix(rendered.Content, []byte("%PDF")))

	stored, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assertMoney(t, "1", stored.TotalAmount)

	repaired, err := f.svc.Recalculate(ctx, id)
	require.NoError(t, err)
	assertMoney(t, "1110000", repaired.TotalAmount)
	assert.Contains(t, f.audit.actions, "invoice.recalculate")
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.draft(t)
		f.clock.Advance(time.Minute)
	}
	otherInvoice, err := f.svc.Create(ctx, domain.CreateInvoiceRequest{CompanyID: f.other.ID.String(), InvoiceDate: "2025-04-02"})
	require.NoError(t, err)

	resp, err := f.svc.List(ctx, domain.ListInvoiceRequest{Search: "lain"})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 1)
	assert.Equal(t, otherInvoice.ID, resp.Invoices[0].ID)
	assert.Equal(t, "PT Lain", resp.Invoices[0].CompanyName)

	resp, err = f.svc.List(ctx, domain.ListInvoiceRequest{CompanyID: f.company.ID.String(), Status: "draft"})
	require.NoError(t, err)
	assert.Len(t, resp.Invoices, 3)

	resp, err = f.svc.List(ctx, domain.ListInvoiceRequest{DateFrom: "2025-04-01", DateTo: "2025-04-30"})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 1)

	var seen []snowflake.ID
	page := pagination.Pagination{PageSize: 3}
	for {
		resp, err = f.svc.List(ctx, domain.ListInvoiceRequest{Pagination: page})
		require.NoError(t, err)
		for _, inv := range resp.Invoices {
			seen = append(seen, inv.ID)
		}
		if !resp.HasMore {
			break
		}
		page.PageToken = resp.NextPageToken
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, otherInvoice.ID, seen[0])

	_, err = f.svc.List(ctx, domain.ListInvoiceRequest{Status: "VOID"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = f.svc.List(ctx, domain.ListInvoiceRequest{DateFrom: "2025-05-01", DateTo: "2025-04-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestStoredVATAndIssuerSurviveConfigChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	changed := config.DefaultInvoiceConfig()
	changed.VATPercentage = "12"
	changed.Issuer.Name = "PT Penerbit Baru"
	f.svc.cfg.Store(changed)

	updated, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)
	assertMoney(t, "11", updated.VATPercentage)
	assertMoney(t, "110000", updated.VATAmount)
	assertMoney(t, "1110000", updated.TotalAmount)

	repaired, err := f.svc.Recalculate(ctx, id)
	require.NoError(t, err)
	assertMoney(t, "110000", repaired.VATAmount)

	stored, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	company, err := f.svc.repo.FindCompany(ctx, f.db, f.company.ID)
	require.NoError(t, err)
	doc := f.svc.buildDocument(stored, company, nil)
	assert.Equal(t, "TKA Services", doc.Issuer.Name)
	assertMoney(t, "11", doc.VATPercentage)

	next := f.draft(t)
	assertMoney(t, "12", next.VATPercentage)
	assert.Equal(t, "PT Penerbit Baru", next.Issuer.Data().Name)
}

func TestLineMutationRollsBackWhenTotalsWriteFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	before, err := f.svc.ReplaceLines(ctx, domain.ReplaceLinesRequest{
		InvoiceID: id,
		Lines:     []domain.LineInput{f.workerLine(2), customLine("Visa fee", "150000.50", 1)},
	})
	require.NoError(t, err)
	require.Len(t, before.Lines, 2)

	errWrite := errors.New("write invoice totals")
	failing := *f.svc
	failing.repo = &failingTotalsRepo{Repository: f.svc.repo, err: errWrite}

	_, err = failing.ReplaceLines(ctx, domain.ReplaceLinesRequest{
		InvoiceID: id,
		Lines:     []domain.LineInput{customLine("Flat fee", "100", 1)},
	})
	require.ErrorIs(t, err, errWrite)

	_, err = failing.ImportLines(ctx, domain.ImportLinesRequest{
		InvoiceID: id,
		Filename:  "replace.csv",
		Reader:    strings.NewReader("description,custom_price\nFlat fee,100\n"),
		Mode:      domain.ImportModeReplace,
	})
	require.ErrorIs(t, err, errWrite)

	_, err = failing.DeleteLine(ctx, id, before.Lines[0].ID.String())
	require.ErrorIs(t, err, errWrite)

	_, err = failing.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: customLine("Courier", "50000", 1)})
	require.ErrorIs(t, err, errWrite)

	stored, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	for i, line := range stored.Lines {
		assert.Equal(t, before.Lines[i].ID, line.ID)
		assert.Equal(t, i+1, line.LineOrder)
		assertMoney(t, before.Lines[i].LineTotal.String(), line.LineTotal)
	}
	assertMoney(t, "2150000.50", stored.Subtotal)
	assertMoney(t, before.VATAmount.String(), stored.VATAmount)
	assertMoney(t, before.TotalAmount.String(), stored.TotalAmount)
	assert.True(t, before.UpdatedAt.Equal(stored.UpdatedAt))
}

func TestTotalsFailureRollsBackLineChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invoice := f.draft(t)
	id := invoice.ID.String()

	_, err := f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: f.workerLine(1)})
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(`UPDATE invoices SET vat_percentage = -1 WHERE id = ?`, invoice.ID).Error)

	_, err = f.svc.AddLine(ctx, domain.AddLineRequest{InvoiceID: id, LineInput: customLine("Courier", "50000", 1)})
	require.ErrorIs(t, err, totals.ErrInvalidArgument)

	stored, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assertMoney(t, "1000000", stored.Subtotal)
	assertMoney(t, "1110000", stored.TotalAmount)
}
