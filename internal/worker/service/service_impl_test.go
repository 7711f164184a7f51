package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	"github.com/smallbiznis/tka-invoice/internal/migration"
	"github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"github.com/smallbiznis/tka-invoice/internal/worker/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	now      time.Time
	company  companydomain.Company
	other    companydomain.Company
	job      jobdescriptiondomain.JobDescription
	otherJob jobdescriptiondomain.JobDescription
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	now := fake.Now()

	f := &fixture{db: conn, node: node, now: now}
	f.company = companydomain.Company{ID: node.Generate(), Name: "PT Maju Jaya", CreatedAt: now, UpdatedAt: now}
	f.other = companydomain.Company{ID: node.Generate(), Name: "PT Lain", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&f.company).Error)
	require.NoError(t, conn.Create(&f.other).Error)

	f.job = jobdescriptiondomain.JobDescription{ID: node.Generate(), CompanyID: f.company.ID, Title: "Welder", Price: decimal.NewFromInt(1000000), CreatedAt: now, UpdatedAt: now}
	f.otherJob = jobdescriptiondomain.JobDescription{ID: node.Generate(), CompanyID: f.other.ID, Title: "Welder", Price: decimal.NewFromInt(900000), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&f.job).Error)
	require.NoError(t, conn.Create(&f.otherJob).Error)

	f.svc = New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)
	return f
}

func TestCreateWorker(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	worker, err := f.svc.Create(ctx, domain.CreateWorkerRequest{
		CompanyID:        f.company.ID.String(),
		JobDescriptionID: f.job.ID.String(),
		Name:             " Li Wei ",
		PassportNumber:   "E1234567",
		Nationality:      "CN",
	})
	require.NoError(t, err)
	assert.Equal(t, "Li Wei", worker.Name)
	require.NotNil(t, worker.JobDescriptionID)
	assert.Equal(t, f.job.ID, *worker.JobDescriptionID)

	got, err := f.svc.GetByID(ctx, worker.ID.String())
	require.NoError(t, err)
	require.NotNil(t, got.PassportNumber)
	assert.Equal(t, "E1234567", *got.PassportNumber)

	noPassport, err := f.svc.Create(ctx, domain.CreateWorkerRequest{CompanyID: f.company.ID.String(), Name: "Tanaka"})
	require.NoError(t, err)
	assert.Nil(t, noPassport.PassportNumber)
	assert.Nil(t, noPassport.JobDescriptionID)
}

func TestCreateWorkerValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateWorkerRequest{CompanyID: f.company.ID.String(), Name: "A", PassportNumber: "P1"})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  domain.CreateWorkerRequest
		want error
	}{
		{"blank name", domain.CreateWorkerRequest{CompanyID: f.company.ID.String(), Name: "  "}, domain.ErrInvalidName},
		{"unknown company", domain.CreateWorkerRequest{CompanyID: "77", Name: "B"}, domain.ErrInvalidCompany},
		{"unknown job", domain.CreateWorkerRequest{CompanyID: f.company.ID.String(), JobDescriptionID: "88", Name: "B"}, domain.ErrInvalidJobDescription},
		{"job of another company", domain.CreateWorkerRequest{CompanyID: f.company.ID.String(), JobDescriptionID: f.otherJob.ID.String(), Name: "B"}, domain.ErrCompanyMismatch},
		{"passport taken", domain.CreateWorkerRequest{CompanyID: f.other.ID.String(), Name: "B", PassportNumber: "P1"}, domain.ErrPassportTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateWorkerClearsJobDescription(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	worker, err := f.svc.Create(ctx, domain.CreateWorkerRequest{
		CompanyID:        f.company.ID.String(),
		JobDescriptionID: f.job.ID.String(),
		Name:             "Li Wei",
	})
	require.NoError(t, err)

	mismatch := f.otherJob.ID.String()
	_, err = f.svc.Update(ctx, domain.UpdateWorkerRequest{ID: worker.ID.String(), JobDescriptionID: &mismatch})
	assert.ErrorIs(t, err, domain.ErrCompanyMismatch)

	empty := ""
	name := "Li Wei Jr"
	updated, err := f.svc.Update(ctx, domain.UpdateWorkerRequest{ID: worker.ID.String(), JobDescriptionID: &empty, Name: &name})
	require.NoError(t, err)
	assert.Nil(t, updated.JobDescriptionID)
	assert.Equal(t, "Li Wei Jr", updated.Name)

	got, err := f.svc.GetByID(ctx, worker.ID.String())
	require.NoError(t, err)
	assert.Nil(t, got.JobDescriptionID)
}

func TestDeleteWorkerOnInvoiceLine(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	worker, err := f.svc.Create(ctx, domain.CreateWorkerRequest{CompanyID: f.company.ID.String(), Name: "Li Wei"})
	require.NoError(t, err)

	invoice := invoicedomain.Invoice{
		ID:            f.node.Generate(),
		Number:        "001/INV-TKA/III/2025",
		Sequence:      1,
		IssueYear:     2025,
		CompanyID:     f.company.ID,
		Status:        invoicedomain.InvoiceStatusDraft,
		InvoiceDate:   f.now,
		VATPercentage: decimal.NewFromInt(11),
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	require.NoError(t, f.db.Create(&invoice).Error)
	line := invoicedomain.InvoiceLine{
		ID:          f.node.Generate(),
		InvoiceID:   invoice.ID,
		LineOrder:   1,
		Baris:       1,
		WorkerID:    &worker.ID,
		Description: "Li Wei",
		UnitPrice:   decimal.NewFromInt(100),
		Quantity:    1,
		LineTotal:   decimal.NewFromInt(100),
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	require.NoError(t, f.db.Create(&line).Error)

	assert.ErrorIs(t, f.svc.Delete(ctx, worker.ID.String()), domain.ErrInUse)

	require.NoError(t, f.db.Delete(&line).Error)
	require.NoError(t, f.svc.Delete(ctx, worker.ID.String()))
	_, err = f.svc.GetByID(ctx, worker.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListWorkers(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for _, req := range []domain.CreateWorkerRequest{
		{CompanyID: f.company.ID.String(), JobDescriptionID: f.job.ID.String(), Name: "Li Wei"},
		{CompanyID: f.company.ID.String(), Name: "Tanaka Hiro"},
		{CompanyID: f.other.ID.String(), JobDescriptionID: f.otherJob.ID.String(), Name: "Li Na"},
	} {
		_, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
	}

	resp, err := f.svc.List(ctx, domain.ListWorkerRequest{CompanyID: f.company.ID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Workers, 2)

	resp, err = f.svc.List(ctx, domain.ListWorkerRequest{Search: "li "})
	require.NoError(t, err)
	assert.Len(t, resp.Workers, 2)

	resp, err = f.svc.List(ctx, domain.ListWorkerRequest{JobDescriptionID: f.job.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Workers, 1)
	assert.Equal(t, "Li Wei", resp.Workers[0].Name)

	_, err = f.svc.List(ctx, domain.ListWorkerRequest{CompanyID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
}
