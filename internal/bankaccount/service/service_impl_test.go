package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/migration"
	"github.com/smallbiznis/tka-invoice/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.ProvideStore[domain.BankAccount](conn),
	}).(*Service)
	return svc, conn, node
}

func TestFirstAccountBecomesDefault(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.GetDefault(ctx)
	assert.ErrorIs(t, err, domain.ErrNoDefault)

	first, err := svc.Create(ctx, domain.CreateBankAccountRequest{
		BankName:      "BCA",
		AccountNumber: "123-456.789 0",
		AccountHolder: "PT TKA Services",
	})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "1234567890", first.AccountNumber)

	second, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: "Mandiri", AccountNumber: "987", AccountHolder: "PT TKA Services"})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	def, err := svc.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, def.ID)

	third, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: "BNI", AccountNumber: "555", AccountHolder: "PT TKA Services", IsDefault: true})
	require.NoError(t, err)
	assert.True(t, third.IsDefault)

	def, err = svc.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, third.ID, def.ID)

	got, err := svc.GetByID(ctx, first.ID.String())
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestSetDefaultSwaps(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: "BCA", AccountNumber: "111", AccountHolder: "PT TKA"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: "BRI", AccountNumber: "222", AccountHolder: "PT TKA"})
	require.NoError(t, err)

	updated, err := svc.SetDefault(ctx, second.ID.String())
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	got, err := svc.GetByID(ctx, first.ID.String())
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	_, err = svc.SetDefault(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBankAccountValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateBankAccountRequest
		want error
	}{
		{"bank name", domain.CreateBankAccountRequest{AccountNumber: "1", AccountHolder: "X"}, domain.ErrInvalidBankName},
		{"letters in number", domain.CreateBankAccountRequest{BankName: "BCA", AccountNumber: "12AB", AccountHolder: "X"}, domain.ErrInvalidAccountNumber},
		{"empty number", domain.CreateBankAccountRequest{BankName: "BCA", AccountNumber: " - ", AccountHolder: "X"}, domain.ErrInvalidAccountNumber},
		{"holder", domain.CreateBankAccountRequest{BankName: "BCA", AccountNumber: "1"}, domain.ErrInvalidAccountHolder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateBankAccount(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	account, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: "BCA", AccountNumber: "111", AccountHolder: "PT TKA"})
	require.NoError(t, err)

	branch := "KCP Sudirman"
	number := "0812 3456"
	updated, err := svc.Update(ctx, domain.UpdateBankAccountRequest{ID: account.ID.String(), Branch: &branch, AccountNumber: &number})
	require.NoError(t, err)
	assert.Equal(t, "KCP Sudirman", updated.Branch)
	assert.Equal(t, "08123456", updated.AccountNumber)
	assert.Equal(t, "BCA", updated.BankName)
	assert.True(t, updated.IsDefault)

	blank := ""
	_, err = svc.Update(ctx, domain.UpdateBankAccountRequest{ID: account.ID.String(), AccountHolder: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountHolder)
}

func TestDeleteBankAccountReferencedByInvoice(t *testing.T) {
	svc, conn, node := setupService(t)
	ctx := context.Background()

	account, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: "BCA", AccountNumber: "111", AccountHolder: "PT TKA"})
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	company := companydomain.Company{ID: node.Generate(), Name: "PT Maju Jaya", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&company).Error)
	invoice := invoicedomain.Invoice{
		ID:            node.Generate(),
		Number:        "001/INV-TKA/III/2025",
		Sequence:      1,
		IssueYear:     2025,
		CompanyID:     company.ID,
		BankAccountID: &account.ID,
		Status:        invoicedomain.InvoiceStatusIssued,
		InvoiceDate:   now,
		VATPercentage: decimal.NewFromInt(11),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, conn.Create(&invoice).Error)

	assert.ErrorIs(t, svc.Delete(ctx, account.ID.String()), domain.ErrInUse)

	require.NoError(t, conn.Model(&invoicedomain.Invoice{}).Where("id = ?", invoice.ID).
		Update("status", invoicedomain.InvoiceStatusCancelled).Error)
	require.NoError(t, svc.Delete(ctx, account.ID.String()))

	_, err = svc.GetByID(ctx, account.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var remaining invoicedomain.Invoice
	require.NoError(t, conn.Where("id = ?", invoice.ID).Take(&remaining).Error)
	assert.Nil(t, remaining.BankAccountID)
}

func TestListBankAccountsSearch(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	for _, name := range []string{"BCA", "Mandiri", "BCA Syariah"} {
		_, err := svc.Create(ctx, domain.CreateBankAccountRequest{BankName: name, AccountNumber: "100", AccountHolder: "PT TKA"})
		require.NoError(t, err)
	}

	resp, err := svc.List(ctx, domain.ListBankAccountRequest{Search: "bca"})
	require.NoError(t, err)
	assert.Len(t, resp.BankAccounts, 2)

	resp, err = svc.List(ctx, domain.ListBankAccountRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.BankAccounts, 3)
	assert.False(t, resp.HasMore)
}
