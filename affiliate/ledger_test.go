package affiliate

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/affiliate/models"
)

func TestGenerateCode(t *testing.T) {
	f := newFixture(t)

	code, err := f.ledger.GenerateCode(testCtx)
	require.NoError(t, err)
	assert.Equal(t, "100", code, "empty set starts at the configured code")

	f.seedAffiliate(t, "100", 1, "0")
	code, err = f.ledger.GenerateCode(testCtx)
	require.NoError(t, err)
	assert.Equal(t, "101", code)
}

func TestGenerateCodeNumericOrder(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "99", 1, "0")
	f.seedAffiliate(t, "100", 2, "0")
	f.seedAffiliate(t, "998", 3, "0")
	f.seedAffiliate(t, "1000", 4, "0")

	code, err := f.ledger.GenerateCode(testCtx)
	require.NoError(t, err)
	assert.Equal(t, "1001", code)
}

func TestGenerateCodeNonNumeric(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "promo", 1, "0")

	_, err := f.ledger.GenerateCode(testCtx)
	assert.Error(t, err)
}

func TestCreateAffiliate(t *testing.T) {
	f := newFixture(t)

	first, err := f.ledger.CreateAffiliate(testCtx, 7)
	require.NoError(t, err)
	assert.Equal(t, "100", first.Code)
	assert.Equal(t, uint(7), first.UserID)

	second, err := f.ledger.CreateAffiliate(testCtx, 8)
	require.NoError(t, err)
	assert.Equal(t, "101", second.Code)

	_, err = f.ledger.CreateAffiliate(testCtx, 7)
	assert.ErrorIs(t, err, ErrAlreadyAffiliate)
}

func TestCreateAffiliateBaseIntegrator(t *testing.T) {
	f := newFixture(t)
	ledger := NewLedger(f.db, testConfig(), BaseIntegrator{CurrencyLabel: "USD"}, f.counter, f.ledger.log)

	_, err := ledger.CreateAffiliate(testCtx, 1)
	assert.ErrorIs(t, err, ErrNotImplemented)

	exists, err := ledger.Exists(testCtx, "100")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestForUserMiss(t *testing.T) {
	f := newFixture(t)

	aff, err := f.ledger.ForUser(testCtx, 42)
	require.NoError(t, err)
	assert.Nil(t, aff)

	_, err = f.ledger.Get(testCtx, "404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerDebit(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "10.00")

	aff, err := f.ledger.Debit(testCtx, "100", dec("2.50"))
	require.NoError(t, err)
	assert.Equal(t, "7.50", aff.Balance.StringFixed(2))

	_, err = f.ledger.Debit(testCtx, "100", dec("8.00"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.ledger.Debit(testCtx, "100", dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	stored := f.reload(t, "100")
	assert.Equal(t, "7.50", stored.Balance.StringFixed(2))
	assert.Equal(t, "2.50", stored.TotalPaid.StringFixed(2))
	assert.Equal(t, 0, stored.TotalPaymentsCount)

	_, err = f.ledger.Debit(testCtx, "missing", dec("1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePayoutRequest(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "12.50")

	req, err := f.ledger.CreatePayoutRequest(testCtx, "100")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, req.Status)
	assert.Equal(t, "12.50", req.Amount.StringFixed(2))
	assert.Nil(t, req.PaidAt)

	assert.Equal(t, "12.50", f.reload(t, "100").Balance.StringFixed(2), "requesting does not move money")

	_, err = f.ledger.CreatePayoutRequest(testCtx, "100")
	assert.ErrorIs(t, err, ErrPayoutPending)
}

func TestCreatePayoutRequestBelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "0.50")

	_, err := f.ledger.CreatePayoutRequest(testCtx, "100")
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestAddAward(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "1.00")

	award, err := f.ledger.AddAward(testCtx, "100", dec("25.00"))
	require.NoError(t, err)
	assert.Equal(t, "2.50", award.StringFixed(2))
	assert.Equal(t, "3.50", f.reload(t, "100").Balance.StringFixed(2))

	_, err = f.ledger.AddAward(testCtx, "100", dec("5.00"))
	require.NoError(t, err)

	rows, err := f.counter.ForLastDays(testCtx, "100", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].CountPayments)
	assert.Equal(t, int64(0), rows[0].TotalViews)

	_, err = f.ledger.AddAward(testCtx, "100", dec("-5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

type failingIntegrator struct{ BaseIntegrator }

func (failingIntegrator) AddPartnerAward(context.Context, *models.Affiliate, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, assert.AnError
}

func TestAddAwardRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "1.00")
	ledger := NewLedger(f.db, testConfig(), failingIntegrator{}, f.counter, f.ledger.log)

	_, err := ledger.AddAward(testCtx, "100", dec("10"))
	assert.ErrorIs(t, err, assert.AnError)

	rows, err := f.counter.ForLastDays(testCtx, "100", 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, "1.00", f.reload(t, "100").Balance.StringFixed(2))
}
