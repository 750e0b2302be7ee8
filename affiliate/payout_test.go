package affiliate

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/affiliate/models"
)

func (f *fixture) seedRequest(t *testing.T, code string, status models.PayoutStatus, amount string) *models.PayoutRequest {
	t.Helper()
	req := &models.PayoutRequest{AffiliateCode: code, Status: status, Amount: dec(amount)}
	require.NoError(t, f.db.Create(req).Error)
	return req
}

func TestFulfill(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "10.00")
	req, err := f.ledger.CreatePayoutRequest(testCtx, "100")
	require.NoError(t, err)

	done, err := f.workflow.Fulfill(testCtx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutDone, done.Status)
	assert.True(t, done.IsDone())
	require.NotNil(t, done.PaidAt)
	assert.True(t, done.PaidAt.Equal(fixedNow))

	aff := f.reload(t, "100")
	assert.Equal(t, "0.00", aff.Balance.StringFixed(2))
	assert.Equal(t, "10.00", aff.TotalPaid.StringFixed(2))
	assert.Equal(t, 1, aff.TotalPaymentsCount)

	stored, err := f.workflow.Get(testCtx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutDone, stored.Status)
	assert.NotNil(t, stored.PaidAt)

	_, err = f.workflow.Fulfill(testCtx, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFulfillInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "10.00")
	req, err := f.ledger.CreatePayoutRequest(testCtx, "100")
	require.NoError(t, err)

	_, err = f.ledger.Debit(testCtx, "100", dec("5.00"))
	require.NoError(t, err)

	_, err = f.workflow.Fulfill(testCtx, req.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	stored, err := f.workflow.Get(testCtx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, stored.Status)
	assert.Nil(t, stored.PaidAt)

	aff := f.reload(t, "100")
	assert.Equal(t, "5.00", aff.Balance.StringFixed(2))
	assert.Equal(t, 0, aff.TotalPaymentsCount)
}

func TestFulfillMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.workflow.Fulfill(testCtx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkFailed(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "10.00")
	req, err := f.ledger.CreatePayoutRequest(testCtx, "100")
	require.NoError(t, err)

	failed, err := f.workflow.MarkFailed(testCtx, req.ID, "  bank rejected transfer ")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutError, failed.Status)
	assert.Equal(t, "bank rejected transfer", failed.Note)
	assert.False(t, failed.IsDone())
	assert.Equal(t, "10.00", f.reload(t, "100").Balance.StringFixed(2))

	_, err = f.workflow.MarkFailed(testCtx, req.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.workflow.Fulfill(testCtx, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// a failed request no longer blocks a new one
	_, err = f.ledger.CreatePayoutRequest(testCtx, "100")
	assert.NoError(t, err)
}

func TestMarkFailedNote(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "10.00")

	tests := []struct {
		name string
		note string
		want string
	}{
		{name: "markup stripped, text kept plain", note: "<b>bank</b> rejected & returned", want: "bank rejected & returned"},
		{name: "long note cut by characters", note: strings.Repeat("é", 300), want: strings.Repeat("é", maxNoteLen)},
		{name: "empty note", note: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.seedRequest(t, "100", models.PayoutPending, "1.00")
			failed, err := f.workflow.MarkFailed(testCtx, req.ID, tt.note)
			require.NoError(t, err)
			assert.Equal(t, tt.want, failed.Note)
			assert.True(t, utf8.ValidString(failed.Note))

			stored, err := f.workflow.Get(testCtx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Note)
		})
	}
}

func TestConcurrentFulfill(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "10.00")
	a := f.seedRequest(t, "100", models.PayoutPending, "10.00")
	b := f.seedRequest(t, "100", models.PayoutPending, "10.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = f.workflow.Fulfill(testCtx, id)
		}(i, id)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	aff := f.reload(t, "100")
	assert.Equal(t, "0.00", aff.Balance.StringFixed(2))
	assert.Equal(t, 1, aff.TotalPaymentsCount)
}

func TestListOrdering(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "0")
	older := fixedNow.Add(-48 * time.Hour)

	doneOld := &models.PayoutRequest{AffiliateCode: "100", Status: models.PayoutDone, Amount: dec("1.00"), PaidAt: &older}
	require.NoError(t, f.db.Create(doneOld).Error)
	doneNew := &models.PayoutRequest{AffiliateCode: "100", Status: models.PayoutDone, Amount: dec("2.00"), PaidAt: &fixedNow}
	require.NoError(t, f.db.Create(doneNew).Error)
	failed := f.seedRequest(t, "100", models.PayoutError, "3.00")
	pending := f.seedRequest(t, "100", models.PayoutPending, "4.00")

	all, err := f.workflow.List(testCtx, "100")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []uint{pending.ID, failed.ID, doneNew.ID, doneOld.ID},
		[]uint{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	open, err := f.workflow.Pending(testCtx, "100")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, pending.ID, open[0].ID)
}

func TestTriage(t *testing.T) {
	f := newFixture(t)
	f.seedAffiliate(t, "100", 1, "0")
	f.seedAffiliate(t, "101", 2, "0")
	for i := 0; i < 3; i++ {
		f.seedRequest(t, "100", models.PayoutPending, "1.00")
	}
	f.seedRequest(t, "101", models.PayoutError, "1.00")

	page, total, err := f.workflow.Triage(testCtx, models.PayoutPending, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	page, total, err = f.workflow.Triage(testCtx, models.PayoutPending, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	page, total, err = f.workflow.Triage(testCtx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, page, 4)
	assert.Equal(t, models.PayoutError, page[3].Status)

	_, _, err = f.workflow.Triage(testCtx, models.PayoutStatus("lost"), 1, 10)
	_, isForm := AsFormError(err)
	assert.True(t, isForm)
}
