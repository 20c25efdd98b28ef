package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/models"
)

type fakePaymentStore struct {
	byPayload map[string]*models.StarPayment
	nextID    int64
	grants    int
	failed    []int64
	// raceChargeID simulates a concurrent delivery settling the record just
	// before SettleAndCredit runs its conditional transition.
	raceChargeID string
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{byPayload: make(map[string]*models.StarPayment)}
}

func (f *fakePaymentStore) CreatePending(ctx context.Context, payment *models.StarPayment) error {
	f.nextID++
	payment.ID = f.nextID
	payment.Status = models.PaymentPending
	clone := *payment
	f.byPayload[payment.Payload] = &clone
	return nil
}

func (f *fakePaymentStore) FindByPayload(ctx context.Context, payload string) (*models.StarPayment, error) {
	payment, ok := f.byPayload[payload]
	if !ok {
		return nil, nil
	}
	clone := *payment
	return &clone, nil
}

func (f *fakePaymentStore) MarkFailed(ctx context.Context, paymentID int64) error {
	for _, p := range f.byPayload {
		if p.ID == paymentID && p.Status == models.PaymentPending {
			p.Status = models.PaymentFailed
			f.failed = append(f.failed, paymentID)
		}
	}
	return nil
}

func (f *fakePaymentStore) SettleAndCredit(ctx context.Context, payment *models.StarPayment, chargeID string) (bool, error) {
	stored := f.byPayload[payment.Payload]
	if stored != nil && f.raceChargeID != "" && stored.Status == models.PaymentPending {
		stored.Status = models.PaymentSuccess
		stored.TelegramChargeID = f.raceChargeID
	}
	if stored == nil || stored.Status != models.PaymentPending {
		return false, nil
	}
	stored.Status = models.PaymentSuccess
	stored.TelegramChargeID = chargeID
	f.grants++
	payment.Status = models.PaymentSuccess
	payment.TelegramChargeID = chargeID
	return true, nil
}

func (f *fakePaymentStore) ReportSince(ctx context.Context, since time.Time) (*models.PaymentsReport, error) {
	report := &models.PaymentsReport{}
	for _, p := range f.byPayload {
		if p.Status == models.PaymentSuccess {
			report.Total++
			report.SumStars += p.AmountStars
			report.SumCredits += p.Credits
		}
	}
	return report, nil
}

type fakeAccountGetter struct {
	account models.Account
}

func (f *fakeAccountGetter) GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.Account, error) {
	clone := f.account
	clone.TelegramID = telegramID
	return &clone, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paymentTestConfig() config.Config {
	return config.Config{SettlementCurrency: "XTR"}
}

func TestCreatePendingPayment(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	payment, err := svc.CreatePendingPayment(context.Background(), 42, "photoshoot_5")
	require.NoError(t, err)

	assert.Equal(t, int64(42), payment.TelegramID)
	assert.Equal(t, 450, payment.AmountStars)
	assert.Equal(t, 5, payment.Credits)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.True(t, strings.HasPrefix(payment.Payload, "stars:photoshoot_5:"))
}

func TestCreatePendingPaymentUnknownOffer(t *testing.T) {
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), newFakePaymentStore(), &fakeAccountGetter{})

	_, err := svc.CreatePendingPayment(context.Background(), 42, "nope")
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestPayloadsAreUnique(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		payment, err := svc.CreatePendingPayment(context.Background(), 1, "photoshoot_1")
		require.NoError(t, err)
		require.False(t, seen[payment.Payload], "payload collision")
		seen[payment.Payload] = true
	}
}

func TestSettleCreditsExactlyOnce(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	payment, err := svc.CreatePendingPayment(context.Background(), 42, "photoshoot_5")
	require.NoError(t, err)

	first, err := svc.Settle(context.Background(), payment.Payload, "charge-1", 450, "XTR")
	require.NoError(t, err)
	assert.False(t, first.AlreadySettled)
	assert.Equal(t, models.PaymentSuccess, first.Payment.Status)

	// Telegram redelivers the same notification.
	second, err := svc.Settle(context.Background(), payment.Payload, "charge-1", 450, "XTR")
	require.NoError(t, err)
	assert.True(t, second.AlreadySettled)

	assert.Equal(t, 1, store.grants, "credits must be granted exactly once")
}

func TestSettleLostRaceReturnsSettledRecord(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	payment, err := svc.CreatePendingPayment(context.Background(), 42, "photoshoot_5")
	require.NoError(t, err)

	// The rival delivery flips the record to success between this call's
	// payload read and its conditional transition.
	store.raceChargeID = "rival-charge"

	settlement, err := svc.Settle(context.Background(), payment.Payload, "charge-1", 450, "XTR")
	require.NoError(t, err)

	assert.True(t, settlement.AlreadySettled)
	assert.Equal(t, models.PaymentSuccess, settlement.Payment.Status)
	assert.Equal(t, "rival-charge", settlement.Payment.TelegramChargeID)
	assert.Equal(t, 0, store.grants, "the loser must not grant credits")
}

func TestSettleCurrencyMismatch(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	payment, err := svc.CreatePendingPayment(context.Background(), 42, "photoshoot_1")
	require.NoError(t, err)

	_, err = svc.Settle(context.Background(), payment.Payload, "charge-1", 100, "USD")
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Equal(t, 0, store.grants)
}

func TestSettleUnknownPayload(t *testing.T) {
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), newFakePaymentStore(), &fakeAccountGetter{})

	_, err := svc.Settle(context.Background(), "stars:photoshoot_1:deadbeef", "charge-1", 100, "XTR")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestSettleAmountMismatchFailsPayment(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	payment, err := svc.CreatePendingPayment(context.Background(), 42, "photoshoot_5")
	require.NoError(t, err)

	_, err = svc.Settle(context.Background(), payment.Payload, "charge-1", 100, "XTR")
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, 0, store.grants)
	require.Len(t, store.failed, 1)

	// A later correct-looking delivery must not resurrect a failed payment.
	_, err = svc.Settle(context.Background(), payment.Payload, "charge-2", 450, "XTR")
	assert.Error(t, err)
	assert.Equal(t, 0, store.grants)
}

func TestPaymentReportDefaultsDays(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(paymentTestConfig(), discardLogger(), store, &fakeAccountGetter{})

	payment, err := svc.CreatePendingPayment(context.Background(), 42, "photoshoot_10")
	require.NoError(t, err)
	_, err = svc.Settle(context.Background(), payment.Payload, "charge-1", 800, "XTR")
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Days)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 800, report.SumStars)
	assert.Equal(t, 10, report.SumCredits)
}
