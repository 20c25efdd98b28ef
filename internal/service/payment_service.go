package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arthaus/photoshoot-bot/internal/catalog"
	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/metrics"
	"github.com/arthaus/photoshoot-bot/internal/models"
)

var (
	ErrOfferNotFound    = errors.New("offer not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCurrencyMismatch = errors.New("unexpected settlement currency")
	ErrAmountMismatch   = errors.New("settled amount does not match offer price")
)

// PaymentStore is the slice of the payment repository the reconciler needs.
type PaymentStore interface {
	CreatePending(ctx context.Context, payment *models.StarPayment) error
	FindByPayload(ctx context.Context, payload string) (*models.StarPayment, error)
	MarkFailed(ctx context.Context, paymentID int64) error
	SettleAndCredit(ctx context.Context, payment *models.StarPayment, chargeID string) (bool, error)
	ReportSince(ctx context.Context, since time.Time) (*models.PaymentsReport, error)
}

type AccountGetter interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.Account, error)
}

// PaymentService turns purchase requests into pending records and settlement
// notifications into exactly one credit grant each.
type PaymentService struct {
	cfg      config.Config
	log      *slog.Logger
	payments PaymentStore
	accounts AccountGetter
}

func NewPaymentService(cfg config.Config, log *slog.Logger, payments PaymentStore, accounts AccountGetter) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		log:      log,
		payments: payments,
		accounts: accounts,
	}
}

// Settlement is the outcome of processing one settlement notification.
type Settlement struct {
	Account *models.Account
	Payment *models.StarPayment
	// AlreadySettled marks a duplicate delivery: the prior result is
	// returned and no credits moved.
	AlreadySettled bool
}

// CreatePendingPayment inserts a pending record with a fresh payload token
// for the given offer.
func (s *PaymentService) CreatePendingPayment(ctx context.Context, telegramID int64, offerCode string) (*models.StarPayment, error) {
	offer, ok := catalog.OfferByCode(offerCode)
	if !ok {
		return nil, ErrOfferNotFound
	}

	payload, err := newPayload(offer.Code)
	if err != nil {
		return nil, err
	}

	payment := &models.StarPayment{
		TelegramID:  telegramID,
		OfferCode:   offer.Code,
		AmountStars: offer.AmountStars,
		Credits:     offer.Credits,
		Status:      models.PaymentPending,
		Payload:     payload,
	}
	if err := s.payments.CreatePending(ctx, payment); err != nil {
		return nil, fmt.Errorf("create pending payment: %w", err)
	}
	return payment, nil
}

// Settle applies one settlement notification. Duplicate deliveries of the
// same payload return the prior outcome without a second credit grant.
func (s *PaymentService) Settle(ctx context.Context, payload, chargeID string, amount int, currency string) (*Settlement, error) {
	if currency != s.cfg.SettlementCurrency {
		metrics.SettlementsTotal.WithLabelValues("currency_mismatch").Inc()
		return nil, ErrCurrencyMismatch
	}

	payment, err := s.payments.FindByPayload(ctx, payload)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		metrics.SettlementsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrPaymentNotFound
	}

	switch payment.Status {
	case models.PaymentSuccess:
		account, err := s.accounts.GetOrCreate(ctx, payment.TelegramID, "")
		if err != nil {
			return nil, err
		}
		metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()
		return &Settlement{Account: account, Payment: payment, AlreadySettled: true}, nil
	case models.PaymentFailed:
		// Terminal; transitions are never reversed.
		return nil, fmt.Errorf("payment %s already failed: %w", payment.Payload, ErrPaymentNotFound)
	}

	if amount != payment.AmountStars {
		if err := s.payments.MarkFailed(ctx, payment.ID); err != nil {
			return nil, err
		}
		s.log.Error("settlement amount mismatch", "payload", payload, "reported", amount, "expected", payment.AmountStars)
		metrics.SettlementsTotal.WithLabelValues("amount_mismatch").Inc()
		return nil, ErrAmountMismatch
	}

	credited, err := s.payments.SettleAndCredit(ctx, payment, chargeID)
	if err != nil {
		return nil, err
	}
	if credited {
		metrics.SettlementsTotal.WithLabelValues("credited").Inc()
	} else {
		// A concurrent delivery won the conditional transition; reply with
		// the record as the winner left it, not the stale pending read.
		metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()
		refreshed, err := s.payments.FindByPayload(ctx, payment.Payload)
		if err != nil {
			return nil, err
		}
		if refreshed != nil {
			payment = refreshed
		}
	}

	account, err := s.accounts.GetOrCreate(ctx, payment.TelegramID, "")
	if err != nil {
		return nil, err
	}
	return &Settlement{Account: account, Payment: payment, AlreadySettled: !credited}, nil
}

// Report aggregates successful settlements over the trailing N days.
func (s *PaymentService) Report(ctx context.Context, days int) (*models.PaymentsReport, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	report, err := s.payments.ReportSince(ctx, since)
	if err != nil {
		return nil, err
	}
	report.Days = days
	return report, nil
}

// newPayload builds the invoice correlation token. The random part comes
// from crypto/rand so payloads cannot collide or be guessed.
func newPayload(offerCode string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("payload entropy: %w", err)
	}
	return fmt.Sprintf("stars:%s:%s", offerCode, hex.EncodeToString(buf)), nil
}
