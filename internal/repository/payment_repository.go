package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arthaus/photoshoot-bot/internal/models"
)

const paymentColumns = `id, telegram_id, offer_code, amount_stars, credits, status, payload, COALESCE(telegram_charge_id, ''), created_at, COALESCE(updated_at, created_at)`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row interface{ Scan(...any) error }) (*models.StarPayment, error) {
	var p models.StarPayment
	if err := row.Scan(&p.ID, &p.TelegramID, &p.OfferCode, &p.AmountStars, &p.Credits, &p.Status, &p.Payload, &p.TelegramChargeID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) CreatePending(ctx context.Context, payment *models.StarPayment) error {
	const query = `
INSERT INTO star_payments (telegram_id, offer_code, amount_stars, credits, status, payload)
VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, payment.TelegramID, payment.OfferCode, payment.AmountStars, payment.Credits, models.PaymentPending, payment.Payload)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("payment last insert id: %w", err)
	}
	payment.ID = id
	payment.Status = models.PaymentPending
	return nil
}

func (r *PaymentRepository) FindByPayload(ctx context.Context, payload string) (*models.StarPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM star_payments WHERE payload = ?`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, payload))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return payment, nil
}

// MarkFailed transitions a pending payment to failed. An already-settled
// record is left untouched.
func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID int64) error {
	const query = `
UPDATE star_payments SET status = ?, updated_at = NOW()
WHERE id = ? AND status = ?`
	if _, err := r.db.ExecContext(ctx, query, models.PaymentFailed, paymentID, models.PaymentPending); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// SettleAndCredit marks the payment successful and grants its credits to the
// account in a single transaction. The status UPDATE is guarded on
// status='pending', so a duplicate delivery racing a first one observes zero
// affected rows and credits nothing; the bool result reports whether this
// call performed the grant.
func (r *PaymentRepository) SettleAndCredit(ctx context.Context, payment *models.StarPayment, chargeID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback()

	const settle = `
UPDATE star_payments SET status = ?, telegram_charge_id = ?, updated_at = NOW()
WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, settle, models.PaymentSuccess, chargeID, payment.ID, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("settle payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("settle rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	// The account may not exist yet if the user paid before any other
	// recorded activity.
	const ensure = `INSERT INTO accounts (telegram_id) VALUES (?) ON DUPLICATE KEY UPDATE telegram_id = telegram_id`
	if _, err := tx.ExecContext(ctx, ensure, payment.TelegramID); err != nil {
		return false, fmt.Errorf("ensure account: %w", err)
	}

	const credit = `
UPDATE accounts SET photoshoot_credits = photoshoot_credits + ?, updated_at = NOW()
WHERE telegram_id = ?`
	if _, err := tx.ExecContext(ctx, credit, payment.Credits, payment.TelegramID); err != nil {
		return false, fmt.Errorf("grant credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit settle tx: %w", err)
	}

	payment.Status = models.PaymentSuccess
	payment.TelegramChargeID = chargeID
	return true, nil
}

// ReportSince aggregates successful settlements created at or after since.
func (r *PaymentRepository) ReportSince(ctx context.Context, since time.Time) (*models.PaymentsReport, error) {
	const query = `
SELECT COUNT(*), COALESCE(SUM(amount_stars), 0), COALESCE(SUM(credits), 0)
FROM star_payments
WHERE created_at >= ? AND status = ?`
	var report models.PaymentsReport
	row := r.db.QueryRowContext(ctx, query, since, models.PaymentSuccess)
	if err := row.Scan(&report.Total, &report.SumStars, &report.SumCredits); err != nil {
		return nil, fmt.Errorf("payments report: %w", err)
	}
	return &report, nil
}
