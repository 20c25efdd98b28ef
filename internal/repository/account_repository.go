package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arthaus/photoshoot-bot/internal/models"
)

const accountColumns = `id, telegram_id, COALESCE(username, ''), balance, photoshoot_credits, is_admin, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	var isAdmin int
	if err := row.Scan(&a.ID, &a.TelegramID, &a.Username, &a.Balance, &a.PhotoshootCredits, &isAdmin, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.IsAdmin = isAdmin != 0
	return &a, nil
}

func (r *AccountRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE telegram_id = ?`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

// GetOrCreate returns the account for telegramID, creating it with zero
// balances on first contact. A changed username is written back.
func (r *AccountRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.Account, error) {
	account, err := r.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if username != "" && account.Username != username {
			const update = `UPDATE accounts SET username = ?, updated_at = NOW() WHERE id = ?`
			if _, err := r.db.ExecContext(ctx, update, username, account.ID); err != nil {
				return nil, fmt.Errorf("update username: %w", err)
			}
			account.Username = username
		}
		return account, nil
	}

	const insert = `INSERT INTO accounts (telegram_id, username) VALUES (?, NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, insert, telegramID, username); err != nil {
		// Lost a creation race; the row exists now.
		if existing, ferr := r.FindByTelegramID(ctx, telegramID); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return r.FindByTelegramID(ctx, telegramID)
}

// AdjustCredits applies delta to photoshoot_credits, clamped at zero.
// Returns nil without error when the account does not exist; admin
// adjustments never auto-create accounts.
func (r *AccountRepository) AdjustCredits(ctx context.Context, telegramID int64, delta int) (*models.Account, error) {
	return r.adjust(ctx, telegramID, "photoshoot_credits", delta)
}

// AdjustBalance applies delta to balance, clamped at zero. Same contract as
// AdjustCredits.
func (r *AccountRepository) AdjustBalance(ctx context.Context, telegramID int64, delta int) (*models.Account, error) {
	return r.adjust(ctx, telegramID, "balance", delta)
}

func (r *AccountRepository) adjust(ctx context.Context, telegramID int64, column string, delta int) (*models.Account, error) {
	query := fmt.Sprintf(`UPDATE accounts SET %s = GREATEST(%s + ?, 0), updated_at = NOW() WHERE telegram_id = ?`, column, column)
	res, err := r.db.ExecContext(ctx, query, delta, telegramID)
	if err != nil {
		return nil, fmt.Errorf("adjust %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("adjust %s rows affected: %w", column, err)
	}
	if affected == 0 {
		// MySQL reports zero affected rows for no-op updates too, so confirm
		// the account really is missing before reporting it as such.
		account, err := r.FindByTelegramID(ctx, telegramID)
		if err != nil || account == nil {
			return nil, err
		}
		return account, nil
	}
	return r.FindByTelegramID(ctx, telegramID)
}

// TryDebit atomically charges one generation attempt: a photoshoot credit if
// any remain, otherwise priceUnits from the balance. Pre-purchased bundles
// are consumed before ad-hoc balance. No mutation happens when neither pool
// covers the price.
func (r *AccountRepository) TryDebit(ctx context.Context, telegramID int64, priceUnits int) (models.DebitOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.DebitOutcome{}, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback()

	const debitCredit = `
UPDATE accounts SET photoshoot_credits = photoshoot_credits - 1, updated_at = NOW()
WHERE telegram_id = ? AND photoshoot_credits > 0`
	res, err := tx.ExecContext(ctx, debitCredit, telegramID)
	if err != nil {
		return models.DebitOutcome{}, fmt.Errorf("debit credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.DebitOutcome{}, fmt.Errorf("debit credit rows affected: %w", err)
	}
	if affected > 0 {
		if err := tx.Commit(); err != nil {
			return models.DebitOutcome{}, fmt.Errorf("commit debit tx: %w", err)
		}
		return models.DebitOutcome{OK: true, CostCredits: 1}, nil
	}

	const debitBalance = `
UPDATE accounts SET balance = balance - ?, updated_at = NOW()
WHERE telegram_id = ? AND balance >= ?`
	res, err = tx.ExecContext(ctx, debitBalance, priceUnits, telegramID, priceUnits)
	if err != nil {
		return models.DebitOutcome{}, fmt.Errorf("debit balance: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return models.DebitOutcome{}, fmt.Errorf("debit balance rows affected: %w", err)
	}
	if affected > 0 {
		if err := tx.Commit(); err != nil {
			return models.DebitOutcome{}, fmt.Errorf("commit debit tx: %w", err)
		}
		return models.DebitOutcome{OK: true, CostUnits: priceUnits}, nil
	}

	return models.DebitOutcome{}, nil
}

// SetAdminFlag toggles is_admin. Returns nil when the account does not exist.
func (r *AccountRepository) SetAdminFlag(ctx context.Context, telegramID int64, isAdmin bool) (*models.Account, error) {
	value := 0
	if isAdmin {
		value = 1
	}
	const query = `UPDATE accounts SET is_admin = ?, updated_at = NOW() WHERE telegram_id = ?`
	if _, err := r.db.ExecContext(ctx, query, value, telegramID); err != nil {
		return nil, fmt.Errorf("set admin flag: %w", err)
	}
	return r.FindByTelegramID(ctx, telegramID)
}

func (r *AccountRepository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	const query = `SELECT is_admin FROM accounts WHERE telegram_id = ?`
	var isAdmin int
	if err := r.db.QueryRowContext(ctx, query, telegramID).Scan(&isAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check admin flag: %w", err)
	}
	return isAdmin != 0, nil
}

func (r *AccountRepository) ListAdminIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT telegram_id FROM accounts WHERE is_admin = 1`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPage returns one page of accounts ordered by creation time descending,
// plus the total account count.
func (r *AccountRepository) ListPage(ctx context.Context, page, pageSize int) ([]models.Account, int, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan account page: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, total, rows.Err()
}

// Search finds accounts by exact telegram id (numeric query) or
// case-insensitive exact username. A leading @ is stripped.
func (r *AccountRepository) Search(ctx context.Context, query string) ([]models.Account, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		account, err := r.FindByTelegramID(ctx, id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, nil
		}
		return []models.Account{*account}, nil
	}

	q = strings.TrimPrefix(q, "@")
	sel := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER(?)`
	rows, err := r.db.QueryContext(ctx, sel, q)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account search: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}
