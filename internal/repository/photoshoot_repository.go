package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arthaus/photoshoot-bot/internal/models"
)

type PhotoshootRepository struct {
	db *sql.DB
}

func NewPhotoshootRepository(db *sql.DB) *PhotoshootRepository {
	return &PhotoshootRepository{db: db}
}

// Log appends one audit record. Rows are write-once; nothing ever updates or
// deletes them.
func (r *PhotoshootRepository) Log(ctx context.Context, entry *models.PhotoshootLog) error {
	const query = `
INSERT INTO photoshoot_logs (telegram_id, style_title, status, cost_units, cost_credits, provider, error_message)
VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, entry.TelegramID, entry.StyleTitle, entry.Status, entry.CostUnits, entry.CostCredits, entry.Provider, entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert photoshoot log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("photoshoot log last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ReportSince aggregates generation attempts created at or after since.
func (r *PhotoshootRepository) ReportSince(ctx context.Context, since time.Time) (*models.PhotoshootReport, error) {
	const query = `
SELECT
    COUNT(*),
    COALESCE(SUM(status = 'success'), 0),
    COALESCE(SUM(status = 'failed'), 0),
    COALESCE(SUM(cost_units), 0),
    COALESCE(SUM(cost_credits), 0)
FROM photoshoot_logs
WHERE created_at >= ?`
	var report models.PhotoshootReport
	row := r.db.QueryRowContext(ctx, query, since)
	if err := row.Scan(&report.Total, &report.Success, &report.Failed, &report.SumCostUnits, &report.SumCostCredits); err != nil {
		return nil, fmt.Errorf("photoshoot report: %w", err)
	}
	return &report, nil
}
