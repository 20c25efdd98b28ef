package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arthaus/photoshoot-bot/internal/models"
)

const styleColumns = `id, title, description, prompt, image_filename, is_active, created_at`

type StyleRepository struct {
	db *sql.DB
}

func NewStyleRepository(db *sql.DB) *StyleRepository {
	return &StyleRepository{db: db}
}

func scanStyle(row interface{ Scan(...any) error }) (*models.StylePrompt, error) {
	var s models.StylePrompt
	var active int
	if err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Prompt, &s.ImageFilename, &active, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.IsActive = active != 0
	return &s, nil
}

func (r *StyleRepository) List(ctx context.Context) ([]models.StylePrompt, error) {
	query := `SELECT ` + styleColumns + ` FROM style_prompts ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list styles: %w", err)
	}
	defer rows.Close()

	var styles []models.StylePrompt
	for rows.Next() {
		style, err := scanStyle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan style list: %w", err)
		}
		styles = append(styles, *style)
	}
	return styles, rows.Err()
}

func (r *StyleRepository) GetByID(ctx context.Context, id int64) (*models.StylePrompt, error) {
	query := `SELECT ` + styleColumns + ` FROM style_prompts WHERE id = ?`
	style, err := scanStyle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get style: %w", err)
	}
	return style, nil
}

func (r *StyleRepository) Create(ctx context.Context, style *models.StylePrompt) (*models.StylePrompt, error) {
	const query = `
INSERT INTO style_prompts (title, description, prompt, image_filename, is_active)
VALUES (?, ?, ?, ?, ?)`
	active := 0
	if style.IsActive {
		active = 1
	}
	res, err := r.db.ExecContext(ctx, query, style.Title, style.Description, style.Prompt, style.ImageFilename, active)
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("style last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *StyleRepository) Update(ctx context.Context, style *models.StylePrompt) (*models.StylePrompt, error) {
	const query = `
UPDATE style_prompts
SET title = ?, description = ?, prompt = ?, image_filename = ?, is_active = ?
WHERE id = ?`
	active := 0
	if style.IsActive {
		active = 1
	}
	if _, err := r.db.ExecContext(ctx, query, style.Title, style.Description, style.Prompt, style.ImageFilename, active, style.ID); err != nil {
		return nil, fmt.Errorf("update style: %w", err)
	}
	return r.GetByID(ctx, style.ID)
}

// Deactivate hides a style from the carousel. Styles are never hard-deleted
// because audit rows reference them by title.
func (r *StyleRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE style_prompts SET is_active = 0 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate style: %w", err)
	}
	return nil
}

func (r *StyleRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM style_prompts WHERE is_active = 1`
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active styles: %w", err)
	}
	return count, nil
}

// ByOffset returns the offset-th active style in id order. Backs the
// carousel: 0th, 1st, 2nd and so on.
func (r *StyleRepository) ByOffset(ctx context.Context, offset int) (*models.StylePrompt, error) {
	query := `SELECT ` + styleColumns + ` FROM style_prompts WHERE is_active = 1 ORDER BY id ASC LIMIT 1 OFFSET ?`
	style, err := scanStyle(r.db.QueryRowContext(ctx, query, offset))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("style by offset: %w", err)
	}
	return style, nil
}
