package service

import (
	"context"
	"fmt"

	"github.com/arthaus/photoshoot-bot/internal/models"
	"github.com/arthaus/photoshoot-bot/internal/repository"
)

type StyleService struct {
	repo *repository.StyleRepository
}

type CreateStyleInput struct {
	Title         string
	Description   string
	Prompt        string
	ImageFilename string
}

type UpdateStyleInput struct {
	Title         *string
	Description   *string
	Prompt        *string
	ImageFilename *string
	IsActive      *bool
}

func NewStyleService(repo *repository.StyleRepository) *StyleService {
	return &StyleService{repo: repo}
}

func (s *StyleService) List(ctx context.Context) ([]models.StylePrompt, error) {
	return s.repo.List(ctx)
}

func (s *StyleService) GetByID(ctx context.Context, id int64) (*models.StylePrompt, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *StyleService) Create(ctx context.Context, input CreateStyleInput) (*models.StylePrompt, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if input.ImageFilename == "" {
		input.ImageFilename = "1.jpeg"
	}
	style := models.StylePrompt{
		Title:         input.Title,
		Description:   input.Description,
		Prompt:        input.Prompt,
		ImageFilename: input.ImageFilename,
		IsActive:      true,
	}
	return s.repo.Create(ctx, &style)
}

func (s *StyleService) Update(ctx context.Context, id int64, input UpdateStyleInput) (*models.StylePrompt, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("style not found")
	}
	if input.Title != nil && *input.Title != "" {
		existing.Title = *input.Title
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Prompt != nil && *input.Prompt != "" {
		existing.Prompt = *input.Prompt
	}
	if input.ImageFilename != nil && *input.ImageFilename != "" {
		existing.ImageFilename = *input.ImageFilename
	}
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	return s.repo.Update(ctx, existing)
}

func (s *StyleService) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *StyleService) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

func (s *StyleService) ByOffset(ctx context.Context, offset int) (*models.StylePrompt, error) {
	return s.repo.ByOffset(ctx, offset)
}
