package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/arthaus/photoshoot-bot/internal/models"
	"github.com/arthaus/photoshoot-bot/internal/repository"
)

var ErrSuperAdminImmutable = errors.New("super admin flag cannot be changed")

// AccountService wraps the account repository with the super-admin rule.
type AccountService struct {
	accounts     *repository.AccountRepository
	superAdminID int64
}

func NewAccountService(accounts *repository.AccountRepository, superAdminID int64) *AccountService {
	return &AccountService{accounts: accounts, superAdminID: superAdminID}
}

func (s *AccountService) Ensure(ctx context.Context, telegramID int64, username string) (*models.Account, error) {
	account, err := s.accounts.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return account, nil
}

func (s *AccountService) AdjustCredits(ctx context.Context, telegramID int64, delta int) (*models.Account, error) {
	return s.accounts.AdjustCredits(ctx, telegramID, delta)
}

func (s *AccountService) AdjustBalance(ctx context.Context, telegramID int64, delta int) (*models.Account, error) {
	return s.accounts.AdjustBalance(ctx, telegramID, delta)
}

func (s *AccountService) ListPage(ctx context.Context, page, pageSize int) ([]models.Account, int, error) {
	return s.accounts.ListPage(ctx, page, pageSize)
}

func (s *AccountService) Search(ctx context.Context, query string) ([]models.Account, error) {
	return s.accounts.Search(ctx, query)
}

// IsAdmin checks the stored flag; the configured super admin always passes.
func (s *AccountService) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	if s.superAdminID != 0 && telegramID == s.superAdminID {
		return true, nil
	}
	return s.accounts.IsAdmin(ctx, telegramID)
}

// SetAdminFlag toggles the admin flag. The super admin is not stored in the
// database and cannot be demoted.
func (s *AccountService) SetAdminFlag(ctx context.Context, telegramID int64, isAdmin bool) (*models.Account, error) {
	if s.superAdminID != 0 && telegramID == s.superAdminID {
		return nil, ErrSuperAdminImmutable
	}
	return s.accounts.SetAdminFlag(ctx, telegramID, isAdmin)
}

// AdminIDs returns all admin telegram ids including the super admin.
func (s *AccountService) AdminIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.accounts.ListAdminIDs(ctx)
	if err != nil {
		return nil, err
	}
	if s.superAdminID != 0 {
		found := false
		for _, id := range ids {
			if id == s.superAdminID {
				found = true
				break
			}
		}
		if !found {
			ids = append(ids, s.superAdminID)
		}
	}
	return ids, nil
}
