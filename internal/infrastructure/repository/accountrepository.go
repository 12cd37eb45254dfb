// Package repository implements the domain repository interfaces using GORM
// with Model/Mapper separation.
package repository

import (
	"fmt"

	"gorm.io/gorm"

	"mingle/internal/domain/integration"
	"mingle/internal/infrastructure/persistence/mappers"
	"mingle/internal/infrastructure/persistence/models"
	"mingle/internal/shared/errors"
)

// AccountRepository implements integration.Repository.
type AccountRepository struct {
	db     *gorm.DB
	mapper mappers.AccountMapper
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) integration.Repository {
	return &AccountRepository{
		db:     db,
		mapper: mappers.NewAccountMapper(),
	}
}

func (r *AccountRepository) Create(account *integration.Account) error {
	model := r.mapper.ToModel(account)
	if err := r.db.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("integration already connected")
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	// Sync auto-generated ID back to the domain entity
	account.ID = model.ID
	return nil
}

func (r *AccountRepository) GetByUIDAndProvider(uid, provider string) (*integration.Account, error) {
	var model models.AccountModel
	err := r.db.Where("uid = ? AND provider = ?", uid, provider).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("integration account not found")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return r.mapper.ToDomain(&model), nil
}

func (r *AccountRepository) ListByStatus(status integration.ConnectionStatus) ([]*integration.Account, error) {
	var accountModels []*models.AccountModel
	err := r.db.Where("connection_status = ?", string(status)).
		Order("last_sync_at IS NULL DESC, last_sync_at ASC").
		Find(&accountModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts by status: %w", err)
	}
	return r.mapper.ToDomainList(accountModels), nil
}

func (r *AccountRepository) Update(account *integration.Account) error {
	model := r.mapper.ToModel(account)
	result := r.db.Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("integration account not found")
	}
	return nil
}

func (r *AccountRepository) Delete(uid, provider string) error {
	result := r.db.Where("uid = ? AND provider = ?", uid, provider).
		Delete(&models.AccountModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("integration account not found")
	}
	return nil
}
