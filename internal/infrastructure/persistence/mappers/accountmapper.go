package mappers

import (
	"mingle/internal/domain/integration"
	"mingle/internal/infrastructure/persistence/models"
)

// AccountMapper handles conversion between domain accounts and persistence models.
type AccountMapper interface {
	ToModel(entity *integration.Account) *models.AccountModel
	ToDomain(model *models.AccountModel) *integration.Account
	ToDomainList(models []*models.AccountModel) []*integration.Account
}

type accountMapperImpl struct{}

// NewAccountMapper creates a new AccountMapper.
func NewAccountMapper() AccountMapper {
	return &accountMapperImpl{}
}

func (m *accountMapperImpl) ToModel(entity *integration.Account) *models.AccountModel {
	if entity == nil {
		return nil
	}
	return &models.AccountModel{
		ID:                    entity.ID,
		UID:                   entity.UID,
		Provider:              entity.Provider,
		EncryptedAccessToken:  entity.EncryptedAccessToken,
		EncryptedRefreshToken: entity.EncryptedRefreshToken,
		EncryptedFeedURL:      entity.EncryptedFeedURL,
		FeedURLHash:           entity.FeedURLHash,
		TokenExpiresAt:        entity.TokenExpiresAt,
		ConnectionStatus:      string(entity.ConnectionStatus),
		LastSyncAt:            entity.LastSyncAt,
		LastError:             entity.LastError,
		ErrorCount:            entity.ErrorCount,
		BackoffUntil:          entity.BackoffUntil,
		MirrorEnabled:         entity.MirrorEnabled,
		MirrorCalendarID:      entity.MirrorCalendarID,
		CreatedAt:             entity.CreatedAt,
		UpdatedAt:             entity.UpdatedAt,
	}
}

func (m *accountMapperImpl) ToDomain(model *models.AccountModel) *integration.Account {
	if model == nil {
		return nil
	}
	return &integration.Account{
		ID:                    model.ID,
		UID:                   model.UID,
		Provider:              model.Provider,
		EncryptedAccessToken:  model.EncryptedAccessToken,
		EncryptedRefreshToken: model.EncryptedRefreshToken,
		EncryptedFeedURL:      model.EncryptedFeedURL,
		FeedURLHash:           model.FeedURLHash,
		TokenExpiresAt:        model.TokenExpiresAt,
		ConnectionStatus:      integration.ConnectionStatus(model.ConnectionStatus),
		LastSyncAt:            model.LastSyncAt,
		LastError:             model.LastError,
		ErrorCount:            model.ErrorCount,
		BackoffUntil:          model.BackoffUntil,
		MirrorEnabled:         model.MirrorEnabled,
		MirrorCalendarID:      model.MirrorCalendarID,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

func (m *accountMapperImpl) ToDomainList(items []*models.AccountModel) []*integration.Account {
	if items == nil {
		return nil
	}
	result := make([]*integration.Account, 0, len(items))
	for _, item := range items {
		result = append(result, m.ToDomain(item))
	}
	return result
}
