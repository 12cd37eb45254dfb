package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"mingle/internal/domain/meeting"
	"mingle/internal/infrastructure/persistence/mappers"
	"mingle/internal/infrastructure/persistence/models"
	"mingle/internal/shared/errors"
)

// MeetingRepository implements meeting.Repository.
type MeetingRepository struct {
	db     *gorm.DB
	mapper mappers.MeetingMapper
}

// NewMeetingRepository creates a new MeetingRepository.
func NewMeetingRepository(db *gorm.DB) meeting.Repository {
	return &MeetingRepository{
		db:     db,
		mapper: mappers.NewMeetingMapper(),
	}
}

func (r *MeetingRepository) Create(m *meeting.Meeting) error {
	model := r.mapper.ToModel(m)
	if err := r.db.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("meeting already exists")
		}
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	m.ID = model.ID
	return nil
}

func (r *MeetingRepository) Update(m *meeting.Meeting) error {
	model := r.mapper.ToModel(m)
	result := r.db.Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update meeting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("meeting not found")
	}
	return nil
}

func (r *MeetingRepository) GetByExternalID(ownerUID, provider, externalID string) (*meeting.Meeting, error) {
	var model models.MeetingModel
	err := r.db.Where("owner_uid = ? AND provider = ? AND external_id = ?", ownerUID, provider, externalID).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return r.mapper.ToDomain(&model), nil
}

func (r *MeetingRepository) ListByOwner(ownerUID, provider string) ([]*meeting.Meeting, error) {
	var meetingModels []*models.MeetingModel
	err := r.db.Where("owner_uid = ? AND provider = ?", ownerUID, provider).
		Order("start ASC").
		Find(&meetingModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return r.mapper.ToDomainList(meetingModels), nil
}

func (r *MeetingRepository) ListActiveByOwner(ownerUID, provider string) ([]*meeting.Meeting, error) {
	var meetingModels []*models.MeetingModel
	err := r.db.Where("owner_uid = ? AND provider = ? AND status NOT IN ?",
		ownerUID, provider, []string{string(meeting.StatusCanceled), string(meeting.StatusDeclined)}).
		Order("start ASC").
		Find(&meetingModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active meetings: %w", err)
	}
	return r.mapper.ToDomainList(meetingModels), nil
}

func (r *MeetingRepository) CountActiveByOwner(ownerUID, provider string) (int64, error) {
	var count int64
	err := r.db.Model(&models.MeetingModel{}).
		Where("owner_uid = ? AND provider = ? AND status NOT IN ?",
			ownerUID, provider, []string{string(meeting.StatusCanceled), string(meeting.StatusDeclined)}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active meetings: %w", err)
	}
	return count, nil
}

func (r *MeetingRepository) CancelAllByOwner(ownerUID, provider string) error {
	err := r.db.Model(&models.MeetingModel{}).
		Where("owner_uid = ? AND provider = ? AND status != ?",
			ownerUID, provider, string(meeting.StatusCanceled)).
		Updates(map[string]interface{}{
			"status":     string(meeting.StatusCanceled),
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to cancel meetings: %w", err)
	}
	return nil
}

func (r *MeetingRepository) DeleteByOwner(ownerUID, provider string) error {
	err := r.db.Where("owner_uid = ? AND provider = ?", ownerUID, provider).
		Delete(&models.MeetingModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete meetings: %w", err)
	}
	return nil
}
