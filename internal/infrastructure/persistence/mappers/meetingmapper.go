package mappers

import (
	"encoding/json"

	"mingle/internal/domain/meeting"
	"mingle/internal/infrastructure/persistence/models"
)

// MeetingMapper handles conversion between domain meetings and persistence models.
type MeetingMapper interface {
	ToModel(entity *meeting.Meeting) *models.MeetingModel
	ToDomain(model *models.MeetingModel) *meeting.Meeting
	ToDomainList(models []*models.MeetingModel) []*meeting.Meeting
}

type meetingMapperImpl struct{}

// NewMeetingMapper creates a new MeetingMapper.
func NewMeetingMapper() MeetingMapper {
	return &meetingMapperImpl{}
}

func (m *meetingMapperImpl) ToModel(entity *meeting.Meeting) *models.MeetingModel {
	if entity == nil {
		return nil
	}

	participants := ""
	if len(entity.Participants) > 0 {
		if raw, err := json.Marshal(entity.Participants); err == nil {
			participants = string(raw)
		}
	}

	return &models.MeetingModel{
		ID:           entity.ID,
		OwnerUID:     entity.OwnerUID,
		Provider:     entity.Provider,
		ExternalID:   entity.ExternalID,
		Title:        entity.Title,
		Start:        entity.Start,
		End:          entity.End,
		TimeZone:     entity.TimeZone,
		Location:     entity.Location,
		Latitude:     entity.Latitude,
		Longitude:    entity.Longitude,
		Participants: participants,
		Status:       string(entity.Status),
		Notes:        entity.Notes,
		MirrorRef:    entity.MirrorRef,
		LastSeenAt:   entity.LastSeenAt,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
}

func (m *meetingMapperImpl) ToDomain(model *models.MeetingModel) *meeting.Meeting {
	if model == nil {
		return nil
	}

	var participants []string
	if model.Participants != "" {
		// A malformed column yields an empty list rather than a failure.
		_ = json.Unmarshal([]byte(model.Participants), &participants)
	}

	return &meeting.Meeting{
		ID:           model.ID,
		OwnerUID:     model.OwnerUID,
		Provider:     model.Provider,
		ExternalID:   model.ExternalID,
		Title:        model.Title,
		Start:        model.Start,
		End:          model.End,
		TimeZone:     model.TimeZone,
		Location:     model.Location,
		Latitude:     model.Latitude,
		Longitude:    model.Longitude,
		Participants: participants,
		Status:       meeting.Status(model.Status),
		Notes:        model.Notes,
		MirrorRef:    model.MirrorRef,
		LastSeenAt:   model.LastSeenAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func (m *meetingMapperImpl) ToDomainList(items []*models.MeetingModel) []*meeting.Meeting {
	if items == nil {
		return nil
	}
	result := make([]*meeting.Meeting, 0, len(items))
	for _, item := range items {
		result = append(result, m.ToDomain(item))
	}
	return result
}
