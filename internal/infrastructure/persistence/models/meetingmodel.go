package models

import "time"

// MeetingModel is the database persistence model for canonical meetings.
// Uniqueness is enforced on (owner_uid, provider, external_id).
type MeetingModel struct {
	ID         uint   `gorm:"primarykey"`
	OwnerUID   string `gorm:"not null;size:64;uniqueIndex:idx_meeting_owner_external;index:idx_meeting_owner_status"`
	Provider   string `gorm:"not null;size:32;uniqueIndex:idx_meeting_owner_external"`
	ExternalID string `gorm:"not null;size:255;uniqueIndex:idx_meeting_owner_external"`

	Title        string    `gorm:"size:512"`
	Start        time.Time `gorm:"not null;index:idx_meeting_start"`
	End          time.Time `gorm:"not null"`
	TimeZone     string    `gorm:"size:64"`
	Location     string    `gorm:"size:512"`
	Latitude     *float64
	Longitude    *float64
	Participants string `gorm:"type:text"` // JSON-encoded list
	Status       string `gorm:"not null;size:16;index:idx_meeting_owner_status"`

	Notes     string `gorm:"type:text"`
	MirrorRef string `gorm:"size:255"`

	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the table name for GORM
func (MeetingModel) TableName() string {
	return "meetings"
}
