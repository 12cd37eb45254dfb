package integration

import "time"

// StatusResult describes the user's integration state for the status
// endpoint.
type StatusResult struct {
	Connected        bool       `json:"connected"`
	ConnectionStatus string     `json:"connectionStatus"`
	LastSyncAt       *time.Time `json:"lastSyncAt,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
	EventCount       int64      `json:"eventCount"`
	MirrorEnabled    bool       `json:"mirrorEnabled"`
	MirrorCalendarID string     `json:"mirrorCalendarId,omitempty"`
	GoogleConnected  bool       `json:"googleConnected"`
}

// SyncNowResult reports the outcome of a manual sync.
type SyncNowResult struct {
	EventCount int64 `json:"eventCount"`
}

// MeetingView is the outward shape of a synced meeting.
type MeetingView struct {
	ExternalID   string     `json:"externalId"`
	Title        string     `json:"title"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	TimeZone     string     `json:"timeZone,omitempty"`
	Location     string     `json:"location,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Participants []string   `json:"participants,omitempty"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// AuthorizeResult carries the provider authorization URL the client
// should redirect the user to.
type AuthorizeResult struct {
	AuthorizationURL string `json:"authorizationUrl"`
}
