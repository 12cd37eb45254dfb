// Package meeting holds the canonical Meeting model produced by feed
// normalization and maintained by the reconciler.
package meeting

import (
	"time"
)

// Status is the lifecycle state of a meeting.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusDeclined  Status = "declined"
	StatusCanceled  Status = "canceled"
)

// Meeting is the canonical meeting record. ExternalID is unique per
// (OwnerUID, Provider). Notes and MirrorRef are local annotations that
// survive reconciliation merges.
type Meeting struct {
	ID         uint
	OwnerUID   string
	Provider   string
	ExternalID string

	Title        string
	Start        time.Time
	End          time.Time
	TimeZone     string
	Location     string
	Latitude     *float64
	Longitude    *float64
	Participants []string
	Status       Status

	// Local annotations, never sourced from the feed.
	Notes     string
	MirrorRef string

	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Active reports whether the meeting should appear in listings and be
// projected into the mirror calendar.
func (m *Meeting) Active() bool {
	return m.Status != StatusCanceled && m.Status != StatusDeclined
}

// ApplyFetched merges the freshly fetched record into m, preserving local
// annotations. It returns true when any persisted field actually changed,
// so unchanged meetings produce no writes.
func (m *Meeting) ApplyFetched(fetched *Meeting, now time.Time) bool {
	changed := false

	if m.Title != fetched.Title {
		m.Title = fetched.Title
		changed = true
	}
	if !m.Start.Equal(fetched.Start) {
		m.Start = fetched.Start
		changed = true
	}
	if !m.End.Equal(fetched.End) {
		m.End = fetched.End
		changed = true
	}
	if m.TimeZone != fetched.TimeZone {
		m.TimeZone = fetched.TimeZone
		changed = true
	}
	if m.Location != fetched.Location {
		m.Location = fetched.Location
		changed = true
	}
	if !floatPtrEqual(m.Latitude, fetched.Latitude) {
		m.Latitude = fetched.Latitude
		changed = true
	}
	if !floatPtrEqual(m.Longitude, fetched.Longitude) {
		m.Longitude = fetched.Longitude
		changed = true
	}
	if !stringSliceEqual(m.Participants, fetched.Participants) {
		m.Participants = fetched.Participants
		changed = true
	}
	if m.Status != fetched.Status {
		m.Status = fetched.Status
		changed = true
	}

	if changed {
		m.UpdatedAt = now
	}
	return changed
}

// Cancel marks the meeting canceled. Returns false when it already was.
func (m *Meeting) Cancel(now time.Time) bool {
	if m.Status == StatusCanceled {
		return false
	}
	m.Status = StatusCanceled
	m.UpdatedAt = now
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
