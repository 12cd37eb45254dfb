package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mingle/internal/domain/meeting"
	"mingle/internal/shared/logger"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Calendly//EN
BEGIN:VEVENT
UID:evt-coffee-chat
SUMMARY:Coffee chat
DTSTAMP:20260301T090000Z
DTSTART:20260301T150000Z
DTEND:20260301T153000Z
LOCATION:Expo Hall B
GEO:37.386013;-122.082932
STATUS:CONFIRMED
ATTENDEE:mailto:ana@example.com
ATTENDEE:mailto:bob@example.com
END:VEVENT
END:VCALENDAR
`

func newTestNormalizer() *Normalizer {
	return NewNormalizer(logger.NewLogger())
}

func TestNormalizer_ParseFullEvent(t *testing.T) {
	meetings, err := newTestNormalizer().Parse(sampleFeed)
	require.NoError(t, err)
	require.Len(t, meetings, 1)

	m := meetings[0]
	assert.Equal(t, "evt-coffee-chat", m.ExternalID)
	assert.Equal(t, "Coffee chat", m.Title)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), m.Start)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC), m.End)
	assert.Equal(t, "Expo Hall B", m.Location)
	require.NotNil(t, m.Latitude)
	require.NotNil(t, m.Longitude)
	assert.InDelta(t, 37.386013, *m.Latitude, 1e-9)
	assert.InDelta(t, -122.082932, *m.Longitude, 1e-9)
	assert.Equal(t, meeting.StatusConfirmed, m.Status)
	assert.Equal(t, []string{"ana@example.com", "bob@example.com"}, m.Participants)
}

func TestNormalizer_MissingEndDefaultsToOneHour(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:evt-open-ended
SUMMARY:Open ended
DTSTAMP:20260301T090000Z
DTSTART:20260301T100000Z
END:VEVENT
END:VCALENDAR
`
	meetings, err := newTestNormalizer().Parse(feed)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, meetings[0].Start.Add(time.Hour), meetings[0].End)
}

func TestNormalizer_MissingUIDSynthesizesStableID(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
SUMMARY:Anonymous block
DTSTAMP:20260301T090000Z
DTSTART:20260301T100000Z
END:VEVENT
END:VCALENDAR
`
	meetings, err := newTestNormalizer().Parse(feed)
	require.NoError(t, err)
	require.Len(t, meetings, 1)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sum := sha256.Sum256([]byte("Anonymous block|" + start.Format(time.RFC3339)))
	assert.Equal(t, hex.EncodeToString(sum[:]), meetings[0].ExternalID)

	// Re-parsing the same text yields the same identifier.
	again, err := newTestNormalizer().Parse(feed)
	require.NoError(t, err)
	assert.Equal(t, meetings[0].ExternalID, again[0].ExternalID)
}

func TestNormalizer_MissingStartDropsEvent(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:evt-no-start
SUMMARY:No start
DTSTAMP:20260301T090000Z
END:VEVENT
BEGIN:VEVENT
UID:evt-ok
SUMMARY:Fine
DTSTAMP:20260301T090000Z
DTSTART:20260301T100000Z
END:VEVENT
END:VCALENDAR
`
	meetings, err := newTestNormalizer().Parse(feed)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "evt-ok", meetings[0].ExternalID)
}

func TestNormalizer_StatusMapping(t *testing.T) {
	tests := []struct {
		status string
		want   meeting.Status
	}{
		{"CONFIRMED", meeting.StatusConfirmed},
		{"TENTATIVE", meeting.StatusPending},
		{"CANCELLED", meeting.StatusCanceled},
		{"cancelled", meeting.StatusCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStatus(tt.status))
		})
	}
}

func TestNormalizer_TimezoneAbbreviation(t *testing.T) {
	assert.Equal(t, "America/New_York", normalizeTZID("EST"))
	assert.Equal(t, "America/Los_Angeles", normalizeTZID("pst"))
	assert.Equal(t, "Europe/Berlin", normalizeTZID("Europe/Berlin"), "IANA names pass through")
	assert.Equal(t, "Mars/Olympus", normalizeTZID("Mars/Olympus"), "unknown names pass through")
}

func TestNormalizer_TZIDStartConvertsToUTC(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:evt-eastern
SUMMARY:Eastern meeting
DTSTAMP:20260301T090000Z
DTSTART;TZID=EST:20260301T100000
END:VEVENT
END:VCALENDAR
`
	meetings, err := newTestNormalizer().Parse(feed)
	require.NoError(t, err)
	require.Len(t, meetings, 1)

	// 10:00 America/New_York on 2026-03-01 is 15:00 UTC.
	assert.Equal(t, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), meetings[0].Start)
	assert.Equal(t, "America/New_York", meetings[0].TimeZone)
}

func TestNormalizer_DuplicateUIDsCollapse(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:evt-dup
SUMMARY:First
DTSTAMP:20260301T090000Z
DTSTART:20260301T100000Z
END:VEVENT
BEGIN:VEVENT
UID:evt-dup
SUMMARY:Second
DTSTAMP:20260301T090000Z
DTSTART:20260301T110000Z
END:VEVENT
END:VCALENDAR
`
	meetings, err := newTestNormalizer().Parse(feed)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "First", meetings[0].Title)
}

func TestParseGeo(t *testing.T) {
	lat, lng, ok := parseGeo("48.8584;2.2945")
	require.True(t, ok)
	assert.InDelta(t, 48.8584, lat, 1e-9)
	assert.InDelta(t, 2.2945, lng, 1e-9)

	_, _, ok = parseGeo("not-coordinates")
	assert.False(t, ok)
}
