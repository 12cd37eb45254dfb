package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"mingle/internal/domain/meeting"
	"mingle/internal/shared/logger"
)

// tzAbbreviations maps common time-zone abbreviations found in feed
// TZID parameters to IANA zone names. Unrecognized values pass through
// unchanged so that feeds already carrying IANA names keep working.
var tzAbbreviations = map[string]string{
	"EST":  "America/New_York",
	"EDT":  "America/New_York",
	"CST":  "America/Chicago",
	"CDT":  "America/Chicago",
	"MST":  "America/Denver",
	"MDT":  "America/Denver",
	"PST":  "America/Los_Angeles",
	"PDT":  "America/Los_Angeles",
	"AKST": "America/Anchorage",
	"AKDT": "America/Anchorage",
	"HST":  "Pacific/Honolulu",
	"GMT":  "Etc/GMT",
	"BST":  "Europe/London",
	"CET":  "Europe/Paris",
	"CEST": "Europe/Paris",
	"IST":  "Asia/Kolkata",
	"JST":  "Asia/Tokyo",
	"AEST": "Australia/Sydney",
	"AEDT": "Australia/Sydney",
}

// defaultDuration is assumed when an event block carries no DTEND.
const defaultDuration = time.Hour

// Normalizer turns raw iCalendar text into canonical meeting records.
type Normalizer struct {
	logger logger.Interface
}

func NewNormalizer(log logger.Interface) *Normalizer {
	return &Normalizer{logger: log}
}

// Parse decodes feedText and returns one meeting per usable VEVENT.
// Owner and provider fields are left empty for the caller to fill in.
// Events without a start time are dropped; events without a UID get a
// synthesized identifier derived from title and start, which is only as
// stable as the feed keeps those two fields.
func (n *Normalizer) Parse(feedText string) ([]*meeting.Meeting, error) {
	decoder := ical.NewDecoder(strings.NewReader(feedText))

	var meetings []*meeting.Meeting
	seen := make(map[string]bool)

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}

			m, err := n.parseEvent(comp)
			if err != nil {
				n.logger.Warnw("skipping unusable event block", "error", err)
				continue
			}
			if seen[m.ExternalID] {
				continue
			}
			seen[m.ExternalID] = true
			meetings = append(meetings, m)
		}
	}

	return meetings, nil
}

func (n *Normalizer) parseEvent(comp *ical.Component) (*meeting.Meeting, error) {
	m := &meeting.Meeting{Status: meeting.StatusConfirmed}

	if prop := comp.Props.Get(ical.PropSummary); prop != nil {
		m.Title = prop.Value
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return nil, fmt.Errorf("event %q has no start time", m.Title)
	}
	start, tz, err := parseEventTime(startProp)
	if err != nil {
		return nil, fmt.Errorf("event %q start: %w", m.Title, err)
	}
	m.Start = start
	m.TimeZone = tz

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		end, _, err := parseEventTime(endProp)
		if err != nil {
			return nil, fmt.Errorf("event %q end: %w", m.Title, err)
		}
		m.End = end
	} else {
		m.End = m.Start.Add(defaultDuration)
	}

	if prop := comp.Props.Get(ical.PropUID); prop != nil && prop.Value != "" {
		m.ExternalID = prop.Value
	} else {
		m.ExternalID = synthesizeID(m.Title, m.Start)
	}

	if prop := comp.Props.Get(ical.PropLocation); prop != nil {
		m.Location = prop.Value
	}

	if prop := comp.Props.Get(ical.PropGeo); prop != nil {
		if lat, lng, ok := parseGeo(prop.Value); ok {
			m.Latitude = &lat
			m.Longitude = &lng
		}
	}

	if prop := comp.Props.Get(ical.PropStatus); prop != nil {
		m.Status = mapStatus(prop.Value)
	}

	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		if attendee := normalizeAttendee(prop.Value); attendee != "" {
			m.Participants = append(m.Participants, attendee)
		}
	}

	return m, nil
}

// parseEventTime resolves a DTSTART/DTEND property to a UTC instant plus
// the IANA zone name it was expressed in, if any.
func parseEventTime(prop *ical.Prop) (time.Time, string, error) {
	loc := time.UTC
	tzName := ""

	if tzid := prop.Params.Get(ical.ParamTimezoneID); tzid != "" {
		tzName = normalizeTZID(tzid)
		// The decoder resolves TZID itself, so rewrite abbreviations in
		// place before asking it to parse.
		if tzName != tzid {
			prop.Params.Set(ical.ParamTimezoneID, tzName)
		}
		if resolved, err := time.LoadLocation(tzName); err == nil {
			loc = resolved
		}
	}

	if t, err := prop.DateTime(loc); err == nil {
		return t.UTC(), tzName, nil
	}

	// Some generators emit bare datetimes the decoder refuses.
	for _, format := range []string{
		"20060102T150405Z",
		"20060102T150405",
		time.RFC3339,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(format, prop.Value, loc); err == nil {
			return t.UTC(), tzName, nil
		}
	}

	return time.Time{}, "", fmt.Errorf("unparseable datetime %q", prop.Value)
}

// normalizeTZID maps abbreviations like EST to IANA names, passing
// unknown identifiers through unchanged.
func normalizeTZID(tzid string) string {
	if iana, ok := tzAbbreviations[strings.ToUpper(tzid)]; ok {
		return iana
	}
	return tzid
}

// synthesizeID derives a deterministic identifier for event blocks that
// carry no UID. It is stable only while the feed keeps title and start
// unchanged; an upstream rewrite shows up as cancel plus re-create.
func synthesizeID(title string, start time.Time) string {
	sum := sha256.Sum256([]byte(title + "|" + start.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])
}

// parseGeo parses the GEO property "latitude;longitude" form.
func parseGeo(value string) (float64, float64, bool) {
	parts := strings.SplitN(value, ";", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

func mapStatus(value string) meeting.Status {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "CANCELLED":
		return meeting.StatusCanceled
	case "TENTATIVE":
		return meeting.StatusPending
	case "DECLINED":
		return meeting.StatusDeclined
	default:
		return meeting.StatusConfirmed
	}
}

func normalizeAttendee(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), "mailto:")
}
