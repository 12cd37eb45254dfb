// Package mirror projects active meetings into the user's external
// calendar so synced meetings show up next to their own events.
package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"mingle/internal/domain/meeting"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/shared/logger"
)

// ExternalIDProperty is the private extended property key used to tag
// mirrored events, so lookups survive a lost local mirror reference.
const ExternalIDProperty = "mingleExternalId"

var (
	// ErrAlreadyExists is returned by a CalendarAPI insert when an event
	// with the same id already exists. The writer treats it as success.
	ErrAlreadyExists = errors.New("calendar event already exists")

	// ErrEventNotFound is returned by patch/delete when the target event
	// is gone.
	ErrEventNotFound = errors.New("calendar event not found")
)

// EventData carries the fields the writer pushes to the calendar
// provider.
type EventData struct {
	ID          string
	ExternalID  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// CalendarAPI is the slice of the calendar provider the writer needs.
// Implementations translate provider auth failures into
// ReauthRequiredError so the writer can abort the batch.
type CalendarAPI interface {
	// FindByExternalID queries server-side for an event tagged with the
	// given external id. It returns "" when no such event exists.
	FindByExternalID(ctx context.Context, calendarID, externalID string) (string, error)
	Insert(ctx context.Context, calendarID string, ev *EventData) error
	Patch(ctx context.Context, calendarID, eventID string, ev *EventData) error
	Delete(ctx context.Context, calendarID, eventID string) error
}

// Result summarizes one mirror pass. Unchanged counts inserts that
// found the event already mirrored from an earlier attempt.
type Result struct {
	Inserted  int
	Patched   int
	Deleted   int
	Skipped   int
	Unchanged int
	Aborted   bool
}

// Writer mirrors meetings into a calendar via a CalendarAPI.
type Writer struct {
	api      CalendarAPI
	meetings meeting.Repository
	logger   logger.Interface
}

func NewWriter(api CalendarAPI, meetings meeting.Repository, log logger.Interface) *Writer {
	return &Writer{api: api, meetings: meetings, logger: log}
}

// MirrorEventID derives the deterministic provider event id for an
// external id. The hex digest fits Google's event id alphabet, and a
// retried insert with the same id fails as already-exists instead of
// duplicating the event.
func MirrorEventID(externalID string) string {
	sum := sha256.Sum256([]byte(externalID))
	return hex.EncodeToString(sum[:])[:32]
}

// Mirror pushes the given meetings into calendarID. Active meetings are
// upserted; canceled meetings that still carry a mirror reference get
// their mirrored event deleted. A provider auth failure or rate limit
// aborts the rest of the batch, since every remaining call would hit
// the same dead token or throttle; the deferred work is picked up on
// the next cycle. Any other single-event failure is logged and skipped.
func (w *Writer) Mirror(ctx context.Context, calendarID string, meetings []*meeting.Meeting) (*Result, error) {
	result := &Result{}

	for _, m := range meetings {
		var err error
		if m.Active() {
			err = w.mirrorOne(ctx, calendarID, m, result)
		} else {
			err = w.removeOne(ctx, calendarID, m, result)
		}
		if err == nil {
			continue
		}
		if apperrors.IsReauthRequired(err) {
			result.Aborted = true
			w.logger.Warnw("aborting mirror batch, provider rejected credentials",
				"owner", m.OwnerUID, "calendar", calendarID)
			return result, err
		}
		if apperrors.IsProviderRateLimit(err) {
			result.Aborted = true
			w.logger.Warnw("aborting mirror batch, provider rate limited",
				"owner", m.OwnerUID, "calendar", calendarID, "error", err)
			return result, err
		}
		result.Skipped++
		w.logger.Errorw("mirroring event failed, skipping",
			"owner", m.OwnerUID, "externalId", m.ExternalID, "error", err)
	}

	return result, nil
}

func (w *Writer) mirrorOne(ctx context.Context, calendarID string, m *meeting.Meeting, result *Result) error {
	ev := eventDataFor(m)

	eventID, err := w.api.FindByExternalID(ctx, calendarID, m.ExternalID)
	if err != nil {
		return fmt.Errorf("lookup mirrored event: %w", err)
	}

	if eventID != "" {
		if err := w.api.Patch(ctx, calendarID, eventID, ev); err != nil {
			return fmt.Errorf("patch mirrored event: %w", err)
		}
		result.Patched++
	} else {
		switch err := w.api.Insert(ctx, calendarID, ev); {
		case err == nil:
			result.Inserted++
		case errors.Is(err, ErrAlreadyExists):
			result.Unchanged++
		default:
			return fmt.Errorf("insert mirrored event: %w", err)
		}
		eventID = ev.ID
	}

	if m.MirrorRef != eventID {
		m.MirrorRef = eventID
		if err := w.meetings.Update(m); err != nil {
			return fmt.Errorf("persist mirror reference: %w", err)
		}
	}
	return nil
}

func (w *Writer) removeOne(ctx context.Context, calendarID string, m *meeting.Meeting, result *Result) error {
	if m.MirrorRef == "" {
		return nil
	}

	err := w.api.Delete(ctx, calendarID, m.MirrorRef)
	if err != nil && !errors.Is(err, ErrEventNotFound) {
		return fmt.Errorf("delete mirrored event: %w", err)
	}
	result.Deleted++

	m.MirrorRef = ""
	if err := w.meetings.Update(m); err != nil {
		return fmt.Errorf("clear mirror reference: %w", err)
	}
	return nil
}

func eventDataFor(m *meeting.Meeting) *EventData {
	description := fmt.Sprintf("Synced from %s.", m.Provider)
	if len(m.Participants) > 0 {
		description += "\nWith: "
		for i, p := range m.Participants {
			if i > 0 {
				description += ", "
			}
			description += p
		}
	}

	return &EventData{
		ID:          MirrorEventID(m.ExternalID),
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		Description: description,
		Location:    m.Location,
		Start:       m.Start,
		End:         m.End,
		TimeZone:    m.TimeZone,
	}
}
