// Package gcal adapts the Google Calendar API to the mirror writer's
// CalendarAPI interface.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mingle/internal/shared/constants"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/shared/logger"
	"mingle/internal/sync/mirror"
)

// Client talks to one user's Google Calendar using their access token.
type Client struct {
	service *calendar.Service
	logger  logger.Interface
}

// NewClient builds a per-account client from a bearer access token.
// Token refresh happens upstream in the token manager, so a static
// token source is enough for one sync cycle.
func NewClient(ctx context.Context, accessToken string, log logger.Interface) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	service, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{service: service, logger: log}, nil
}

// FindByExternalID queries server-side for an event tagged with the
// given external id via a private extended property. The query hits the
// provider, not local state, so it still finds events whose local
// mirror reference was lost.
func (c *Client) FindByExternalID(ctx context.Context, calendarID, externalID string) (string, error) {
	events, err := c.service.Events.List(calendarID).
		PrivateExtendedProperty(mirror.ExternalIDProperty + "=" + externalID).
		ShowDeleted(false).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", c.translate(err)
	}
	if len(events.Items) == 0 {
		return "", nil
	}
	return events.Items[0].Id, nil
}

func (c *Client) Insert(ctx context.Context, calendarID string, ev *mirror.EventData) error {
	_, err := c.service.Events.Insert(calendarID, toGoogleEvent(ev, true)).
		Context(ctx).
		Do()
	return c.translate(err)
}

func (c *Client) Patch(ctx context.Context, calendarID, eventID string, ev *mirror.EventData) error {
	_, err := c.service.Events.Patch(calendarID, eventID, toGoogleEvent(ev, false)).
		Context(ctx).
		Do()
	return c.translate(err)
}

func (c *Client) Delete(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		Context(ctx).
		Do()
	return c.translate(err)
}

// ListCalendars returns the ids of the calendars the account can write
// to, for validating a mirror target before enabling mirroring.
func (c *Client) ListCalendars(ctx context.Context) ([]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, c.translate(err)
	}
	var ids []string
	for _, item := range list.Items {
		if item.AccessRole == "owner" || item.AccessRole == "writer" {
			ids = append(ids, item.Id)
		}
	}
	return ids, nil
}

func toGoogleEvent(ev *mirror.EventData, withID bool) *calendar.Event {
	ge := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.UTC().Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.UTC().Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{mirror.ExternalIDProperty: ev.ExternalID},
		},
		Source: &calendar.EventSource{
			Title: constants.AppName,
		},
	}
	// Patch must not resend the id.
	if withID {
		ge.Id = ev.ID
	}
	return ge
}

// translate maps Google API failures to the error types the mirror
// writer acts on.
func (c *Client) translate(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch gerr.Code {
	case 401, 403:
		return apperrors.NewReauthRequiredError(constants.ProviderGoogle, gerr.Message)
	case 404, 410:
		return mirror.ErrEventNotFound
	case 409:
		return mirror.ErrAlreadyExists
	case 429:
		return apperrors.NewProviderRateLimitError(constants.ProviderGoogle, retryAfter(gerr.Header))
	default:
		return err
	}
}

// retryAfter extracts the provider's delay hint. Google sends either
// delay-seconds or an HTTP-date; absent or unparseable values yield 0.
func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
