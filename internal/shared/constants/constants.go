// Package constants defines shared constant values used across layers.
package constants

const (
	// AppName labels outward-facing artifacts like mirrored events.
	AppName = "Mingle"

	// ContextKeyUserUID is the gin context key carrying the authenticated user id.
	ContextKeyUserUID = "user_uid"

	// ProviderCalendly identifies the meeting-scheduling service integration.
	ProviderCalendly = "calendly"

	// ProviderGoogle identifies the Google Calendar mirror target.
	ProviderGoogle = "google"

	// UserAgent identifies outgoing requests to third-party services.
	UserAgent = "mingle-sync/1.0"
)
