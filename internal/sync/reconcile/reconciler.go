// Package reconcile merges fetched feed events into the stored meeting
// set, keeping the store an idempotent projection of the feed.
package reconcile

import (
	"fmt"
	"time"

	"mingle/internal/domain/meeting"
	"mingle/internal/shared/logger"
)

// Result summarizes the writes one reconciliation pass performed.
type Result struct {
	Created   int
	Updated   int
	Canceled  int
	Unchanged int
}

// Changed reports whether the pass wrote anything at all.
func (r *Result) Changed() bool {
	return r.Created+r.Updated+r.Canceled > 0
}

// Reconciler applies a fetched event set to the meeting store.
type Reconciler struct {
	meetings meeting.Repository
	logger   logger.Interface
}

func NewReconciler(meetings meeting.Repository, log logger.Interface) *Reconciler {
	return &Reconciler{meetings: meetings, logger: log}
}

// Reconcile upserts every fetched meeting for (ownerUID, provider) and
// cancels stored meetings that no longer appear in the feed.
// Local annotations on stored meetings survive the merge, and a second
// pass over an identical fetched set performs zero writes. The caller
// must only invoke this after a successful fetch; a failed fetch makes
// no meeting writes at all.
func (r *Reconciler) Reconcile(ownerUID, provider string, fetched []*meeting.Meeting, now time.Time) (*Result, error) {
	result := &Result{}
	fetchedIDs := make(map[string]bool, len(fetched))

	for _, f := range fetched {
		fetchedIDs[f.ExternalID] = true

		stored, err := r.meetings.GetByExternalID(ownerUID, provider, f.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("load meeting %s: %w", f.ExternalID, err)
		}

		if stored == nil {
			f.OwnerUID = ownerUID
			f.Provider = provider
			f.LastSeenAt = now
			f.CreatedAt = now
			f.UpdatedAt = now
			if err := r.meetings.Create(f); err != nil {
				return nil, fmt.Errorf("create meeting %s: %w", f.ExternalID, err)
			}
			result.Created++
			continue
		}

		stored.LastSeenAt = now
		if stored.ApplyFetched(f, now) {
			if err := r.meetings.Update(stored); err != nil {
				return nil, fmt.Errorf("update meeting %s: %w", f.ExternalID, err)
			}
			result.Updated++
		} else {
			result.Unchanged++
		}
	}

	// Anything the feed stopped mentioning was canceled or deleted
	// upstream. Declined meetings are swept too; Cancel no-ops on
	// meetings already canceled.
	all, err := r.meetings.ListByOwner(ownerUID, provider)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	for _, stored := range all {
		if fetchedIDs[stored.ExternalID] {
			continue
		}
		if !stored.Cancel(now) {
			continue
		}
		if err := r.meetings.Update(stored); err != nil {
			return nil, fmt.Errorf("cancel meeting %s: %w", stored.ExternalID, err)
		}
		result.Canceled++
	}

	if result.Changed() {
		r.logger.Infow("reconciled feed",
			"owner", ownerUID,
			"provider", provider,
			"created", result.Created,
			"updated", result.Updated,
			"canceled", result.Canceled,
		)
	}
	return result, nil
}
