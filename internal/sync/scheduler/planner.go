// Package scheduler plans and runs the periodic sync cycle across all
// connected accounts.
package scheduler

import (
	"sort"
	"time"

	"mingle/internal/domain/integration"
)

// Task identifies one account sync unit of work.
type Task struct {
	UID      string
	Provider string
}

// Plan selects which accounts the next cycle should sync. It keeps only
// connected accounts whose backoff window has passed, orders them so
// the longest-unsynced go first (never-synced accounts ahead of all),
// and caps the batch at batchSize. Excess accounts are simply left for
// the following cycle; no queue state is carried between runs.
func Plan(accounts []*integration.Account, now time.Time, batchSize int) []Task {
	eligible := make([]*integration.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Syncable(now) {
			eligible = append(eligible, a)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		li, lj := eligible[i].LastSyncAt, eligible[j].LastSyncAt
		if li == nil {
			return lj != nil
		}
		if lj == nil {
			return false
		}
		return li.Before(*lj)
	})

	if batchSize > 0 && len(eligible) > batchSize {
		eligible = eligible[:batchSize]
	}

	tasks := make([]Task, 0, len(eligible))
	for _, a := range eligible {
		tasks = append(tasks, Task{UID: a.UID, Provider: a.Provider})
	}
	return tasks
}
