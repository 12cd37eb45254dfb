package scheduler

import (
	"context"
	"sync"
	"time"

	"mingle/internal/domain/integration"
	"mingle/internal/shared/goroutine"
	"mingle/internal/shared/logger"
)

// SyncFunc runs one account's full sync pipeline. Errors are already
// recorded on the account inside the pipeline; the runner only logs.
type SyncFunc func(ctx context.Context, uid, provider string) error

// Runner fans a planned batch out to per-account goroutines. Accounts
// never share records, so tasks run without mutual ordering; a panic or
// failure in one task never reaches the others.
type Runner struct {
	accounts       integration.Repository
	syncFn         SyncFunc
	batchSize      int
	accountTimeout time.Duration
	logger         logger.Interface
}

func NewRunner(accounts integration.Repository, syncFn SyncFunc, batchSize int, accountTimeout time.Duration, log logger.Interface) *Runner {
	return &Runner{
		accounts:       accounts,
		syncFn:         syncFn,
		batchSize:      batchSize,
		accountTimeout: accountTimeout,
		logger:         log,
	}
}

// RunCycle plans and executes one sync cycle at now, returning when
// every launched task has finished or timed out.
func (r *Runner) RunCycle(ctx context.Context, now time.Time) {
	connected, err := r.accounts.ListByStatus(integration.StatusConnected)
	if err != nil {
		r.logger.Errorw("listing connected accounts failed, skipping cycle", "error", err)
		return
	}

	tasks := Plan(connected, now, r.batchSize)
	if len(tasks) == 0 {
		return
	}
	r.logger.Infow("starting sync cycle", "eligible", len(connected), "batch", len(tasks))

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		task := task
		goroutine.SafeGo(r.logger, "sync-"+task.UID, func() {
			defer wg.Done()
			r.runTask(ctx, task)
		})
	}
	wg.Wait()
}

// runTask gives one account a bounded time budget. An account that
// exceeds it is abandoned for this run and retried on the next cycle;
// every pipeline step is idempotent so nothing needs rolling back.
func (r *Runner) runTask(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, r.accountTimeout)
	defer cancel()

	if err := r.syncFn(taskCtx, task.UID, task.Provider); err != nil {
		r.logger.Warnw("account sync failed",
			"uid", task.UID, "provider", task.Provider, "error", err)
	}
}
