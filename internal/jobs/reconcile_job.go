// Package jobs runs scheduled maintenance for the feed.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"charityfeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	reconcileLockKey = "jobs:reconcile_counters:lock"
	reconcileTimeout = 5 * time.Minute
)

// CounterReconciler recomputes drifted post counters.
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) (int64, error)
}

// ReconcileJob repairs likes_count and comments_count drift. With Redis it
// holds a lock so only one API instance runs a given tick.
type ReconcileJob struct {
	reconciler CounterReconciler
	rdb        *redis.Client
}

func NewReconcileJob(reconciler CounterReconciler, rdb *redis.Client) *ReconcileJob {
	return &ReconcileJob{reconciler: reconciler, rdb: rdb}
}

// Run implements cron.Job.
func (j *ReconcileJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	_, _ = j.RunOnce(ctx)
}

// RunOnce reconciles now. ran is false when another instance holds the lock.
func (j *ReconcileJob) RunOnce(ctx context.Context) (ran bool, err error) {
	if j.rdb != nil {
		ok, lockErr := j.rdb.SetNX(ctx, reconcileLockKey, "1", reconcileTimeout).Result()
		if lockErr != nil {
			middleware.Logger.WarnContext(ctx, "reconcile lock unavailable, running anyway", slog.String("error", lockErr.Error()))
		} else if !ok {
			middleware.Logger.DebugContext(ctx, "reconcile already running elsewhere")
			return false, nil
		} else {
			defer j.rdb.Del(context.WithoutCancel(ctx), reconcileLockKey)
		}
	}

	start := time.Now()
	fixed, err := j.reconciler.ReconcileCounters(ctx)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "counter reconciliation failed", slog.String("error", err.Error()))
		return true, err
	}
	middleware.Logger.InfoContext(ctx, "counter reconciliation finished",
		slog.Int64("fixed", fixed),
		slog.Duration("took", time.Since(start)))
	return true, nil
}
