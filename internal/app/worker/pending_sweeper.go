package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"tle_zone_judge/internal/domain/repository"
	"tle_zone_judge/internal/platform/config"
	"tle_zone_judge/internal/platform/logger"
	"tle_zone_judge/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const abandonedMessage = "judging abandoned: no verdict was recorded in time"

const (
	defaultSweepInterval = time.Minute
	defaultStaleAfter    = 5 * time.Minute
	defaultLockTTL       = 30 * time.Second
)

// releaseScript deletes the lock only if we still hold it.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// PendingSweeper finalizes submissions left Pending by a process that died
// mid-judging. With several replicas, a Redis lock lets one sweep at a time.
type PendingSweeper struct {
	rdb            *redis.Client // nil means single-process, no lock
	submissionRepo repository.SubmissionRepository
	cfg            config.SweepConfig
	log            *slog.Logger
	now            func() time.Time
}

// NewPendingSweeper replaces non-positive durations in cfg with the defaults.
func NewPendingSweeper(rdb *redis.Client, subRepo repository.SubmissionRepository, cfg config.SweepConfig, log *slog.Logger) *PendingSweeper {
	if cfg.Interval <= 0 {
		log.Warn("Invalid sweep interval, using default", "interval", cfg.Interval, "default", defaultSweepInterval)
		cfg.Interval = defaultSweepInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &PendingSweeper{
		rdb:            rdb,
		submissionRepo: subRepo,
		cfg:            cfg,
		log:            log,
		now:            time.Now,
	}
}

// Start sweeps every cfg.Interval until ctx is cancelled.
func (w *PendingSweeper) Start(ctx context.Context) {
	w.log.Info("Pending sweeper started", "interval", w.cfg.Interval, "stale_after", w.cfg.StaleAfter)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Pending sweeper stopping")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.log.Error("Sweep failed", logger.Err(err))
			}
		}
	}
}

// SweepOnce runs one pass and returns how many submissions were failed.
// It returns 0 without error when another replica holds the lock.
func (w *PendingSweeper) SweepOnce(ctx context.Context) (int, error) {
	if w.rdb == nil {
		return w.sweep(ctx)
	}

	lockValue := uuid.NewString() // Unique value for this lock instance
	ok, err := w.rdb.SetNX(ctx, w.cfg.LockKey, lockValue, w.cfg.LockTTL).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		w.log.Debug("Sweep lock held elsewhere, skipping")
		return 0, nil
	}
	defer w.release(lockValue)

	return w.sweep(ctx)
}

func (w *PendingSweeper) sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.cfg.StaleAfter)
	n, err := w.submissionRepo.FailStalePending(ctx, cutoff, abandonedMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale submissions: %w", err)
	}
	if n > 0 {
		metrics.StaleSubmissionsFailed.Add(float64(n))
		w.log.Warn("Failed stale Pending submissions", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (w *PendingSweeper) release(lockValue string) {
	// The sweep context may already be cancelled at shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, w.rdb, []string{w.cfg.LockKey}, lockValue).Int64()
	if err != nil {
		w.log.Error("Failed to release sweep lock", "key", w.cfg.LockKey, logger.Err(err))
		return
	}
	if deleted != 1 {
		w.log.Warn("Sweep lock was not ours to release; it may have expired", "key", w.cfg.LockKey)
	}
}
