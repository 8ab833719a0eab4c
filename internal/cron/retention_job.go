package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 30 * 24 * time.Hour
	defaultOutboxRetention       = 7 * 24 * time.Hour
	defaultPurgeBatch            = 1000
	// Caps one cycle at maxPurgeRounds*batch rows; the rest waits a tick.
	maxPurgeRounds               = 50
)

// purgeFunc deletes at most limit rows older than cutoff and reports how many
// went.
type purgeFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

type notificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationPurger
	Retention  time.Duration
	BatchSize  int
}

// NewNotificationCleanupJob purges read notifications past the retention
// window. Unread notifications are kept regardless of age.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job, err := newRetentionJob("notification-cleanup", params.Logger, params.Repository.DeleteReadBefore,
		params.Retention, defaultNotificationRetention, params.BatchSize)
	if err != nil {
		return nil, err
	}
	return job, nil
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPurger
	Retention  time.Duration
	BatchSize  int
}

// NewOutboxRetentionJob removes published outbox rows once they age out.
// Unpublished rows stay for the publisher regardless of age.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job, err := newRetentionJob("outbox-retention", params.Logger, params.Repository.DeletePublishedBefore,
		params.Retention, defaultOutboxRetention, params.BatchSize)
	if err != nil {
		return nil, err
	}
	return job, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	purge     purgeFunc
	retention time.Duration
	batch     int
	now       func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, purge purgeFunc, retention, fallback time.Duration, batch int) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retention <= 0 {
		retention = fallback
	}
	if batch <= 0 {
		batch = defaultPurgeBatch
	}
	return &retentionJob{
		name:      name,
		logg:      logg,
		purge:     purge,
		retention: retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

// Run deletes in batches so no single statement holds locks on a large
// table. The cutoff is fixed once per run.
func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	rounds := 0
	for ; rounds < maxPurgeRounds; rounds++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := j.purge(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("%s: %w", j.name, err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			rounds++
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
		"rounds":       rounds,
	}), j.name+" complete")
	return nil
}
