package cron

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/dropship-backend/internal/courier"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const defaultTrackingBatchSize = 50

type trackableLister interface {
	ListTrackable(ctx context.Context, afterID uuid.UUID, limit int) ([]models.SubOrder, error)
}

type courierUpdateApplier interface {
	ApplyCourierUpdate(ctx context.Context, update fulfillment.CourierUpdate) (*fulfillment.UpdateResult, error)
}

type CourierTrackingJobParams struct {
	Logger    *logger.Logger
	SubOrders trackableLister
	Gateway   courier.Gateway
	Machine   courierUpdateApplier
	BatchSize int
}

// NewCourierTrackingJob polls the courier for every sub-order that has a
// delivery id and is not final, then feeds the latest tracking code of each
// shipment through the fulfillment machine.
func NewCourierTrackingJob(params CourierTrackingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.SubOrders == nil {
		return nil, fmt.Errorf("sub-order repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("fulfillment machine required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultTrackingBatchSize
	}
	return &courierTrackingJob{
		logg:      params.Logger,
		subOrders: params.SubOrders,
		gateway:   params.Gateway,
		machine:   params.Machine,
		batchSize: batch,
	}, nil
}

type courierTrackingJob struct {
	logg      *logger.Logger
	subOrders trackableLister
	gateway   courier.Gateway
	machine   courierUpdateApplier
	batchSize int
}

func (j *courierTrackingJob) Name() string { return "courier-tracking-poll" }

type trackingStats struct {
	polled  int
	applied int
	ignored int
}

func (j *courierTrackingJob) Run(ctx context.Context) error {
	var (
		stats  trackingStats
		errs   error
		cursor = uuid.Nil
	)
	for {
		subs, err := j.subOrders.ListTrackable(ctx, cursor, j.batchSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list trackable sub-orders: %w", err))
		}
		if len(subs) == 0 {
			break
		}
		errs = multierr.Append(errs, j.pollBatch(ctx, subs, &stats))
		cursor = subs[len(subs)-1].ID
		if len(subs) < j.batchSize {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"polled":  stats.polled,
		"applied": stats.applied,
		"ignored": stats.ignored,
	}), "courier tracking poll complete")
	return errs
}

func (j *courierTrackingJob) pollBatch(ctx context.Context, subs []models.SubOrder, stats *trackingStats) error {
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.DeliveryID == nil || strings.TrimSpace(*sub.DeliveryID) == "" {
			continue
		}
		ids = append(ids, *sub.DeliveryID)
	}
	stats.polled += len(ids)
	tracking, err := j.gateway.TrackShipments(ctx, ids)
	if err != nil {
		return fmt.Errorf("track %d shipments: %w", len(ids), err)
	}

	var errs error
	for _, sub := range subs {
		if sub.DeliveryID == nil {
			continue
		}
		latest, ok := latestUpdate(tracking[*sub.DeliveryID])
		if !ok {
			continue
		}
		res, err := j.machine.ApplyCourierUpdate(ctx, fulfillment.CourierUpdate{
			DeliveryID:  *sub.DeliveryID,
			Reference:   sub.Code,
			Code:        latest.Code,
			Description: latest.Description,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sub-order %s: %w", sub.Code, err))
			continue
		}
		if res.Ignored {
			stats.ignored++
			continue
		}
		if res.Transition != nil && res.Transition.Changed {
			stats.applied++
		}
	}
	return errs
}

// latestUpdate picks the most recent entry. Updates arrive oldest first, so
// ties keep the later position.
func latestUpdate(updates []courier.TrackingUpdate) (courier.TrackingUpdate, bool) {
	if len(updates) == 0 {
		return courier.TrackingUpdate{}, false
	}
	latest := updates[0]
	for _, u := range updates[1:] {
		if !u.OccurredAt.Before(latest.OccurredAt) {
			latest = u
		}
	}
	return latest, true
}
