// Package pickups batches awaiting sub-orders into courier pickups, one per
// supplier.
package pickups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/courier"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/internal/users"
	"github.com/angelmondragon/dropship-backend/pkg/codes"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/outbox/payloads"
)

const defaultCountryCode = "TN"

// StatusApplier moves sub-orders to record_created inside the pickup
// transaction.
type StatusApplier interface {
	ApplyCourierStatusTx(ctx context.Context, tx *gorm.DB, input fulfillment.ApplyStatusInput) (*fulfillment.TransitionResult, error)
	Announce(ctx context.Context, results ...*fulfillment.TransitionResult)
}

type RequestPickupInput struct {
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
	SubOrderIDs []uuid.UUID
	OrderIDs    []uuid.UUID
}

type PickupDTO struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	SupplierID       uuid.UUID `json:"supplier_id"`
	PickupDate       time.Time `json:"pickup_date"`
	CourierReference string    `json:"courier_reference"`
	CreatedAt        time.Time `json:"created_at"`
}

// GroupResult is the outcome for one supplier. Err is set when the courier
// refused or could not be reached; nothing was persisted in that case.
type GroupResult struct {
	SupplierID uuid.UUID
	Pickup     *PickupDTO
	Matched    []uuid.UUID
	Unmatched  []uuid.UUID
	Err        error
}

type BatchResult struct {
	Groups []GroupResult
}

// Err combines every group error.
func (b *BatchResult) Err() error {
	var err error
	for _, g := range b.Groups {
		if g.Err != nil {
			err = multierr.Append(err, fmt.Errorf("supplier %s: %w", g.SupplierID, g.Err))
		}
	}
	return err
}

// Succeeded reports whether at least one group produced a pickup.
func (b *BatchResult) Succeeded() bool {
	for _, g := range b.Groups {
		if g.Err == nil && g.Pickup != nil {
			return true
		}
	}
	return false
}

type ServiceParams struct {
	TxRunner db.TxRunner
	Repo     Repository
	Users    *users.Repository
	Gateway  courier.Gateway
	Machine  StatusApplier
	Outbox   outbox.Emitter
	Notifier notifications.Notifier
	Config   config.CourierConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type Service struct {
	tx          db.TxRunner
	repo        Repository
	users       *users.Repository
	gateway     courier.Gateway
	machine     StatusApplier
	outbox      outbox.Emitter
	notifier    notifications.Notifier
	loc         *time.Location
	countryCode string
	concurrency int
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pickup repository required")
	case params.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	case params.Gateway == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier gateway required")
	case params.Machine == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment machine required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	loc, err := params.Config.Location()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "courier timezone")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	countryCode := strings.TrimSpace(params.Config.AccountCountryCode)
	if countryCode == "" {
		countryCode = defaultCountryCode
	}
	concurrency := params.Config.MaxConcurrentCalls
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		tx:          params.TxRunner,
		repo:        params.Repo,
		users:       params.Users,
		gateway:     params.Gateway,
		machine:     params.Machine,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		loc:         loc,
		countryCode: countryCode,
		concurrency: concurrency,
		logg:        params.Logger,
		now:         params.Now,
	}, nil
}

type group struct {
	supplier   models.User
	candidates []Candidate
}

// RequestPickup validates the whole selection, then asks the courier for one
// pickup per supplier. Groups run concurrently and fail independently.
func (s *Service) RequestPickup(ctx context.Context, input RequestPickupInput) (*BatchResult, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ActorRole != enums.UserRoleAdmin && input.ActorRole != enums.UserRoleSupplier {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins and suppliers can request pickups")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":    input.ActorUserID.String(),
		"actor_role": string(input.ActorRole),
	})

	candidates, err := s.repo.LoadCandidates(ctx, input.SubOrderIDs, input.OrderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
	}
	if err := validateCandidates(candidates, input); err != nil {
		return nil, err
	}

	groups, err := s.group(ctx, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]GroupResult, len(groups))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, grp := range groups {
		g.Go(func() error {
			results[i] = s.runGroup(ctx, input.ActorUserID, grp)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Groups: results}
	if err := batch.Err(); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "groups", len(groups)), "pickup request partially failed: "+err.Error())
	}
	return batch, nil
}

// validateCandidates rejects the request as a whole: every sub-order must
// still await packaging, and a supplier may only ship its own sub-orders.
func validateCandidates(candidates []Candidate, input RequestPickupInput) error {
	if len(candidates) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no sub-orders to pick up").
			WithReason(pkgerrors.ReasonPickupInvalid)
	}
	found := make(map[uuid.UUID]struct{}, len(candidates))
	for _, c := range candidates {
		found[c.SubOrder.ID] = struct{}{}
	}
	for _, id := range input.SubOrderIDs {
		if _, ok := found[id]; !ok {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "sub-order %s not found", id).
				WithReason(pkgerrors.ReasonPickupInvalid)
		}
	}

	for _, c := range candidates {
		if c.SubOrder.Status == enums.SubOrderStatusSellerCancelled {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "sub-order %s was cancelled", c.SubOrder.Code).
				WithReason(pkgerrors.ReasonPickupOrderCancelled)
		}
	}
	for _, c := range candidates {
		if input.ActorRole == enums.UserRoleSupplier && c.SubOrder.SupplierID != input.ActorUserID {
			return pkgerrors.Newf(pkgerrors.CodeForbidden, "sub-order %s belongs to another supplier", c.SubOrder.Code)
		}
		if c.SubOrder.Status != enums.SubOrderStatusAwaitingPackaging {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "sub-order %s is %s", c.SubOrder.Code, c.SubOrder.Status).
				WithReason(pkgerrors.ReasonPickupInvalid)
		}
	}
	return nil
}

func (s *Service) group(ctx context.Context, candidates []Candidate) ([]group, error) {
	index := map[uuid.UUID]int{}
	var supplierIDs []uuid.UUID
	var groups []group
	for _, c := range candidates {
		pos, ok := index[c.SubOrder.SupplierID]
		if !ok {
			pos = len(groups)
			index[c.SubOrder.SupplierID] = pos
			supplierIDs = append(supplierIDs, c.SubOrder.SupplierID)
			groups = append(groups, group{})
		}
		groups[pos].candidates = append(groups[pos].candidates, c)
	}

	suppliers, err := s.users.FindByIDs(ctx, supplierIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load suppliers")
	}
	for i, id := range supplierIDs {
		supplier, ok := suppliers[id]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "supplier %s not found", id).
				WithReason(pkgerrors.ReasonUserNotFound)
		}
		groups[i].supplier = supplier
	}
	return groups, nil
}

func (s *Service) runGroup(ctx context.Context, actorID uuid.UUID, grp group) GroupResult {
	result := GroupResult{SupplierID: grp.supplier.ID}
	ctx = s.logg.WithField(ctx, "supplier_id", grp.supplier.ID.String())

	now := s.now()
	pickupDate := PickupDate(now, s.loc)
	shipper := supplierParty(grp.supplier, s.countryCode)
	req := courier.PickupRequest{
		Reference:  grp.supplier.ID.String(),
		Address:    shipper.Address,
		Contact:    shipper.Contact,
		PickupDate: pickupDate,
	}
	byCode := make(map[string]Candidate, len(grp.candidates))
	for _, c := range grp.candidates {
		req.Shipments = append(req.Shipments, buildShipment(c, shipper, s.countryCode))
		byCode[c.SubOrder.Code] = c
	}

	outcome, err := s.gateway.CreatePickup(ctx, req)
	if err != nil {
		s.logg.Error(ctx, "courier pickup call failed", err)
		result.Err = err
		result.Unmatched = candidateIDs(grp.candidates)
		return result
	}

	var accepted courier.PickupAccepted
	switch o := outcome.(type) {
	case courier.PickupAccepted:
		accepted = o
	case courier.PickupRejected:
		result.Err = pkgerrors.New(pkgerrors.CodeDependency, "courier rejected pickup: "+o.Reason()).
			WithReason(pkgerrors.ReasonCourier).
			WithDetails(o.Notifications)
		result.Unmatched = candidateIDs(grp.candidates)
		s.logg.Warn(ctx, result.Err.Error())
		return result
	default:
		result.Err = pkgerrors.Newf(pkgerrors.CodeDependency, "unexpected courier outcome %T", outcome).
			WithReason(pkgerrors.ReasonCourier)
		result.Unmatched = candidateIDs(grp.candidates)
		return result
	}

	reference := accepted.GUID
	if reference == "" {
		reference = accepted.ID
	}
	pickup := models.Pickup{
		ID:               uuid.New(),
		Code:             codes.New(codes.PrefixPickup, now),
		SupplierID:       grp.supplier.ID,
		PickupDate:       pickupDate.UTC(),
		CourierReference: reference,
		CreatedBy:        actorID,
		CreatedAt:        now.UTC(),
	}

	var transitions []*fulfillment.TransitionResult
	matched := map[uuid.UUID]struct{}{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		transitions = transitions[:0]
		clear(matched)
		repo := s.repo.WithTx(tx)
		if err := repo.CreatePickup(ctx, &pickup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pickup").WithReason(pkgerrors.ReasonSaveError)
		}

		for _, shipment := range accepted.Shipments {
			c, ok := byCode[shipment.Reference]
			if !ok || shipment.HasErrors || shipment.ID == "" {
				continue
			}
			if _, dup := matched[c.SubOrder.ID]; dup {
				continue
			}
			tr, err := s.machine.ApplyCourierStatusTx(ctx, tx, fulfillment.ApplyStatusInput{
				SubOrderID: c.SubOrder.ID,
				Code:       string(enums.SubOrderStatusRecordCreated),
				DeliveryID: shipment.ID,
			})
			if err != nil {
				if pkgerrors.CodeOf(err) == pkgerrors.CodeStateConflict {
					s.logg.Warn(s.logg.WithSubOrderID(ctx, c.SubOrder.ID.String()), "sub-order changed before pickup: "+err.Error())
					continue
				}
				return err
			}
			attached, err := repo.AttachPickup(ctx, c.SubOrder.ID, pickup.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach pickup").WithReason(pkgerrors.ReasonSaveError)
			}
			if !attached {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "sub-order %s already has a pickup", c.SubOrder.Code).
					WithReason(pkgerrors.ReasonPickupInvalid)
			}
			matched[c.SubOrder.ID] = struct{}{}
			transitions = append(transitions, tr)
		}

		if len(matched) == 0 {
			return pkgerrors.Newf(pkgerrors.CodeDependency, "courier pickup %s echoed none of the %d shipments", reference, len(grp.candidates)).
				WithReason(pkgerrors.ReasonCourier)
		}

		matchedIDs := make([]uuid.UUID, 0, len(matched))
		for _, c := range grp.candidates {
			if _, ok := matched[c.SubOrder.ID]; ok {
				matchedIDs = append(matchedIDs, c.SubOrder.ID)
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupCreated,
			AggregateType: enums.AggregatePickup,
			AggregateID:   pickup.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			OccurredAt:    now.UTC(),
			Data: payloads.PickupCreatedEvent{
				PickupID:    pickup.ID,
				PickupCode:  pickup.Code,
				SupplierID:  pickup.SupplierID,
				PickupDate:  pickup.PickupDate,
				SubOrderIDs: matchedIDs,
			},
		})
	})
	if err != nil {
		// The courier already holds the pickup; only our side is missing.
		s.logg.Error(s.logg.WithField(ctx, "courier_reference", reference), "persist accepted pickup", err)
		result.Err = err
		result.Unmatched = candidateIDs(grp.candidates)
		return result
	}

	for _, c := range grp.candidates {
		if _, ok := matched[c.SubOrder.ID]; ok {
			result.Matched = append(result.Matched, c.SubOrder.ID)
		} else {
			result.Unmatched = append(result.Unmatched, c.SubOrder.ID)
		}
	}
	result.Pickup = pickupFromModel(pickup)

	s.machine.Announce(ctx, transitions...)
	if s.notifier != nil {
		s.notifier.NotifyUser(ctx, grp.supplier.ID, enums.NotificationPickupCreated,
			notifications.PickupLink(pickup.ID), pickup.Code)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"pickup_id": pickup.ID.String(),
		"matched":   len(result.Matched),
		"unmatched": len(result.Unmatched),
	}), "pickup created")
	return result
}

// GetPickup returns a pickup to an admin or its supplier.
func (s *Service) GetPickup(ctx context.Context, id, actorID uuid.UUID, role enums.UserRole) (*PickupDTO, []uuid.UUID, error) {
	pickup, err := s.repo.FindPickup(ctx, id)
	if errors.Is(err, errPickupNotFound) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup not found")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup")
	}
	if role != enums.UserRoleAdmin && pickup.SupplierID != actorID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "pickup belongs to another supplier")
	}
	ids := make([]uuid.UUID, 0, len(pickup.SubOrders))
	for _, sub := range pickup.SubOrders {
		ids = append(ids, sub.ID)
	}
	return pickupFromModel(*pickup), ids, nil
}

func pickupFromModel(p models.Pickup) *PickupDTO {
	return &PickupDTO{
		ID:               p.ID,
		Code:             p.Code,
		SupplierID:       p.SupplierID,
		PickupDate:       p.PickupDate,
		CourierReference: p.CourierReference,
		CreatedAt:        p.CreatedAt,
	}
}

func candidateIDs(cs []Candidate) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.SubOrder.ID)
	}
	return ids
}
