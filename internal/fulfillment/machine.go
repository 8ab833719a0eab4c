package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/commission"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/outbox/payloads"
)

// Settler posts the ledger side of a final outcome inside the caller's tx.
type Settler interface {
	Settle(ctx context.Context, tx *gorm.DB, subject commission.SettlementSubject, outcome commission.Outcome) (bool, error)
}

type MachineParams struct {
	TxRunner   db.TxRunner
	Repo       Repository
	Catalog    *catalog.Repository
	Settler    Settler
	Outbox     outbox.Emitter
	Notifier   notifications.Notifier
	Classifier *Classifier
	Metrics    *metrics.FulfillmentMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Machine applies status changes to sub-orders. Every change is a
// compare-and-set on the stored status, so concurrent callers move a
// sub-order at most once.
type Machine struct {
	tx         db.TxRunner
	repo       Repository
	catalog    *catalog.Repository
	settler    Settler
	outbox     outbox.Emitter
	notifier   notifications.Notifier
	classifier *Classifier
	metrics    *metrics.FulfillmentMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewMachine(params MachineParams) (*Machine, error) {
	switch {
	case params.TxRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment repository required")
	case params.Catalog == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	case params.Settler == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settler required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Classifier == nil {
		params.Classifier = DefaultClassifier()
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Machine{
		tx:         params.TxRunner,
		repo:       params.Repo,
		catalog:    params.Catalog,
		settler:    params.Settler,
		outbox:     params.Outbox,
		notifier:   params.Notifier,
		classifier: params.Classifier,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        params.Now,
	}, nil
}

// Classifier exposes the code tables the machine classifies with.
func (m *Machine) Classifier() *Classifier { return m.classifier }

// Cancel moves an awaiting_packaging sub-order to seller_cancelled and puts
// its stock back. Only the seller who owns the order, or an admin, may
// cancel.
func (m *Machine) Cancel(ctx context.Context, input CancelInput) (*TransitionResult, error) {
	if input.SubOrderID == uuid.Nil || input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-order id and actor required")
	}
	ctx = m.logg.WithSubOrderID(ctx, input.SubOrderID.String())

	var result *TransitionResult
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = m.cancelTx(ctx, tx, input.SubOrderID, input.ActorUserID, input.ActorRole, uuid.Nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.announceCancellations(ctx, result)
	return result, nil
}

// CancelOrder cancels every sub-order of an order in one transaction. It
// fails without changes unless all of them are still awaiting packaging.
func (m *Machine) CancelOrder(ctx context.Context, input CancelOrderInput) ([]*TransitionResult, error) {
	if input.OrderID == uuid.Nil || input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and actor required")
	}
	ctx = m.logg.WithField(ctx, "order_id", input.OrderID.String())

	var results []*TransitionResult
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		subs, err := m.repo.WithTx(tx).ListByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
		}
		if len(subs) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		for _, sub := range subs {
			res, err := m.cancelTx(ctx, tx, sub.ID, input.ActorUserID, input.ActorRole, input.OrderID)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.announceCancellations(ctx, results...)
	return results, nil
}

func (m *Machine) cancelTx(ctx context.Context, tx *gorm.DB, subOrderID, actorID uuid.UUID, role enums.UserRole, expectOrder uuid.UUID) (*TransitionResult, error) {
	repo := m.repo.WithTx(tx)
	target, err := m.loadTarget(ctx, repo, subOrderID)
	if err != nil {
		return nil, err
	}
	if expectOrder != uuid.Nil && target.Order.ID != expectOrder {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	if role != enums.UserRoleAdmin && !(role == enums.UserRoleSeller && target.Order.SellerID == actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the ordering seller can cancel")
	}

	from := m.classifier.Parse(string(target.SubOrder.Status))
	to := Status{Kind: KindSellerCancelled, Code: string(enums.SubOrderStatusSellerCancelled)}
	if from.Kind != KindAwaitingPackaging {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "sub-order %s is %s", target.SubOrder.Code, from).
			WithReason(pkgerrors.ReasonOrderCancel)
	}

	now := m.now()
	ok, err := repo.UpdateStatus(ctx, subOrderID, target.SubOrder.Status, to.Stored(), nil, now)
	if err != nil {
		return nil, saveError(err, "update sub-order status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order changed concurrently").
			WithReason(pkgerrors.ReasonOrderCancel)
	}

	lines, err := repo.Lines(ctx, subOrderID)
	if err != nil {
		return nil, saveError(err, "load order lines")
	}
	stock := m.catalog.WithTx(tx)
	for _, line := range lines {
		if err := stock.RestoreStock(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, saveError(err, "restore stock")
		}
	}

	if _, err := repo.AppendHistory(ctx, subOrderID, to.Stored(), "", defaultDescription(to)); err != nil {
		return nil, historyError(err)
	}

	err = m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubOrderCancelled,
		AggregateType: enums.AggregateSubOrder,
		AggregateID:   subOrderID,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: role},
		OccurredAt:    now,
		Data: payloads.SubOrderCancelledEvent{
			SubOrderID:  subOrderID,
			OrderID:     target.Order.ID,
			SupplierID:  target.SubOrder.SupplierID,
			CancelledAt: now,
		},
	})
	if err != nil {
		return nil, saveError(err, "emit cancellation event")
	}

	return resultFor(target, from, to, true), nil
}

// ApplyCourierStatus applies a courier status in its own transaction and
// notifies after commit.
func (m *Machine) ApplyCourierStatus(ctx context.Context, input ApplyStatusInput) (*TransitionResult, error) {
	var result *TransitionResult
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = m.ApplyCourierStatusTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.Announce(ctx, result)
	return result, nil
}

// ApplyCourierStatusTx applies a courier status inside tx. Repeating the
// current status is a no-op with Changed=false. Final outcomes settle the
// sub-order in the same transaction. The caller must pass the result to
// Announce once tx committed.
func (m *Machine) ApplyCourierStatusTx(ctx context.Context, tx *gorm.DB, input ApplyStatusInput) (*TransitionResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.SubOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-order id required")
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"sub_order_id": input.SubOrderID.String(),
		"courier_code": input.Code,
	})

	to := m.classifier.Parse(input.Code)
	switch to.Kind {
	case KindUnrecognized:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unrecognized status code %q", input.Code).
			WithReason(pkgerrors.ReasonInvalidTransition)
	case KindAwaitingPackaging, KindSellerCancelled:
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "%s cannot be set by the courier", to.Kind).
			WithReason(pkgerrors.ReasonInvalidTransition)
	}

	repo := m.repo.WithTx(tx)
	target, err := m.loadTarget(ctx, repo, input.SubOrderID)
	if err != nil {
		return nil, err
	}
	from := m.classifier.Parse(string(target.SubOrder.Status))

	if to.Stored() == target.SubOrder.Status {
		m.logg.Debug(ctx, "courier status already applied")
		return resultFor(target, from, to, false), nil
	}
	if !CanTransition(from, to) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move sub-order from %s to %s", from, to).
			WithReason(pkgerrors.ReasonInvalidTransition)
	}
	if to.Kind == KindInTransit {
		if err := m.rejectRevisit(ctx, repo, target.SubOrder.ID, to); err != nil {
			return nil, err
		}
	}

	now := m.now()
	var deliveryID *string
	if input.DeliveryID != "" {
		deliveryID = &input.DeliveryID
	}
	ok, err := repo.UpdateStatus(ctx, target.SubOrder.ID, target.SubOrder.Status, to.Stored(), deliveryID, now)
	if err != nil {
		return nil, saveError(err, "update sub-order status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order changed concurrently").
			WithReason(pkgerrors.ReasonInvalidTransition)
	}

	description := input.Description
	if description == "" {
		description = defaultDescription(to)
	}
	if _, err := repo.AppendHistory(ctx, target.SubOrder.ID, to.Stored(), to.CourierCode(), description); err != nil {
		return nil, historyError(err)
	}

	result := resultFor(target, from, to, true)
	if outcome, final := outcomeFor(to); final {
		settled, err := m.settler.Settle(ctx, tx, commission.SettlementSubject{
			OrderID:        target.Order.ID,
			SubOrderID:     target.SubOrder.ID,
			SellerID:       target.Order.SellerID,
			SupplierID:     target.SubOrder.SupplierID,
			SellerProfit:   target.SubOrder.SellerProfit,
			SupplierProfit: target.SubOrder.SupplierProfit,
		}, outcome)
		if err != nil {
			return nil, err
		}
		result.Settled = settled
	}

	effectiveDelivery := input.DeliveryID
	if effectiveDelivery == "" && target.SubOrder.DeliveryID != nil {
		effectiveDelivery = *target.SubOrder.DeliveryID
	}
	err = m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubOrderStatusChanged,
		AggregateType: enums.AggregateSubOrder,
		AggregateID:   target.SubOrder.ID,
		OccurredAt:    now,
		Data: payloads.SubOrderStatusChangedEvent{
			SubOrderID:  target.SubOrder.ID,
			OrderID:     target.Order.ID,
			From:        from.Stored(),
			To:          to.Stored(),
			CourierCode: to.CourierCode(),
			DeliveryID:  effectiveDelivery,
			Settled:     result.Settled,
		},
	})
	if err != nil {
		return nil, saveError(err, "emit status event")
	}
	return result, nil
}

// rejectRevisit refuses an in-transit code the sub-order already passed
// through; history only moves forward.
func (m *Machine) rejectRevisit(ctx context.Context, repo Repository, subOrderID uuid.UUID, to Status) error {
	entries, err := repo.History(ctx, subOrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sub-order history")
	}
	for _, e := range entries {
		if e.Status == to.Stored() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "sub-order already passed through %s", to).
				WithReason(pkgerrors.ReasonInvalidTransition)
		}
	}
	return nil
}

// ApplyCourierUpdate resolves the sub-order from courier identifiers and
// applies the status. Unknown sub-orders, unknown codes and late updates for
// finished sub-orders are logged and ignored.
func (m *Machine) ApplyCourierUpdate(ctx context.Context, update CourierUpdate) (*UpdateResult, error) {
	ctx = m.logg.WithFields(ctx, map[string]any{
		"delivery_id":  update.DeliveryID,
		"reference":    update.Reference,
		"courier_code": update.Code,
	})

	if status := m.classifier.Parse(update.Code); status.Kind == KindUnrecognized {
		m.logg.Warn(ctx, "ignoring unrecognized courier code")
		return &UpdateResult{Ignored: true, Reason: "unrecognized code"}, nil
	}

	subOrderID, err := m.resolve(ctx, update)
	if errors.Is(err, ErrSubOrderNotFound) {
		m.logg.Warn(ctx, "ignoring courier update for unknown sub-order")
		return &UpdateResult{Ignored: true, Reason: "unknown sub-order"}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve sub-order")
	}

	result, err := m.ApplyCourierStatus(ctx, ApplyStatusInput{
		SubOrderID:  subOrderID,
		Code:        update.Code,
		Description: update.Description,
		DeliveryID:  update.DeliveryID,
	})
	if err != nil {
		if pkgerrors.ReasonOf(err) == pkgerrors.ReasonInvalidTransition {
			m.logg.Warn(ctx, "ignoring courier update: "+err.Error())
			return &UpdateResult{Ignored: true, Reason: "invalid transition"}, nil
		}
		return nil, err
	}
	return &UpdateResult{Transition: result}, nil
}

func (m *Machine) resolve(ctx context.Context, update CourierUpdate) (uuid.UUID, error) {
	if update.DeliveryID != "" {
		id, err := m.repo.FindIDByDeliveryID(ctx, update.DeliveryID)
		if err == nil || !errors.Is(err, ErrSubOrderNotFound) {
			return id, err
		}
	}
	if update.Reference != "" {
		return m.repo.FindIDByCode(ctx, update.Reference)
	}
	return uuid.Nil, ErrSubOrderNotFound
}

// History returns the sub-order's status history, oldest first. Admins,
// the ordering seller and the fulfilling supplier may read it.
func (m *Machine) History(ctx context.Context, input HistoryInput) ([]HistoryEntryDTO, error) {
	target, err := m.loadTarget(ctx, m.repo, input.SubOrderID)
	if err != nil {
		return nil, err
	}
	allowed := input.ActorRole == enums.UserRoleAdmin ||
		(input.ActorRole == enums.UserRoleSeller && target.Order.SellerID == input.ActorUserID) ||
		(input.ActorRole == enums.UserRoleSupplier && target.SubOrder.SupplierID == input.ActorUserID)
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sub-order belongs to another account")
	}
	entries, err := m.repo.History(ctx, input.SubOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load status history")
	}
	out := make([]HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyFromModel(e))
	}
	return out, nil
}

// Announce records metrics and notifies the seller for committed changes.
func (m *Machine) Announce(ctx context.Context, results ...*TransitionResult) {
	for _, r := range results {
		if r == nil || !r.Changed {
			continue
		}
		m.metrics.IncTransition(r.From.Kind.String(), r.To.Kind.String())
		if r.Settled {
			m.metrics.IncSettlement(r.To.Kind.String())
		}
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"sub_order_id": r.SubOrderID.String(),
			"from":         string(r.From.Stored()),
			"to":           string(r.To.Stored()),
			"settled":      r.Settled,
		}), "sub-order status changed")
		if m.notifier != nil {
			m.notifier.NotifyUser(ctx, r.SellerID, enums.NotificationSubOrderStatusChanged,
				notifications.SubOrderLink(r.SubOrderID), r.SubOrderCode)
		}
	}
}

func (m *Machine) announceCancellations(ctx context.Context, results ...*TransitionResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		m.metrics.IncTransition(r.From.Kind.String(), r.To.Kind.String())
		m.logg.Info(m.logg.WithSubOrderID(ctx, r.SubOrderID.String()), "sub-order cancelled")
		if m.notifier == nil {
			continue
		}
		m.notifier.NotifyUser(ctx, r.SupplierID, enums.NotificationSupplierOrderCancelled,
			notifications.SubOrderLink(r.SubOrderID), r.SubOrderCode)
		m.notifier.NotifyAllAdmins(ctx, enums.NotificationAdminOrderCancelled,
			notifications.OrderLink(r.OrderID), r.SubOrderCode)
	}
}

func (m *Machine) loadTarget(ctx context.Context, repo Repository, subOrderID uuid.UUID) (*Target, error) {
	target, err := repo.LoadTarget(ctx, subOrderID)
	if errors.Is(err, ErrSubOrderNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-order")
	}
	return target, nil
}

func resultFor(target *Target, from, to Status, changed bool) *TransitionResult {
	return &TransitionResult{
		SubOrderID:   target.SubOrder.ID,
		SubOrderCode: target.SubOrder.Code,
		OrderID:      target.Order.ID,
		OrderCode:    target.Order.Code,
		SellerID:     target.Order.SellerID,
		SupplierID:   target.SubOrder.SupplierID,
		From:         from,
		To:           to,
		Changed:      changed,
	}
}

func outcomeFor(s Status) (commission.Outcome, bool) {
	switch s.Kind {
	case KindDelivered:
		return commission.OutcomeDelivered, true
	case KindReturned:
		return commission.OutcomeReturned, true
	}
	return "", false
}

func historyError(err error) error {
	if errors.Is(err, ErrHistoryRace) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sub-order changed concurrently, retry")
	}
	return saveError(err, "append status history")
}

func saveError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message).WithReason(pkgerrors.ReasonSaveError)
}
