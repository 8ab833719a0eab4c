package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/pkg/codes"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// DefaultMinWithdraw applies when ServiceParams.MinWithdraw is zero.
var DefaultMinWithdraw = decimal.NewFromInt(50)

// Service moves money between the platform and user balances. Every balance
// change is paired with exactly one Transaction row in the same database
// transaction.
type Service interface {
	CreateTransaction(ctx context.Context, tx *gorm.DB, input CreateTransactionInput) (*models.Transaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (*BalanceDTO, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[TransactionDTO], error)
	CreateWithdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*WithdrawDTO, error)
	ApproveWithdraw(ctx context.Context, requestID, adminID uuid.UUID) (*WithdrawDTO, error)
	DeclineWithdraw(ctx context.Context, requestID, adminID uuid.UUID) (*WithdrawDTO, error)
	ListWithdraws(ctx context.Context, filter WithdrawFilter, params pagination.Params) (*types.Page[WithdrawDTO], error)
}

type ServiceParams struct {
	TxRunner    db.TxRunner
	Repo        Repository
	Outbox      outbox.Emitter
	Notifier    notifications.Notifier
	Logger      *logger.Logger
	MinWithdraw decimal.Decimal
	Now         func() time.Time
}

type service struct {
	tx          db.TxRunner
	repo        Repository
	outbox      outbox.Emitter
	notifier    notifications.Notifier
	logg        *logger.Logger
	minWithdraw decimal.Decimal
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.MinWithdraw.IsZero() {
		params.MinWithdraw = DefaultMinWithdraw
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:          params.TxRunner,
		repo:        params.Repo,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		logg:        params.Logger,
		minWithdraw: params.MinWithdraw,
		now:         params.Now,
	}, nil
}

// CreateTransaction applies input.Amount to the user's balance and records
// the movement. When tx is nil the work runs in its own transaction.
func (s *service) CreateTransaction(ctx context.Context, tx *gorm.DB, input CreateTransactionInput) (*models.Transaction, error) {
	if err := validateTransactionInput(input); err != nil {
		return nil, err
	}
	if tx != nil {
		return s.createTransaction(ctx, tx, input)
	}
	var created *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.createTransaction(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateTransactionInput(input CreateTransactionInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", input.Type)
	}
	if input.Amount.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must not be zero")
	}
	return nil
}

func (s *service) createTransaction(ctx context.Context, tx *gorm.DB, input CreateTransactionInput) (*models.Transaction, error) {
	repo := s.repo.WithTx(tx)

	applied, err := repo.ApplyBalanceDelta(ctx, input.UserID, input.Amount, input.RequireFunds)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update balance").WithReason(pkgerrors.ReasonSaveError)
	}
	if !applied {
		return nil, s.balanceRejection(ctx, repo, input.UserID)
	}

	txn := &models.Transaction{
		Code:       codes.New(codes.PrefixTransaction, s.now()),
		UserID:     input.UserID,
		Type:       input.Type,
		Amount:     input.Amount,
		OrderID:    input.OrderID,
		SubOrderID: input.SubOrderID,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert transaction").WithReason(pkgerrors.ReasonSaveError)
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLedgerTransactionCreated,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		OccurredAt:    s.now(),
		Data: payloads.LedgerTransactionCreatedEvent{
			TransactionID: txn.ID,
			Code:          txn.Code,
			UserID:        txn.UserID,
			Type:          txn.Type,
			Amount:        txn.Amount,
			OrderID:       txn.OrderID,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit ledger event")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"transaction_code": txn.Code,
		"user_id":          txn.UserID.String(),
		"type":             txn.Type,
		"amount":           txn.Amount.String(),
	}), "ledger transaction recorded")
	return txn, nil
}

// balanceRejection explains why a conditional balance update matched no row.
func (s *service) balanceRejection(ctx context.Context, repo Repository, userID uuid.UUID) error {
	balance, found, err := repo.BalanceOf(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load balance")
	}
	if !found || !balance.Valid {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found or balance unavailable").
			WithReason(pkgerrors.ReasonUserNotFoundOrInvalidBalance)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient balance").
		WithReason(pkgerrors.ReasonInsufficientBalance)
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceDTO, error) {
	balance, found, err := s.repo.BalanceOf(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	if !found || !balance.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found or balance unavailable").
			WithReason(pkgerrors.ReasonUserNotFoundOrInvalidBalance)
	}
	return &BalanceDTO{UserID: userID, Balance: balance.Decimal}, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[TransactionDTO], error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListTransactions(ctx, listParams{
		UserID: &userID,
		Limit:  pagination.LimitWithBuffer(params.Limit),
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return types.MapPage(rows, next, TransactionFromModel), nil
}

func (s *service) CreateWithdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*WithdrawDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount.LessThan(s.minWithdraw) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "withdraw amount must be at least %s", s.minWithdraw.String()).
			WithReason(pkgerrors.ReasonWithdrawBelowMinimum)
	}

	balance, found, err := s.repo.BalanceOf(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	if !found || !balance.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found or balance unavailable").
			WithReason(pkgerrors.ReasonUserNotFoundOrInvalidBalance)
	}
	if amount.GreaterThan(balance.Decimal) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "withdraw amount exceeds balance").
			WithReason(pkgerrors.ReasonInsufficientBalance)
	}

	req := &models.WithdrawRequest{
		UserID: userID,
		Amount: amount,
		Status: enums.WithdrawStatusPending,
	}
	if err := s.repo.CreateWithdraw(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create withdraw request").WithReason(pkgerrors.ReasonSaveError)
	}

	s.notifyAdmins(ctx, enums.NotificationAdminWithdrawRequested, notifications.WithdrawLink(req.ID))
	dto := WithdrawFromModel(*req)
	return &dto, nil
}

// ApproveWithdraw debits the requested amount and marks the request approved
// in one transaction. A balance that dropped below the amount since the
// request was filed rejects the approval.
func (s *service) ApproveWithdraw(ctx context.Context, requestID, adminID uuid.UUID) (*WithdrawDTO, error) {
	return s.decide(ctx, requestID, adminID, enums.WithdrawStatusApproved)
}

func (s *service) DeclineWithdraw(ctx context.Context, requestID, adminID uuid.UUID) (*WithdrawDTO, error) {
	return s.decide(ctx, requestID, adminID, enums.WithdrawStatusDeclined)
}

func (s *service) decide(ctx context.Context, requestID, adminID uuid.UUID, to enums.WithdrawStatus) (*WithdrawDTO, error) {
	if requestID == uuid.Nil || adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdraw request id and admin id required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"withdraw_request_id": requestID.String(), "decision": to})

	var decided models.WithdrawRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindWithdraw(ctx, requestID)
		if err != nil {
			if errors.Is(err, errWithdrawNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdraw request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdraw request")
		}
		if req.Status != enums.WithdrawStatusPending {
			return errNotPending(req.Status)
		}

		now := s.now()
		ok, err := repo.DecideWithdraw(ctx, req.ID, to, adminID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update withdraw request").WithReason(pkgerrors.ReasonSaveError)
		}
		if !ok {
			return errNotPending(req.Status)
		}

		if to == enums.WithdrawStatusApproved {
			_, err := s.createTransaction(ctx, tx, CreateTransactionInput{
				UserID:       req.UserID,
				Type:         enums.TransactionTypeWithdraw,
				Amount:       req.Amount.Neg(),
				RequireFunds: true,
			})
			if err != nil {
				return err
			}
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawDecided,
			AggregateType: enums.AggregateWithdrawRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.UserRoleAdmin},
			OccurredAt:    now,
			Data: payloads.WithdrawDecidedEvent{
				WithdrawRequestID: req.ID,
				UserID:            req.UserID,
				Amount:            req.Amount,
				Status:            to,
				DecidedBy:         adminID,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit withdraw event")
		}

		req.Status = to
		req.DecidedBy = &adminID
		req.DecidedAt = &now
		decided = *req
		return nil
	})
	if err != nil {
		return nil, err
	}

	typ := enums.NotificationWithdrawDeclined
	if to == enums.WithdrawStatusApproved {
		typ = enums.NotificationWithdrawApproved
	}
	if s.notifier != nil {
		s.notifier.NotifyUser(ctx, decided.UserID, typ, notifications.WithdrawLink(decided.ID), "")
	}
	s.logg.Info(ctx, "withdraw request decided")

	dto := WithdrawFromModel(decided)
	return &dto, nil
}

func errNotPending(status enums.WithdrawStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "withdraw request is %s", status).
		WithReason(pkgerrors.ReasonWithdrawNotPending)
}

func (s *service) ListWithdraws(ctx context.Context, filter WithdrawFilter, params pagination.Params) (*types.Page[WithdrawDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid withdraw status %q", *filter.Status)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListWithdraws(ctx, listParams{
		UserID: filter.UserID,
		Status: filter.Status,
		Limit:  pagination.LimitWithBuffer(params.Limit),
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list withdraw requests")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(w models.WithdrawRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})
	return types.MapPage(rows, next, WithdrawFromModel), nil
}

func (s *service) notifyAdmins(ctx context.Context, typ enums.NotificationType, link string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyAllAdmins(ctx, typ, link, "")
}
