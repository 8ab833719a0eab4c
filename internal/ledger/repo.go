package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
)

// Repository manages balances, transactions and withdraw requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, requireFunds bool) (bool, error)
	BalanceOf(ctx context.Context, userID uuid.UUID) (decimal.NullDecimal, bool, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactions(ctx context.Context, params listParams) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	CreateWithdraw(ctx context.Context, req *models.WithdrawRequest) error
	FindWithdraw(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error)
	DecideWithdraw(ctx context.Context, id uuid.UUID, to enums.WithdrawStatus, decidedBy uuid.UUID, at time.Time) (bool, error)
	ListWithdraws(ctx context.Context, params listParams) ([]models.WithdrawRequest, error)
}

var errWithdrawNotFound = errors.New("withdraw request not found")

type listParams struct {
	UserID *uuid.UUID
	Status *enums.WithdrawStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ApplyBalanceDelta adds amount to the user's balance in one statement. It
// reports false when no row matched: the user is missing, the balance is
// NULL, or (with requireFunds) the result would go negative.
func (r *repository) ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, requireFunds bool) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND balance IS NOT NULL", userID)
	if requireFunds {
		query = query.Where("balance + ? >= 0", amount)
	}
	res := query.UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// BalanceOf returns the stored balance and whether the user exists.
func (r *repository) BalanceOf(ctx context.Context, userID uuid.UUID) (decimal.NullDecimal, bool, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "balance").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.NullDecimal{}, false, nil
	}
	if err != nil {
		return decimal.NullDecimal{}, false, err
	}
	return user.Balance, true, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, params listParams) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	query = applyCursor(query, params.Cursor)
	var rows []models.Transaction
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumTransactions totals every transaction amount of a user.
func (r *repository) SumTransactions(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var rows []models.Transaction
	if err := r.db.WithContext(ctx).Select("amount").Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Amount)
	}
	return sum, nil
}

func (r *repository) CreateWithdraw(ctx context.Context, req *models.WithdrawRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindWithdraw(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error) {
	var req models.WithdrawRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errWithdrawNotFound
		}
		return nil, err
	}
	return &req, nil
}

// DecideWithdraw moves a pending request to its final status. It reports
// false when the request was no longer pending.
func (r *repository) DecideWithdraw(ctx context.Context, id uuid.UUID, to enums.WithdrawStatus, decidedBy uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WithdrawRequest{}).
		Where("id = ? AND status = ?", id, enums.WithdrawStatusPending).
		UpdateColumns(map[string]any{
			"status":     to,
			"decided_by": decidedBy,
			"decided_at": at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListWithdraws(ctx context.Context, params listParams) ([]models.WithdrawRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.WithdrawRequest{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	query = applyCursor(query, params.Cursor)
	var rows []models.WithdrawRequest
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyCursor(query *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return query
	}
	return query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
}
