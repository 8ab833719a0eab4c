package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// CreateTransactionInput describes one balance movement.
type CreateTransactionInput struct {
	UserID     uuid.UUID
	Type       enums.TransactionType
	Amount     decimal.Decimal
	OrderID    *uuid.UUID
	SubOrderID *uuid.UUID
	// RequireFunds rejects the movement when it would leave a negative balance.
	RequireFunds bool
}

type TransactionDTO struct {
	ID         uuid.UUID             `json:"id"`
	Code       string                `json:"code"`
	Type       enums.TransactionType `json:"type"`
	Amount     decimal.Decimal       `json:"amount"`
	OrderID    *uuid.UUID            `json:"order_id,omitempty"`
	SubOrderID *uuid.UUID            `json:"sub_order_id,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

func TransactionFromModel(t models.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:         t.ID,
		Code:       t.Code,
		Type:       t.Type,
		Amount:     t.Amount,
		OrderID:    t.OrderID,
		SubOrderID: t.SubOrderID,
		CreatedAt:  t.CreatedAt,
	}
}

type WithdrawDTO struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Status    enums.WithdrawStatus `json:"status"`
	DecidedBy *uuid.UUID           `json:"decided_by,omitempty"`
	DecidedAt *time.Time           `json:"decided_at,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

func WithdrawFromModel(w models.WithdrawRequest) WithdrawDTO {
	return WithdrawDTO{
		ID:        w.ID,
		UserID:    w.UserID,
		Amount:    w.Amount,
		Status:    w.Status,
		DecidedBy: w.DecidedBy,
		DecidedAt: w.DecidedAt,
		CreatedAt: w.CreatedAt,
	}
}

type BalanceDTO struct {
	UserID  uuid.UUID       `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// WithdrawFilter narrows ListWithdraws. A nil UserID lists every user.
type WithdrawFilter struct {
	UserID *uuid.UUID
	Status *enums.WithdrawStatus
}
