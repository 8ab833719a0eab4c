package commission

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// TransactionCreator is the ledger surface the settler posts through.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, tx *gorm.DB, input ledger.CreateTransactionInput) (*models.Transaction, error)
}

// Settler posts settlement plans to the ledger exactly once per sub-order.
type Settler struct {
	engine *Engine
	ledger TransactionCreator
	logg   *logger.Logger
	now    func() time.Time
}

func NewSettler(engine *Engine, txns TransactionCreator, logg *logger.Logger) *Settler {
	return &Settler{
		engine: engine,
		ledger: txns,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Settle stamps the sub-order as settled and posts the plan for outcome, both
// inside tx. It reports false without touching the ledger when the sub-order
// was settled before. Cancellations have nothing to settle.
func (s *Settler) Settle(ctx context.Context, tx *gorm.DB, subject SettlementSubject, outcome Outcome) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "settlement requires a transaction")
	}
	if outcome == OutcomeCancelled {
		return false, nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"sub_order_id": subject.SubOrderID.String(),
		"outcome":      string(outcome),
	})

	res := tx.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ? AND settled_at IS NULL", subject.SubOrderID).
		UpdateColumn("settled_at", s.now())
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "mark sub-order settled").WithReason(pkgerrors.ReasonSaveError)
	}
	if res.RowsAffected == 0 {
		s.logg.Warn(ctx, "sub-order already settled")
		return false, nil
	}

	orderID, subOrderID := subject.OrderID, subject.SubOrderID
	for _, ins := range s.engine.Plan(subject, outcome) {
		_, err := s.ledger.CreateTransaction(ctx, tx, ledger.CreateTransactionInput{
			UserID:     ins.UserID,
			Type:       ins.Type,
			Amount:     ins.Amount,
			OrderID:    &orderID,
			SubOrderID: &subOrderID,
		})
		if err != nil {
			return false, err
		}
	}
	s.logg.Info(ctx, "sub-order settled")
	return true, nil
}
