package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/api/middleware"
	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/api/validators"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type createWithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type manualTransactionRequest struct {
	UserID     uuid.UUID       `json:"user_id" validate:"required"`
	Type       string          `json:"type" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	OrderID    *uuid.UUID      `json:"order_id"`
	SubOrderID *uuid.UUID      `json:"sub_order_id"`
}

func withdrawStatusQuery(r *http.Request) (*enums.WithdrawStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseWithdrawStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}

func LedgerBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func LedgerTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListTransactions(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CreateWithdraw(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createWithdrawRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdraw, err := svc.CreateWithdraw(r.Context(), userID, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, withdraw)
	}
}

// ListWithdraws lists the caller's own withdraw requests.
func ListWithdraws(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listWithdraws(w, r, svc, logg, ledger.WithdrawFilter{UserID: &userID})
	}
}

// AdminListWithdraws lists withdraw requests across users, optionally
// narrowed by user_id and status.
func AdminListWithdraws(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.QueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listWithdraws(w, r, svc, logg, ledger.WithdrawFilter{UserID: userID})
	}
}

func listWithdraws(w http.ResponseWriter, r *http.Request, svc ledger.Service, logg *logger.Logger, filter ledger.WithdrawFilter) {
	status, err := withdrawStatusQuery(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	filter.Status = status
	params, err := validators.PageParams(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	page, err := svc.ListWithdraws(r.Context(), filter, params)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, page)
}

func AdminApproveWithdraw(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return decideWithdraw(svc.ApproveWithdraw, logg)
}

func AdminDeclineWithdraw(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return decideWithdraw(svc.DeclineWithdraw, logg)
}

type withdrawDecision func(ctx context.Context, requestID, adminID uuid.UUID) (*ledger.WithdrawDTO, error)

func decideWithdraw(decide withdrawDecision, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.URLParamUUID(r, "withdrawId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdraw, err := decide(r.Context(), requestID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, withdraw)
	}
}

// AdminCreateTransaction records a manual balance movement.
func AdminCreateTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualTransactionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txnType, err := enums.ParseTransactionType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
			return
		}
		txn, err := svc.CreateTransaction(r.Context(), nil, ledger.CreateTransactionInput{
			UserID:     req.UserID,
			Type:       txnType,
			Amount:     req.Amount,
			OrderID:    req.OrderID,
			SubOrderID: req.SubOrderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ledger.TransactionFromModel(*txn))
	}
}
