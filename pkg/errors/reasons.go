package errors

type Reason string

const (
	ReasonUserNotFound                 Reason = "user-not-found"
	ReasonSaveError                    Reason = "save-error"
	ReasonOrderCancel                  Reason = "order-cancel-error"
	ReasonPickupOrderCancelled         Reason = "pickup-request-order-cancelled-error"
	ReasonPickupInvalid                Reason = "pickup-request-invalid-error"
	ReasonUserNotFoundOrInvalidBalance Reason = "user-not-found-or-invalid-balance"
	ReasonInsufficientBalance          Reason = "insufficient-balance"
	ReasonWithdrawNotPending           Reason = "withdraw-not-pending"
	ReasonWithdrawBelowMinimum         Reason = "withdraw-below-minimum"
	ReasonCourier                      Reason = "courier-error"
	ReasonInvalidTransition            Reason = "invalid-status-transition"
	ReasonInsufficientStock            Reason = "insufficient-stock"
)
