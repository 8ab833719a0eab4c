package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateSubOrder        OutboxAggregateType = "sub_order"
	AggregatePickup          OutboxAggregateType = "pickup"
	AggregateTransaction     OutboxAggregateType = "transaction"
	AggregateWithdrawRequest OutboxAggregateType = "withdraw_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubOrder,
	AggregatePickup,
	AggregateTransaction,
	AggregateWithdrawRequest,
}

// IsValid reports whether the value matches the canonical aggregate types.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventSubOrderStatusChanged    OutboxEventType = "sub_order_status_changed"
	EventSubOrderCancelled        OutboxEventType = "sub_order_cancelled"
	EventPickupCreated            OutboxEventType = "pickup_created"
	EventLedgerTransactionCreated OutboxEventType = "ledger_transaction_created"
	EventWithdrawDecided          OutboxEventType = "withdraw_decided"
)

var validEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventSubOrderStatusChanged,
	EventSubOrderCancelled,
	EventPickupCreated,
	EventLedgerTransactionCreated,
	EventWithdrawDecided,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why a row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
