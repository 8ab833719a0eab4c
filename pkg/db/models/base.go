package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model; used by sqlite auto-migration.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&SellerListing{},
		&Order{},
		&SubOrder{},
		&OrderLine{},
		&StatusHistoryEntry{},
		&Pickup{},
		&Transaction{},
		&WithdrawRequest{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
