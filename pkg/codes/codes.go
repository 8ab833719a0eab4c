// Package codes builds the human-readable references printed on orders,
// sub-orders, pickups and ledger entries.
package codes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixOrder       = "ORD"
	PrefixPickup      = "PCK"
	PrefixTransaction = "TRX"
)

// New returns PREFIX-YYMMDD-XXXXXXXX using the date of now (UTC) and eight
// random hex characters.
func New(prefix string, now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("060102"), random)
}

// SubOrder derives a sub-order code from its order code and 1-based position.
func SubOrder(orderCode string, position int) string {
	return fmt.Sprintf("%s-%d", orderCode, position)
}
