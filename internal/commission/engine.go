// Package commission splits an order's margin between the seller and the
// platform and turns delivery outcomes into ledger instructions.
package commission

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Rates are the commercial parameters of the marketplace.
type Rates struct {
	SellerShare             decimal.Decimal
	SingleSupplierSurcharge decimal.Decimal
	PerSupplierSurcharge    decimal.Decimal
	ReturnPenalty           decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		SellerShare:             decimal.RequireFromString("0.9"),
		SingleSupplierSurcharge: decimal.NewFromInt(8),
		PerSupplierSurcharge:    decimal.NewFromInt(7),
		ReturnPenalty:           decimal.NewFromInt(3),
	}
}

// RatesFromConfig parses the configured rates. Empty values keep defaults.
func RatesFromConfig(cfg config.CommissionConfig) (Rates, error) {
	rates := DefaultRates()
	fields := []struct {
		name  string
		raw   string
		value *decimal.Decimal
	}{
		{"seller share", cfg.SellerShare, &rates.SellerShare},
		{"single supplier surcharge", cfg.SingleSupplierSurcharge, &rates.SingleSupplierSurcharge},
		{"per supplier surcharge", cfg.PerSupplierSurcharge, &rates.PerSupplierSurcharge},
		{"return penalty", cfg.ReturnPenalty, &rates.ReturnPenalty},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Rates{}, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		if v.IsNegative() {
			return Rates{}, fmt.Errorf("%s must not be negative", f.name)
		}
		*f.value = v
	}
	if rates.SellerShare.GreaterThan(decimal.NewFromInt(1)) {
		return Rates{}, fmt.Errorf("seller share must be at most 1")
	}
	return rates, nil
}

// Line is one priced order line.
type Line struct {
	SupplierID         uuid.UUID
	Quantity           int
	DetailPrice        decimal.Decimal
	WholesalePrice     decimal.Decimal
	PlatformUnitProfit decimal.Decimal
}

// SupplierProfit is what the supplier earns for the line once delivered.
func (l Line) SupplierProfit() decimal.Decimal {
	return l.WholesalePrice.Sub(l.PlatformUnitProfit).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Margin is the seller markup over wholesale for the line.
func (l Line) Margin() decimal.Decimal {
	return l.DetailPrice.Sub(l.WholesalePrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) Total() decimal.Decimal {
	return l.DetailPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SupplierQuote is the share of one supplier group, in first-seen order.
type SupplierQuote struct {
	SupplierID     uuid.UUID
	Margin         decimal.Decimal
	SellerProfit   decimal.Decimal
	SupplierProfit decimal.Decimal
}

type Quote struct {
	LineSupplierProfits []decimal.Decimal
	Suppliers           []SupplierQuote
	Total               decimal.Decimal
	Margin              decimal.Decimal
	SellerProfit        decimal.Decimal
	PlatformProfit      decimal.Decimal
	Surcharge           decimal.Decimal
	IsComposedOrder     bool
}

// Engine computes quotes and settlement plans. It holds no state beyond its
// rates and is safe for concurrent use.
type Engine struct {
	rates Rates
}

func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

func (e *Engine) Rates() Rates { return e.rates }

// Surcharge is the delivery surcharge the platform keeps for an order served
// by supplierCount suppliers.
func (e *Engine) Surcharge(supplierCount int) decimal.Decimal {
	if supplierCount <= 1 {
		return e.rates.SingleSupplierSurcharge
	}
	return e.rates.PerSupplierSurcharge.Mul(decimal.NewFromInt(int64(supplierCount)))
}

// Quote prices an order. The supplier count is the number of distinct
// suppliers among lines. Each supplier group's seller share is rounded to
// cents and the order's seller profit is their sum, so sub-order shares
// always add up to the order figure; the platform keeps the remainder.
func (e *Engine) Quote(lines []Line) Quote {
	q := Quote{
		LineSupplierProfits: make([]decimal.Decimal, len(lines)),
		Total:               decimal.Zero,
		Margin:              decimal.Zero,
		SellerProfit:        decimal.Zero,
	}
	index := map[uuid.UUID]int{}
	for i, line := range lines {
		q.LineSupplierProfits[i] = line.SupplierProfit()
		q.Total = q.Total.Add(line.Total())
		q.Margin = q.Margin.Add(line.Margin())

		pos, ok := index[line.SupplierID]
		if !ok {
			pos = len(q.Suppliers)
			index[line.SupplierID] = pos
			q.Suppliers = append(q.Suppliers, SupplierQuote{
				SupplierID:     line.SupplierID,
				Margin:         decimal.Zero,
				SupplierProfit: decimal.Zero,
			})
		}
		q.Suppliers[pos].Margin = q.Suppliers[pos].Margin.Add(line.Margin())
		q.Suppliers[pos].SupplierProfit = q.Suppliers[pos].SupplierProfit.Add(q.LineSupplierProfits[i])
	}
	for i := range q.Suppliers {
		share := q.Suppliers[i].Margin.Mul(e.rates.SellerShare).Round(2)
		q.Suppliers[i].SellerProfit = share
		q.SellerProfit = q.SellerProfit.Add(share)
	}
	q.Surcharge = e.Surcharge(len(q.Suppliers))
	q.IsComposedOrder = len(q.Suppliers) > 1
	q.PlatformProfit = q.Margin.Sub(q.SellerProfit).Add(q.Surcharge)
	return q
}

// Outcome is the final fulfillment result a settlement is computed for.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeReturned  Outcome = "returned"
	OutcomeCancelled Outcome = "cancelled"
)

// SettlementSubject carries the sub-order figures a plan is built from.
type SettlementSubject struct {
	OrderID        uuid.UUID
	SubOrderID     uuid.UUID
	SellerID       uuid.UUID
	SupplierID     uuid.UUID
	SellerProfit   decimal.Decimal
	SupplierProfit decimal.Decimal
}

// Instruction is one ledger movement.
type Instruction struct {
	UserID uuid.UUID
	Type   enums.TransactionType
	Amount decimal.Decimal
}

// Plan returns the ledger movements for outcome. The platform share has no
// owning user and produces no instruction; zero amounts are dropped.
func (e *Engine) Plan(subject SettlementSubject, outcome Outcome) []Instruction {
	var plan []Instruction
	switch outcome {
	case OutcomeDelivered:
		plan = append(plan,
			Instruction{UserID: subject.SellerID, Type: enums.TransactionTypeOrderSettlement, Amount: subject.SellerProfit},
			Instruction{UserID: subject.SupplierID, Type: enums.TransactionTypeSupplierSettlement, Amount: subject.SupplierProfit},
		)
	case OutcomeReturned:
		plan = append(plan, Instruction{
			UserID: subject.SellerID,
			Type:   enums.TransactionTypeReturnPenalty,
			Amount: e.rates.ReturnPenalty.Neg(),
		})
	}
	out := plan[:0]
	for _, ins := range plan {
		if ins.Amount.IsZero() {
			continue
		}
		out = append(out, ins)
	}
	return out
}
