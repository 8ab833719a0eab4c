package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
)

const (
	// StockReserve is the number of units a product must keep after an order.
	StockReserve = 6
)

// MinMarkup is the lowest detail price allowed, as a multiple of wholesale.
var MinMarkup = decimal.RequireFromString("1.1")

// ProductReader loads the products referenced by an order.
type ProductReader interface {
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// LineIssue describes why a line was refused.
type LineIssue struct {
	Index     int       `json:"index"`
	ProductID uuid.UUID `json:"product_id"`
	Issue     string    `json:"issue"`
}

// Validator runs the business checks a client order must pass before it is
// submitted.
type Validator struct {
	products ProductReader
}

func NewValidator(products ProductReader) *Validator {
	return &Validator{products: products}
}

// Validate checks every line and reports all issues at once.
func (v *Validator) Validate(ctx context.Context, input SubmitOrderInput) error {
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line")
	}

	ids := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := v.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	type variant struct {
		product     uuid.UUID
		color, size string
	}
	seen := map[variant]int{}
	requested := map[uuid.UUID]int{}
	var issues []LineIssue
	stockShort := false
	add := func(i int, line SubmitLine, msg string) {
		issues = append(issues, LineIssue{Index: i, ProductID: line.ProductID, Issue: msg})
	}

	for i, line := range input.Lines {
		key := variant{product: line.ProductID, color: line.Color, size: line.Size}
		if first, dup := seen[key]; dup {
			add(i, line, fmt.Sprintf("duplicates line %d", first))
			continue
		}
		seen[key] = i

		if line.Quantity <= 0 {
			add(i, line, "quantity must be positive")
			continue
		}
		product, ok := products[line.ProductID]
		if !ok {
			add(i, line, "product not found")
			continue
		}
		floor := product.WholesalePrice.Mul(MinMarkup)
		if line.DetailPrice.LessThan(floor) {
			add(i, line, fmt.Sprintf("detail price must be at least %s", floor.StringFixed(2)))
		}
		requested[line.ProductID] += line.Quantity
		if product.Stock < requested[line.ProductID]+StockReserve {
			add(i, line, fmt.Sprintf("only %d units available", max(product.Stock-StockReserve, 0)))
			stockShort = true
		}
	}

	if len(issues) == 0 {
		return nil
	}
	verr := pkgerrors.New(pkgerrors.CodeValidation, "order lines are invalid").WithDetails(issues)
	if stockShort {
		verr = verr.WithReason(pkgerrors.ReasonInsufficientStock)
	}
	return verr
}
