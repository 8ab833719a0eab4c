package pickups

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/internal/courier"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
)

// buildShipment describes one sub-order as a courier shipment. Reference1
// is the sub-order code, which the courier echoes back.
func buildShipment(c Candidate, shipper courier.Party, countryCode string) courier.Shipment {
	reference2 := c.Order.Code
	if c.Parts > 1 {
		reference2 = fmt.Sprintf("%s part %d of %d", c.Order.Code, c.SubOrder.Position, c.Parts)
	}

	cod := decimal.Zero
	names := make([]string, 0, len(c.SubOrder.Lines))
	items := make([]courier.Item, 0, len(c.SubOrder.Lines))
	for _, line := range c.SubOrder.Lines {
		cod = cod.Add(line.DetailPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		names = append(names, line.ProductName)
		weight := 0.0
		if line.WeightKg > 0 {
			weight = line.WeightKg * float64(line.Quantity)
		}
		items = append(items, courier.Item{
			Quantity:  line.Quantity,
			Reference: line.ProductID.String(),
			Comments:  itemComment(line),
			WeightKg:  weight,
		})
	}

	var comments []string
	if c.Order.Openable {
		comments = append(comments, "openable")
	}
	if c.Order.Fragile {
		comments = append(comments, "fragile")
	}
	if c.Order.Note != nil && *c.Order.Note != "" {
		comments = append(comments, *c.Order.Note)
	}

	return courier.Shipment{
		Reference1: c.SubOrder.Code,
		Reference2: reference2,
		Shipper:    shipper,
		Consignee: courier.Party{
			Reference: c.Order.Code,
			Address: courier.Address{
				Line1:       c.Order.ClientAddress,
				City:        c.Order.ClientCity,
				State:       c.Order.ClientState,
				CountryCode: countryCode,
			},
			Contact: courier.Contact{
				Name:  c.Order.ClientName,
				Phone: c.Order.ClientPhone,
			},
		},
		Description:    strings.Join(names, ", "),
		Comments:       strings.Join(comments, "; "),
		CashOnDelivery: cod,
		Items:          items,
	}
}

func itemComment(line models.OrderLine) string {
	var variant []string
	if line.Color != "" {
		variant = append(variant, line.Color)
	}
	if line.Size != "" {
		variant = append(variant, line.Size)
	}
	if len(variant) == 0 {
		return line.ProductName
	}
	return line.ProductName + " (" + strings.Join(variant, ", ") + ")"
}

func supplierParty(supplier models.User, countryCode string) courier.Party {
	return courier.Party{
		Reference: supplier.ID.String(),
		Address: courier.Address{
			Line1:       supplier.Address,
			City:        supplier.City,
			State:       supplier.State,
			CountryCode: countryCode,
		},
		Contact: courier.Contact{
			Name:    supplier.Name,
			Company: supplier.Name,
			Phone:   supplier.Phone,
			Email:   supplier.Email,
		},
	}
}
