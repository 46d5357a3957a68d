package service

import (
	"fmt"
	"math"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// OrderTotals holds one total per storefront currency, in minor units.
type OrderTotals struct {
	Primary   int64 `json:"total_primary"`
	Secondary int64 `json:"total_secondary"`
}

// For returns the total in code.
func (t OrderTotals) For(code currency.Code) int64 {
	if code == currency.Secondary {
		return t.Secondary
	}
	return t.Primary
}

// CalculateOrderTotals sums price × quantity per currency over the items that
// carry a price in that currency. Prices and quantities must be non-negative.
// A line or total that does not fit in int64 is reported against its line item.
func CalculateOrderTotals(items []models.LineItemInput) (OrderTotals, error) {
	var totals OrderTotals
	v := &errors.ValidationError{Message: "validation failed"}

	for i, item := range items {
		qty := int64(item.Quantity)
		var ok bool
		if item.UnitPricePrimary != nil {
			if totals.Primary, ok = addLine(totals.Primary, *item.UnitPricePrimary, qty); !ok {
				v.Add(fmt.Sprintf("line_items[%d]", i), "line total is too large")
			}
		}
		if item.UnitPriceSecondary != nil {
			if totals.Secondary, ok = addLine(totals.Secondary, *item.UnitPriceSecondary, qty); !ok {
				v.Add(fmt.Sprintf("line_items[%d]", i), "line total is too large")
			}
		}
	}

	if err := v.OrNil(); err != nil {
		return OrderTotals{}, err
	}
	return totals, nil
}

// addLine returns total + price*qty, or false when the result overflows.
func addLine(total, price, qty int64) (int64, bool) {
	if qty != 0 && price > math.MaxInt64/qty {
		return total, false
	}
	line := price * qty
	if total > math.MaxInt64-line {
		return total, false
	}
	return total + line, true
}

// snapshotLineItems copies validated input lines into stored line items.
func snapshotLineItems(items []models.LineItemInput) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		li := models.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Quantity:  item.Quantity,
		}
		if item.UnitPricePrimary != nil {
			li.UnitPricePrimary = *item.UnitPricePrimary
		}
		if item.UnitPriceSecondary != nil {
			li.UnitPriceSecondary = *item.UnitPriceSecondary
		}
		out = append(out, li)
	}
	return out
}
