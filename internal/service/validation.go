package service

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// checkout is a submit request after validation.
type checkout struct {
	currency currency.Code
	method   models.PaymentMethod
	totals   OrderTotals
}

// ValidateSubmitOrderRequest checks an order submission and recomputes its
// totals. Every problem found is reported in a single ValidationError.
func ValidateSubmitOrderRequest(req *models.SubmitOrderRequest) (*checkout, error) {
	v := &errors.ValidationError{Message: "validation failed"}
	out := &checkout{}

	code, err := currency.ParseCode(req.SelectedCurrency)
	if err != nil {
		v.Add("selected_currency", "selected currency must be PRIMARY or SECONDARY")
	}
	out.currency = code

	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		v.Add("payment_method", "payment method must be CASH_ON_DELIVERY or CARD")
	}
	out.method = method

	if len(req.LineItems) == 0 {
		v.Add("line_items", "at least one line item is required")
	}
	for i, item := range req.LineItems {
		validateLineItem(v, i, &item, code)
	}

	validateCustomerDetails(v, &req.CustomerDetails)

	if !v.HasErrors() {
		totals, err := CalculateOrderTotals(req.LineItems)
		if err != nil {
			return nil, err
		}
		out.totals = totals
		validateClientTotals(v, req, out)
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func validateLineItem(v *errors.ValidationError, index int, item *models.LineItemInput, selected currency.Code) {
	field := fmt.Sprintf("line_items[%d]", index)

	if strings.TrimSpace(item.ProductID) == "" {
		v.Add(field+".product_id", "product ID is required")
	}
	if item.Quantity <= 0 {
		v.Add(field+".quantity", "quantity must be positive")
	}
	if item.UnitPricePrimary != nil && *item.UnitPricePrimary < 0 {
		v.Add(field+".unit_price_primary", "unit price cannot be negative")
	}
	if item.UnitPriceSecondary != nil && *item.UnitPriceSecondary < 0 {
		v.Add(field+".unit_price_secondary", "unit price cannot be negative")
	}

	switch selected {
	case currency.Primary:
		if item.UnitPricePrimary == nil {
			v.Add(field+".unit_price_primary", "price in the selected currency is required")
		}
	case currency.Secondary:
		if item.UnitPriceSecondary == nil {
			v.Add(field+".unit_price_secondary", "price in the selected currency is required")
		}
	}
}

func validateCustomerDetails(v *errors.ValidationError, d *models.CustomerDetails) {
	if strings.TrimSpace(d.Name) == "" {
		v.Add("customer_details.name", "name is required")
	}
	if strings.TrimSpace(d.Email) == "" {
		v.Add("customer_details.email", "email is required")
	} else if _, err := mail.ParseAddress(d.Email); err != nil {
		v.Add("customer_details.email", "email is not a valid address")
	}
	if strings.TrimSpace(d.Phone) == "" {
		v.Add("customer_details.phone", "phone is required")
	}
	if strings.TrimSpace(d.Address) == "" {
		v.Add("customer_details.address", "address is required")
	}
}

// validateClientTotals rejects a non-zero supplied total for the selected
// currency that disagrees with the line items.
func validateClientTotals(v *errors.ValidationError, req *models.SubmitOrderRequest, c *checkout) {
	supplied := req.TotalPrimary
	field := "total_primary"
	if c.currency == currency.Secondary {
		supplied = req.TotalSecondary
		field = "total_secondary"
	}
	if supplied == nil || *supplied == 0 {
		return
	}
	if want := c.totals.For(c.currency); *supplied != want {
		v.Add(field, fmt.Sprintf("total does not match line items, expected %d", want))
	}
}

// ValidatePaymentIntentRequest checks an intent request and resolves its currency.
func ValidatePaymentIntentRequest(req *models.CreatePaymentIntentRequest) (currency.Code, error) {
	v := &errors.ValidationError{Message: "validation failed"}

	var code currency.Code
	if req.Currency != strings.ToLower(req.Currency) || len(req.Currency) != 3 {
		v.Add("currency", "currency must be a lowercase 3-letter ISO code")
	} else if parsed, err := currency.ParseCode(req.Currency); err != nil {
		v.Add("currency", "currency is not supported")
	} else {
		code = parsed
	}

	if req.Amount <= 0 {
		v.Add("amount", "amount must be positive")
	}

	if err := v.OrNil(); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateUpdateOrderStatusRequest resolves the requested status.
func ValidateUpdateOrderStatusRequest(req *models.UpdateOrderStatusRequest) (models.OrderStatus, error) {
	if strings.TrimSpace(req.Status) == "" {
		return "", errors.NewValidationError("status", "status is required")
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return "", errors.NewValidationError("status", "invalid order status")
	}
	return status, nil
}

// normalizePage applies listing defaults and bounds.
func normalizePage(limit, offset int) (int, int, error) {
	if limit < 0 {
		return 0, 0, errors.NewValidationError("limit", "limit cannot be negative")
	}
	if offset < 0 {
		return 0, 0, errors.NewValidationError("offset", "offset cannot be negative")
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}
