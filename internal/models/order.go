package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
)

// OrderStatus is the fulfilment stage of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPacking   OrderStatus = "Packing"
	OrderStatusOnTheWay  OrderStatus = "On the way"
	OrderStatusDelivered OrderStatus = "Delivered"
)

// OrderStatuses lists every assignable status in fulfilment order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPacking,
	OrderStatusOnTheWay,
	OrderStatusDelivered,
}

// ParseOrderStatus accepts the display form ("On the way") and the enum
// form ("ON_THE_WAY"), case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, st := range OrderStatuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash-on-delivery"
	PaymentMethodCard           PaymentMethod = "credit-card"
)

// ParsePaymentMethod accepts the stored form and the CASH_ON_DELIVERY/CARD aliases.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash-on-delivery", "cash_on_delivery", "cod":
		return PaymentMethodCashOnDelivery, nil
	case "credit-card", "credit_card", "card":
		return PaymentMethodCard, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// CustomerDetails is the contact snapshot taken at checkout.
type CustomerDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// LineItem is a product snapshot at purchase time. Prices are minor units.
type LineItem struct {
	ProductID          string `json:"product_id"`
	Name               string `json:"name"`
	Size               string `json:"size,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitPricePrimary   int64  `json:"unit_price_primary"`
	UnitPriceSecondary int64  `json:"unit_price_secondary"`
}

// Order is a placed order. Only Status changes after creation.
type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	LineItems        []LineItem      `json:"line_items"`
	TotalPrimary     int64           `json:"total_primary"`
	TotalSecondary   int64           `json:"total_secondary"`
	SelectedCurrency currency.Code   `json:"selected_currency"`
	CustomerDetails  CustomerDetails `json:"customer_details"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentIntentID  string          `json:"payment_intent_id,omitempty"`
	IdempotencyKey   string          `json:"-"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// DisplayTotal and Customer are set on admin listings only.
	DisplayTotal *int64           `json:"display_total,omitempty"`
	Customer     *CustomerSummary `json:"customer,omitempty"`
}

// ActiveTotal is the total in the currency the customer paid in.
func (o *Order) ActiveTotal() int64 {
	if o.SelectedCurrency == currency.Secondary {
		return o.TotalSecondary
	}
	return o.TotalPrimary
}

// WithDisplayTotal returns a copy carrying the admin display total.
func (o *Order) WithDisplayTotal() *Order {
	cp := *o
	total := o.ActiveTotal()
	cp.DisplayTotal = &total
	return &cp
}

// LineItemInput is a cart line as submitted. Prices are optional per currency.
type LineItemInput struct {
	ProductID          string `json:"product_id"`
	Name               string `json:"name"`
	Size               string `json:"size,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitPricePrimary   *int64 `json:"unit_price_primary,omitempty"`
	UnitPriceSecondary *int64 `json:"unit_price_secondary,omitempty"`
}

// SubmitOrderRequest is the body of POST /orders. Totals are advisory; the
// server recomputes them from the line items.
type SubmitOrderRequest struct {
	CustomerID       string          `json:"customer_id,omitempty"`
	LineItems        []LineItemInput `json:"line_items"`
	TotalPrimary     *int64          `json:"total_primary,omitempty"`
	TotalSecondary   *int64          `json:"total_secondary,omitempty"`
	SelectedCurrency string          `json:"selected_currency"`
	CustomerDetails  CustomerDetails `json:"customer_details"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentIntentID  string          `json:"payment_intent_id,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// UpdateOrderStatusRequest is the body of PUT /orders/:id.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderScope selects which orders a listing may see.
type OrderScope struct {
	CustomerID string
	Admin      bool
}

// OrderListFilter narrows a repository listing.
type OrderListFilter struct {
	CustomerID string
	Status     *OrderStatus
	Limit      int
	Offset     int
}

// OrderDetails is an order expanded with customer and product summaries.
type OrderDetails struct {
	*Order
	Customer *CustomerSummary           `json:"customer,omitempty"`
	Products map[string]*ProductSummary `json:"products,omitempty"`
}

// CustomerSummary is what the user directory exposes about a customer.
type CustomerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderPage is one page of a listing, newest first.
type OrderPage struct {
	Orders []*Order `json:"orders"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
