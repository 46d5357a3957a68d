package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
)

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want OrderStatus
	}{
		{"Pending", OrderStatusPending},
		{"PACKING", OrderStatusPacking},
		{"On the way", OrderStatusOnTheWay},
		{"ON_THE_WAY", OrderStatusOnTheWay},
		{"on-the-way", OrderStatusOnTheWay},
		{"delivered", OrderStatusDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOrderStatus("Shipped")
	assert.Error(t, err)
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("CARD")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCard, m)

	m, err = ParsePaymentMethod("CASH_ON_DELIVERY")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCashOnDelivery, m)

	_, err = ParsePaymentMethod("bitcoin")
	assert.Error(t, err)
}

func TestOrder_WithDisplayTotal(t *testing.T) {
	o := &Order{TotalPrimary: 3000, TotalSecondary: 1500, SelectedCurrency: currency.Secondary}

	shown := o.WithDisplayTotal()
	require.NotNil(t, shown.DisplayTotal)
	assert.Equal(t, int64(1500), *shown.DisplayTotal)
	assert.Nil(t, o.DisplayTotal)

	o.SelectedCurrency = currency.Primary
	assert.Equal(t, int64(3000), *o.WithDisplayTotal().DisplayTotal)
}
