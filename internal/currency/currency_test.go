package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		in      string
		want    Code
		wantErr bool
	}{
		{"LKR", LKR, false},
		{"lkr", LKR, false},
		{"PRIMARY", LKR, false},
		{"JPY", JPY, false},
		{" secondary ", JPY, false},
		{"USD", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinimumCharge(t *testing.T) {
	assert.Equal(t, int64(5000), LKR.MinimumCharge())
	assert.Equal(t, int64(50), JPY.MinimumCharge())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Rs. 1500.00", LKR.Format(150000))
	assert.Equal(t, "¥1500", JPY.Format(1500))
}

func TestForCountry(t *testing.T) {
	assert.Equal(t, JPY, ForCountry("JP"))
	assert.Equal(t, JPY, ForCountry("jp"))
	assert.Equal(t, LKR, ForCountry("LK"))
	assert.Equal(t, LKR, ForCountry(""))
}

func TestContext_SetCurrencyIsIdempotent(t *testing.T) {
	ctx := NewContext(decimal.RequireFromString("0.35"))
	assert.Equal(t, LKR, ctx.Active())

	require.NoError(t, ctx.SetCurrency("JPY"))
	first := ctx.PriceOf(2000, 1500)
	firstRate := ctx.Rate()

	require.NoError(t, ctx.SetCurrency("JPY"))
	assert.Equal(t, JPY, ctx.Active())
	assert.Equal(t, first, ctx.PriceOf(2000, 1500))
	assert.True(t, firstRate.Equal(ctx.Rate()))
	assert.Equal(t, int64(1500), first)
}

func TestContext_SetCurrencyRejectsUnknown(t *testing.T) {
	ctx := NewContext(decimal.RequireFromString("0.35"))
	require.NoError(t, ctx.SetCurrency("SECONDARY"))

	assert.Error(t, ctx.SetCurrency("EUR"))
	assert.Equal(t, JPY, ctx.Active())
}

func TestContext_DisplayConvert(t *testing.T) {
	ctx := NewContext(decimal.RequireFromString("0.35"))
	assert.Equal(t, "1000", ctx.DisplayConvert(100000).String())

	require.NoError(t, ctx.SetCurrency("JPY"))
	assert.Equal(t, "350", ctx.DisplayConvert(100000).String())
	assert.Equal(t, "¥350", ctx.Format(350))
}

func TestParseRate(t *testing.T) {
	rate, err := ParseRate("0.35")
	require.NoError(t, err)
	assert.Equal(t, "0.35", rate.String())

	_, err = ParseRate("0")
	assert.Error(t, err)
	_, err = ParseRate("abc")
	assert.Error(t, err)
}
