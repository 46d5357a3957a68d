// Package currency holds the two storefront currencies and the shopper-facing
// currency context. Amounts are integer minor units of their currency.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Code is an ISO 4217 currency code supported by the storefront.
type Code string

const (
	LKR Code = "LKR"
	JPY Code = "JPY"

	// Primary and Secondary name the two price columns every product carries.
	Primary   = LKR
	Secondary = JPY
)

// MinimumChargeMajor is the processor floor expressed in major units.
const MinimumChargeMajor = 50

// ErrUnsupported is returned for codes other than the primary and secondary currency.
var ErrUnsupported = errors.New("unsupported currency")

// ParseCode accepts an ISO code or the PRIMARY/SECONDARY role name, case-insensitively.
func ParseCode(s string) (Code, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LKR", "PRIMARY":
		return LKR, nil
	case "JPY", "SECONDARY":
		return JPY, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, s)
}

// Exponent is the number of minor-unit digits.
func (c Code) Exponent() int32 {
	switch c {
	case JPY:
		return 0
	default:
		return 2
	}
}

// MinimumCharge is the smallest chargeable amount in minor units.
func (c Code) MinimumCharge() int64 {
	min := int64(MinimumChargeMajor)
	for i := int32(0); i < c.Exponent(); i++ {
		min *= 10
	}
	return min
}

// Lower is the form payment processors expect.
func (c Code) Lower() string {
	return strings.ToLower(string(c))
}

func (c Code) IsPrimary() bool {
	return c == Primary
}

func (c Code) Valid() bool {
	return c == LKR || c == JPY
}

func (c Code) symbol() string {
	if c == JPY {
		return "¥"
	}
	return "Rs. "
}

// Format renders minor units for display, e.g. "Rs. 1500.00" or "¥1500".
func (c Code) Format(amount int64) string {
	exp := c.Exponent()
	return c.symbol() + decimal.New(amount, -exp).StringFixed(exp)
}

// ForCountry picks the default shopper currency for an ISO country code.
func ForCountry(country string) Code {
	if strings.EqualFold(strings.TrimSpace(country), "JP") {
		return JPY
	}
	return LKR
}

// Context is a shopper's display currency selection. The rate is informational:
// order totals always come from per-currency list prices, never from conversion.
// A Context is not safe for concurrent use.
type Context struct {
	active        Code
	secondaryRate decimal.Decimal
}

// NewContext starts in the primary currency. secondaryRate converts one unit of
// PRIMARY into SECONDARY.
func NewContext(secondaryRate decimal.Decimal) *Context {
	return &Context{active: Primary, secondaryRate: secondaryRate}
}

// ParseRate parses a configured display rate.
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid currency rate %q: %w", s, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("currency rate must be positive, got %s", s)
	}
	return rate, nil
}

// SetCurrency switches the active currency. Setting the current currency again is a no-op.
func (c *Context) SetCurrency(code string) error {
	parsed, err := ParseCode(code)
	if err != nil {
		return err
	}
	c.active = parsed
	return nil
}

func (c *Context) Active() Code {
	return c.active
}

// Rate is the informational rate from PRIMARY to the active currency.
func (c *Context) Rate() decimal.Decimal {
	if c.active == Secondary {
		return c.secondaryRate
	}
	return decimal.NewFromInt(1)
}

// PriceOf selects the list price for the active currency.
func (c *Context) PriceOf(primary, secondary int64) int64 {
	if c.active == Secondary {
		return secondary
	}
	return primary
}

func (c *Context) Format(amount int64) string {
	return c.active.Format(amount)
}

// DisplayConvert converts a PRIMARY minor-unit amount into the active currency,
// in major units, rounded to the active currency's precision.
func (c *Context) DisplayConvert(primaryMinor int64) decimal.Decimal {
	major := decimal.New(primaryMinor, -Primary.Exponent())
	return major.Mul(c.Rate()).Round(c.active.Exponent())
}
