package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of fraction digits kept internally and persisted.
	Scale int32 = 6
	// DisplayScale is the number of fraction digits used at external boundaries.
	DisplayScale int32 = 2
)

var hundred = decimal.NewFromInt(100)

// Money is a single-currency fixed-point amount.
//
// Arithmetic is exact; values are normalised to Scale digits when constructed
// and rounded half-up to DisplayScale only by Round2 and when marshalled to JSON.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// New wraps a decimal, rounding it half-up to Scale digits.
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromString parses an amount such as "113.00".
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return New(d), nil
}

// MustParse is FromString for constants and tests.
func MustParse(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return New(decimal.NewFromInt(cents).Div(hundred))
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return New(m.d.Add(o.d)) }
func (m Money) Sub(o Money) Money { return New(m.d.Sub(o.d)) }

// Percent returns rate% of m, e.g. m.Percent(2.9) for 2.9%.
func (m Money) Percent(rate decimal.Decimal) Money {
	return New(m.d.Mul(rate).Div(hundred))
}

// Round2 rounds half-up (away from zero) to DisplayScale digits.
func (m Money) Round2() Money {
	return Money{d: m.d.Round(DisplayScale)}
}

func (m Money) Cmp(o Money) int     { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool  { return m.d.Equal(o.d) }
func (m Money) IsZero() bool        { return m.d.IsZero() }
func (m Money) IsNegative() bool    { return m.d.IsNegative() }
func (m Money) IsPositive() bool    { return m.d.IsPositive() }
func (m Money) String() string      { return m.d.StringFixed(DisplayScale) }
func (m Money) StringExact() string { return m.d.StringFixed(Scale) }

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.d)
	}
	return New(total)
}

// MarshalJSON renders the amount rounded to two digits as a JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Round2().d.StringFixed(DisplayScale))
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = New(d)
	return nil
}

// Scan implements sql.Scanner so NUMERIC columns scan directly into Money.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer; amounts are persisted at full Scale.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(Scale), nil
}
