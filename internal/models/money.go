package models

import "github.com/shopspring/decimal"

// Money holds amounts in local and foreign currency. Normalized values are never negative.
type Money struct {
	Local   float64 `json:"local"`
	Foreign float64 `json:"foreign"`
}

// NewMoney builds a Money from decimals, taking absolute values
func NewMoney(local, foreign decimal.Decimal) Money {
	return Money{
		Local:   local.Abs().InexactFloat64(),
		Foreign: foreign.Abs().InexactFloat64(),
	}
}

// Total returns local plus foreign, summed exactly
func (m Money) Total() float64 {
	return decimal.NewFromFloat(m.Local).Add(decimal.NewFromFloat(m.Foreign)).InexactFloat64()
}

// Add returns the component-wise sum of m and o
func (m Money) Add(o Money) Money {
	return Money{
		Local:   decimal.NewFromFloat(m.Local).Add(decimal.NewFromFloat(o.Local)).InexactFloat64(),
		Foreign: decimal.NewFromFloat(m.Foreign).Add(decimal.NewFromFloat(o.Foreign)).InexactFloat64(),
	}
}

// IsZero reports whether both components are zero
func (m Money) IsZero() bool {
	return m.Local == 0 && m.Foreign == 0
}
