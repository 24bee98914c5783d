package booking

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Quantity is an optional non-negative decimal such as hours worked or an hourly rate.
// The zero value is unset.
type Quantity struct {
	value float64
	set   bool
}

// NewQuantity returns a set quantity, or an unset one for NaN, infinite or negative input.
func NewQuantity(v float64) Quantity {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Quantity{}
	}
	return Quantity{value: v, set: true}
}

// QuantityFromPtr converts a nullable column value.
func QuantityFromPtr(v *float64) Quantity {
	if v == nil {
		return Quantity{}
	}
	return NewQuantity(*v)
}

// ParseQuantity parses a decimal string. Blank or non-numeric input yields an unset quantity.
func ParseQuantity(s string) Quantity {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Quantity{}
	}
	return NewQuantity(v)
}

// IsSet reports whether a value is present.
func (q Quantity) IsSet() bool { return q.set }

// Float64 returns the value, zero when unset.
func (q Quantity) Float64() float64 {
	if !q.set {
		return 0
	}
	return q.value
}

// Ptr returns the value for a nullable column.
func (q Quantity) Ptr() *float64 {
	if !q.set {
		return nil
	}
	v := q.value
	return &v
}

// MarshalJSON encodes an unset quantity as null.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.set {
		return []byte("null"), nil
	}
	return json.Marshal(q.value)
}

// UnmarshalJSON accepts a number or a numeric string. Anything else decodes as unset.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*q = NewQuantity(v)
	case string:
		*q = ParseQuantity(v)
	default:
		*q = Quantity{}
	}
	return nil
}

// Money is an amount in pence.
type Money int64

// Pounds returns the amount in major units.
func (m Money) Pounds() float64 { return float64(m) / 100 }

// String formats the amount as pounds sterling, e.g. "£60.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s£%d.%02d", sign, v/100, v%100)
}

// Calculate returns hours × rate in pence. Unset inputs count as zero.
func Calculate(hours, rate Quantity) Money {
	return Money(math.Round(hours.Float64() * rate.Float64() * 100))
}

// PricingStrategy prices a booking from its hours and the carer's rate.
type PricingStrategy interface {
	Calculate(params PricingParams) Money
}

// PricingParams holds the inputs for price calculation.
type PricingParams struct {
	Hours Quantity
	Rate  Quantity
}

// HourlyPricingStrategy charges hours × rate.
type HourlyPricingStrategy struct{}

// NewHourlyPricingStrategy creates a new HourlyPricingStrategy.
func NewHourlyPricingStrategy() *HourlyPricingStrategy {
	return &HourlyPricingStrategy{}
}

// Calculate implements PricingStrategy.
func (s *HourlyPricingStrategy) Calculate(params PricingParams) Money {
	return Calculate(params.Hours, params.Rate)
}
