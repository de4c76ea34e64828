// Package amount provides the fixed-point monetary type used throughout the
// ledger core.
//
// The original prototype kept balances as IEEE-754 floats, which spec §9
// flags as a consensus-affecting defect: float addition is not associative,
// so two nodes can derive different fee totals from the same transaction
// set. This implementation keeps every internal computation on
// shopspring/decimal and only drops to float64 at the JSON wire boundary,
// where the external interface (spec §6) is specified as a plain number.
package amount

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places the ledger preserves. Eight matches
// the precision the reference miner reward and transaction amounts are
// expressed at.
const Scale = 8

// Amount wraps decimal.Decimal so arithmetic on balances, fees, and rewards
// never touches binary floating point.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// FromFloat64 builds an Amount from a wire-format float64, rounding to Scale
// decimal places.
func FromFloat64(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).Round(Scale)}
}

// FromString parses a decimal literal such as "10.5".
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{d: d.Round(Scale)}, nil
}

// Float64 converts back to the wire format used by JSON payloads.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) LessThan(b Amount) bool           { return a.d.LessThan(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) IsZero() bool                     { return a.d.IsZero() }
func (a Amount) IsNegative() bool                 { return a.d.IsNegative() }

func (a Amount) String() string { return a.d.StringFixed(Scale) }

// MarshalJSON emits the wire format: a plain JSON number, matching spec §6's
// canonical transaction and block JSON shapes.
func (a Amount) MarshalJSON() ([]byte, error) {
	f, _ := a.d.Float64()
	return json.Marshal(f)
}

// UnmarshalJSON accepts the wire format's plain JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("unmarshal amount: %w", err)
	}
	a.d = decimal.NewFromFloat(f).Round(Scale)
	return nil
}

// Sum adds a list of amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
