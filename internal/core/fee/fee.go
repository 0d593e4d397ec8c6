// Package fee computes the processor fee charged on an amount and what is
// left for the merchant.
package fee

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Descriptor is a fee structure. Min and Max are optional bounds on the
// charged fee; a nil or zero bound is not applied.
type Descriptor struct {
	Name    string
	Percent decimal.Decimal
	Min     *decimal.Decimal
	Max     *decimal.Decimal
	Plus    decimal.Decimal
}

// Breakdown is the result of applying a Descriptor to an amount. The applied
// inputs are echoed back for audit.
type Breakdown struct {
	Name      string           `json:"name,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	NetAmount decimal.Decimal  `json:"net_amount"`
	Charged   decimal.Decimal  `json:"charged"`
	FeeAmount decimal.Decimal  `json:"fee_amount"`
	Percent   decimal.Decimal  `json:"applied_percent"`
	Plus      decimal.Decimal  `json:"applied_plus"`
	Min       *decimal.Decimal `json:"applied_min,omitempty"`
	Max       *decimal.Decimal `json:"applied_max,omitempty"`
}

// Compute returns nil when the descriptor has no percent rate.
func Compute(amount decimal.Decimal, d Descriptor) *Breakdown {
	if d.Percent.IsZero() {
		return nil
	}

	feeAmount := amount.Mul(d.Percent).Div(hundred).Add(d.Plus)
	charged := feeAmount
	switch {
	case isSet(d.Min) && feeAmount.LessThan(*d.Min):
		charged = *d.Min
	case isSet(d.Max) && feeAmount.GreaterThan(*d.Max):
		charged = *d.Max
	}

	return &Breakdown{
		Name:      d.Name,
		Amount:    amount,
		NetAmount: amount.Sub(charged),
		Charged:   charged,
		FeeAmount: feeAmount,
		Percent:   d.Percent,
		Plus:      d.Plus,
		Min:       d.Min,
		Max:       d.Max,
	}
}

func isSet(v *decimal.Decimal) bool {
	return v != nil && !v.IsZero()
}
