// Package domain contains the fee value objects shared by pricing and
// billing. Amounts are integer minor units (cents) in the TLD's currency.
package domain

import "math"

// FeeType tags a single fee line with the operation it charges for.
type FeeType string

const (
	FeeTypeCreate   FeeType = "CREATE"
	FeeTypeRenew    FeeType = "RENEW"
	FeeTypeRestore  FeeType = "RESTORE"
	FeeTypeTransfer FeeType = "TRANSFER"
	FeeTypeEAP      FeeType = "EAP"
)

// Fee is one line item of a pricing computation.
type Fee struct {
	Type        FeeType
	Description string
	AmountMinor int64
	// Premium marks lines priced off a premium-name schedule. SPECIFIED
	// and NONPREMIUM renewals never set it.
	Premium bool
}

// FeesAndCredits aggregates the fee lines for a single operation. It is
// derived per call and never persisted.
type FeesAndCredits struct {
	Currency string
	Fees     []Fee
}

func (f *FeesAndCredits) Append(fee Fee) {
	f.Fees = append(f.Fees, fee)
}

// TotalMinor sums every line item.
func (f FeesAndCredits) TotalMinor() int64 {
	var total int64
	for _, fee := range f.Fees {
		total += fee.AmountMinor
	}
	return total
}

// HasPremium reports whether any line was priced at a premium rate.
func (f FeesAndCredits) HasPremium() bool {
	for _, fee := range f.Fees {
		if fee.Premium {
			return true
		}
	}
	return false
}

// FeesOfType returns the line items with the given type, in order.
func (f FeesAndCredits) FeesOfType(t FeeType) []Fee {
	var out []Fee
	for _, fee := range f.Fees {
		if fee.Type == t {
			out = append(out, fee)
		}
	}
	return out
}

// ApplyFraction multiplies a minor-unit amount by a fraction, rounding
// half-even at minor-unit precision.
func ApplyFraction(amountMinor int64, fraction float64) int64 {
	return int64(math.RoundToEven(float64(amountMinor) * fraction))
}
