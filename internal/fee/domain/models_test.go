package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFraction_HalfEven(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		fraction float64
		want     int64
	}{
		{"exact", 1000, 0.5, 500},
		{"integral_result", 1250, 0.5, 625},
		{"tie_rounds_down_to_even", 125, 0.5, 62}, // 62.5 -> 62
		{"tie_rounds_up_to_even", 135, 0.5, 68},   // 67.5 -> 68
		{"zero_fraction", 999, 0, 0},
		{"full_fraction", 999, 1, 999},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyFraction(tc.amount, tc.fraction)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFeesAndCredits_Total(t *testing.T) {
	fees := FeesAndCredits{Currency: "USD"}
	fees.Append(Fee{Type: FeeTypeRestore, AmountMinor: 2000})
	fees.Append(Fee{Type: FeeTypeRenew, AmountMinor: 1000})

	assert.Equal(t, int64(3000), fees.TotalMinor())
	assert.False(t, fees.HasPremium())
	assert.Len(t, fees.FeesOfType(FeeTypeRenew), 1)
}
