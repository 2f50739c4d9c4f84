package tldconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()
	tld, ok := registry.Get("example")
	require.True(t, ok)
	assert.Equal(t, "USD", tld.Currency)
	assert.Equal(t, 45*24*time.Hour, tld.AutoRenewGracePeriod)
	assert.Equal(t, int64(1100), tld.RenewCostMinorAt(time.Now().UTC()))

	_, ok = registry.Get("missing")
	assert.False(t, ok)
}

func TestRenewSchedule_Resolution(t *testing.T) {
	tld := TLD{
		RenewSchedule: []ScheduledCost{
			{From: time.Time{}, AmountMinor: 800},
			{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 900},
		},
	}

	before := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(800), tld.RenewCostMinorAt(before))
	assert.Equal(t, int64(900), tld.RenewCostMinorAt(after))
}

func TestEAPSchedule_EndsAtZero(t *testing.T) {
	launch := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tld := TLD{
		EAPSchedule: []ScheduledCost{
			{From: launch, AmountMinor: 500000},
			{From: launch.Add(24 * time.Hour), AmountMinor: 100000},
			{From: launch.Add(14 * 24 * time.Hour), AmountMinor: 0},
		},
	}

	assert.Equal(t, int64(0), tld.EAPFeeMinorAt(launch.Add(-time.Hour)))
	assert.Equal(t, int64(500000), tld.EAPFeeMinorAt(launch))
	assert.Equal(t, int64(100000), tld.EAPFeeMinorAt(launch.Add(48*time.Hour)))
	assert.Equal(t, int64(0), tld.EAPFeeMinorAt(launch.Add(30*24*time.Hour)))
}

func TestCompileTLD_Validation(t *testing.T) {
	_, err := compileTLD("bad", rawTLD{})
	assert.Error(t, err)

	_, err = compileTLD("bad", rawTLD{Currency: "usd"})
	assert.Error(t, err) // empty renew schedule

	tld, err := compileTLD("good", rawTLD{
		Currency:      "usd",
		RenewSchedule: []rawScheduledCost{{AmountMinor: 800}},
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", tld.Currency)
	assert.Equal(t, 30*24*time.Hour, tld.RedemptionGracePeriod)
}
