// Package tldconfig holds per-TLD pricing configuration: currency, cost
// schedules, grace periods and sunrise/EAP parameters. The config is
// loaded from a YAML file with hot reload, falling back to built-in
// defaults for local use.
package tldconfig

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScheduledCost is one step of an effective-dated cost schedule.
type ScheduledCost struct {
	From        time.Time
	AmountMinor int64
}

// TLD is the compiled pricing configuration for a single top-level domain.
type TLD struct {
	Name             string
	Currency         string
	CreateCostMinor  int64
	RestoreCostMinor int64
	// RenewSchedule is the standard (non-premium) renew cost over time,
	// sorted ascending by From. The entry in effect at a given date is
	// the last one at or before it.
	RenewSchedule []ScheduledCost
	// EAPSchedule is the early-access-period fee over time; an entry with
	// amount zero ends the period.
	EAPSchedule []ScheduledCost

	AutoRenewGracePeriod  time.Duration
	RedemptionGracePeriod time.Duration
	SunriseDiscount       float64
}

// RenewCostMinorAt resolves the standard renew cost in effect at t.
func (t TLD) RenewCostMinorAt(at time.Time) int64 {
	var cost int64
	for _, step := range t.RenewSchedule {
		if step.From.After(at) {
			break
		}
		cost = step.AmountMinor
	}
	return cost
}

// EAPFeeMinorAt resolves the early-access fee in effect at t, zero when
// no period applies.
func (t TLD) EAPFeeMinorAt(at time.Time) int64 {
	var fee int64
	for _, step := range t.EAPSchedule {
		if step.From.After(at) {
			break
		}
		fee = step.AmountMinor
	}
	return fee
}

// Registry is the full TLD table keyed by TLD name.
type Registry struct {
	TLDs map[string]TLD
}

// Get looks up a TLD by name.
func (r Registry) Get(name string) (TLD, bool) {
	tld, ok := r.TLDs[strings.ToLower(strings.TrimSpace(name))]
	return tld, ok
}

// DefaultRegistry returns a single example TLD so a fresh checkout is
// usable without a config file.
func DefaultRegistry() Registry {
	return Registry{TLDs: map[string]TLD{
		"example": {
			Name:             "example",
			Currency:         "USD",
			CreateCostMinor:  1300,
			RestoreCostMinor: 1700,
			RenewSchedule: []ScheduledCost{
				{From: time.Time{}, AmountMinor: 1100},
			},
			AutoRenewGracePeriod:  45 * 24 * time.Hour,
			RedemptionGracePeriod: 30 * 24 * time.Hour,
			SunriseDiscount:       0.15,
		},
	}}
}

// Raw YAML shapes; dates are RFC3339 strings, amounts minor units.

type rawScheduledCost struct {
	From        string `mapstructure:"from"`
	AmountMinor int64  `mapstructure:"amountMinor"`
}

type rawTLD struct {
	Currency            string             `mapstructure:"currency"`
	CreateCostMinor     int64              `mapstructure:"createCostMinor"`
	RestoreCostMinor    int64              `mapstructure:"restoreCostMinor"`
	RenewSchedule       []rawScheduledCost `mapstructure:"renewSchedule"`
	EAPSchedule         []rawScheduledCost `mapstructure:"eapSchedule"`
	AutoRenewGraceDays  int                `mapstructure:"autoRenewGraceDays"`
	RedemptionGraceDays int                `mapstructure:"redemptionGraceDays"`
	SunriseDiscount     float64            `mapstructure:"sunriseDiscount"`
}

// Holder exposes the current Registry and swaps it atomically on reload.
type Holder struct {
	current atomic.Value // holds Registry
}

// NewHolder reads tlds.yml (volume mount, /etc, or cwd) and watches it
// for changes. Missing file falls back to DefaultRegistry.
func NewHolder() (*Holder, error) {
	v := viper.New()

	v.SetConfigName("tlds")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/registro/config")
	v.AddConfigPath("/etc/registro")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REGISTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &Holder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultRegistry())
		return holder, nil
	}

	registry, err := decodeRegistry(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(registry)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRegistry(v)
		if err != nil {
			log.Printf("[tld-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[tld-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticHolder wraps a fixed Registry; used by tests and tools.
func NewStaticHolder(registry Registry) *Holder {
	holder := &Holder{}
	holder.current.Store(registry)
	return holder
}

func (h *Holder) Get() Registry {
	return h.current.Load().(Registry)
}

func decodeRegistry(v *viper.Viper) (Registry, error) {
	var raw map[string]rawTLD
	if err := v.UnmarshalKey("tlds", &raw); err != nil {
		return Registry{}, err
	}
	if len(raw) == 0 {
		return Registry{}, errors.New("tlds cannot be empty")
	}

	registry := Registry{TLDs: make(map[string]TLD, len(raw))}
	for name, rt := range raw {
		tld, err := compileTLD(strings.ToLower(name), rt)
		if err != nil {
			return Registry{}, fmt.Errorf("tld %q: %w", name, err)
		}
		registry.TLDs[tld.Name] = tld
	}
	return registry, nil
}

func compileTLD(name string, raw rawTLD) (TLD, error) {
	if raw.Currency == "" {
		return TLD{}, errors.New("currency is required")
	}
	renew, err := compileSchedule(raw.RenewSchedule)
	if err != nil {
		return TLD{}, fmt.Errorf("renewSchedule: %w", err)
	}
	if len(renew) == 0 {
		return TLD{}, errors.New("renewSchedule cannot be empty")
	}
	eap, err := compileSchedule(raw.EAPSchedule)
	if err != nil {
		return TLD{}, fmt.Errorf("eapSchedule: %w", err)
	}
	if raw.SunriseDiscount < 0 || raw.SunriseDiscount >= 1 {
		return TLD{}, errors.New("sunriseDiscount must be in [0,1)")
	}

	autoRenewGraceDays := raw.AutoRenewGraceDays
	if autoRenewGraceDays <= 0 {
		autoRenewGraceDays = 45
	}
	redemptionGraceDays := raw.RedemptionGraceDays
	if redemptionGraceDays <= 0 {
		redemptionGraceDays = 30
	}

	return TLD{
		Name:                  name,
		Currency:              strings.ToUpper(raw.Currency),
		CreateCostMinor:       raw.CreateCostMinor,
		RestoreCostMinor:      raw.RestoreCostMinor,
		RenewSchedule:         renew,
		EAPSchedule:           eap,
		AutoRenewGracePeriod:  time.Duration(autoRenewGraceDays) * 24 * time.Hour,
		RedemptionGracePeriod: time.Duration(redemptionGraceDays) * 24 * time.Hour,
		SunriseDiscount:       raw.SunriseDiscount,
	}, nil
}

func compileSchedule(raw []rawScheduledCost) ([]ScheduledCost, error) {
	out := make([]ScheduledCost, 0, len(raw))
	for _, step := range raw {
		from := time.Time{}
		if strings.TrimSpace(step.From) != "" {
			parsed, err := time.Parse(time.RFC3339, step.From)
			if err != nil {
				return nil, fmt.Errorf("bad from %q: %w", step.From, err)
			}
			from = parsed.UTC()
		}
		if step.AmountMinor < 0 {
			return nil, fmt.Errorf("negative amount %d", step.AmountMinor)
		}
		out = append(out, ScheduledCost{From: from, AmountMinor: step.AmountMinor})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out, nil
}
