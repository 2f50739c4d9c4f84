// Package domain contains persistence models for billing obligations and
// the one-time events materialized from them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RenewalPriceBehavior governs which pricing rule applies when a
// recurrence is expanded or explicitly renewed.
type RenewalPriceBehavior string

const (
	// RenewalPriceBehaviorDefault uses the TLD schedule, premium-aware.
	RenewalPriceBehaviorDefault RenewalPriceBehavior = "DEFAULT"
	// RenewalPriceBehaviorSpecified charges the price snapshotted on the
	// recurrence at creation, ignoring premium status and discounts.
	RenewalPriceBehaviorSpecified RenewalPriceBehavior = "SPECIFIED"
	// RenewalPriceBehaviorNonPremium charges the standard rate even for
	// premium names.
	RenewalPriceBehaviorNonPremium RenewalPriceBehavior = "NONPREMIUM"
)

// Reason tags a one-time event with the operation that produced it.
type Reason string

const (
	ReasonCreate   Reason = "CREATE"
	ReasonRenew    Reason = "RENEW"
	ReasonRestore  Reason = "RESTORE"
	ReasonTransfer Reason = "TRANSFER"
)

// FlagSynthetic marks events materialized by the expansion engine rather
// than written synchronously by an EPP flow.
const FlagSynthetic = "SYNTHETIC"

// Recurrence is a domain's open-ended yearly autorenewal obligation.
// One instance fires every year on the anchor's month/day until
// RecurrenceEndTime; the expansion engine turns fired instances into
// BillingEvents and advances RecurrenceLastExpansion.
type Recurrence struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DomainID    snowflake.ID `gorm:"not null;index"`
	RegistrarID string       `gorm:"type:text;not null"`

	// EventTime is the anchor: the first date-of-year the obligation fires.
	EventTime time.Time `gorm:"not null"`
	// RecurrenceEndTime is the exclusive bound after which the obligation
	// no longer fires. EndOfTime when unbounded.
	RecurrenceEndTime time.Time `gorm:"not null"`
	// RecurrenceLastExpansion is the watermark: the latest instance date
	// already materialized. No instance at or before it may be rewritten.
	RecurrenceLastExpansion time.Time `gorm:"not null"`

	RenewalPriceBehavior RenewalPriceBehavior `gorm:"type:text;not null;default:'DEFAULT'"`
	// RenewalPriceMinor is set only for SPECIFIED behavior; an immutable
	// per-year snapshot taken when the recurrence was created.
	RenewalPriceMinor    *int64         `gorm:""`
	RenewalPriceCurrency *string        `gorm:"type:text"`
	Flags                datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Recurrence) TableName() string { return "recurrences" }

// BillingEvent is a single materialized charge. Never mutated after
// creation; reversals within a grace period write cancellation records
// instead of deleting.
type BillingEvent struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DomainID    snowflake.ID `gorm:"not null;index"`
	RegistrarID string       `gorm:"type:text;not null"`
	Reason      Reason       `gorm:"type:text;not null"`

	// EventTime is when the obligation fired; BillingTime is when the
	// charge becomes collectible, after any grace period.
	EventTime   time.Time `gorm:"not null;uniqueIndex:ux_billing_event_recurrence_instance,priority:2"`
	BillingTime time.Time `gorm:"not null;index"`

	CostMinor   int64  `gorm:"not null"`
	Currency    string `gorm:"type:text;not null"`
	PeriodYears int    `gorm:"not null"`

	Flags datatypes.JSON `gorm:"type:jsonb"`
	// CancellationMatchingRecurrenceID points at the recurrence that
	// spawned a synthetic event. Together with EventTime it forms the
	// exactly-once constraint for expansion.
	CancellationMatchingRecurrenceID *snowflake.ID `gorm:"uniqueIndex:ux_billing_event_recurrence_instance,priority:1"`
	SyntheticCreationTime            *time.Time    `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingEvent) TableName() string { return "billing_events" }
