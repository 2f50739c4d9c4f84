// Package domain contains allocation-token models. A token can discount a
// create/renew or force an alternative pricing behavior altogether.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RegistrationBehavior alters how a registration using this token is
// treated end to end.
type RegistrationBehavior string

const (
	RegistrationBehaviorDefault RegistrationBehavior = "DEFAULT"
	// RegistrationBehaviorAnchorTenant bypasses premium pricing entirely.
	RegistrationBehaviorAnchorTenant RegistrationBehavior = "ANCHOR_TENANT"
)

// RenewalBehavior overrides the renewal price rule for recurrences
// created through this token.
type RenewalBehavior string

const (
	RenewalBehaviorDefault    RenewalBehavior = "DEFAULT"
	RenewalBehaviorNonPremium RenewalBehavior = "NONPREMIUM"
	RenewalBehaviorSpecified  RenewalBehavior = "SPECIFIED"
)

// AllocationToken is a registry-issued code that discounts or redirects
// pricing at create or renew time.
type AllocationToken struct {
	Token string `gorm:"primaryKey;type:text"`

	// DiscountFraction in [0,1] applied to the first DiscountYears years.
	DiscountFraction float64 `gorm:"not null;default:0"`
	DiscountYears    int     `gorm:"not null;default:0"`
	// DiscountPremiums must be set for the token to be usable on a
	// premium name.
	DiscountPremiums bool `gorm:"not null;default:false"`

	RegistrationBehavior RegistrationBehavior `gorm:"type:text;not null;default:'DEFAULT'"`
	RenewalBehavior      RenewalBehavior      `gorm:"type:text;not null;default:'DEFAULT'"`

	RedemptionDomainID *snowflake.ID `gorm:""`
	RedemptionTime     *time.Time    `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AllocationToken) TableName() string { return "allocation_tokens" }

// Discounts reports whether the token carries a usable discount.
func (t AllocationToken) Discounts() bool {
	return t.DiscountFraction > 0 && t.DiscountYears > 0
}
