// Package domain contains premium-name pricing models. A premium label is
// priced above the TLD's standard schedule; lookups answer "is this label
// premium as of this date, and at what create/renew cost".
package domain

import (
	"context"
	"errors"
	"time"
)

// PremiumLabel is one priced entry of a TLD's premium list.
type PremiumLabel struct {
	TLD             string    `gorm:"type:text;not null;uniqueIndex:ux_premium_label,priority:1"`
	Label           string    `gorm:"type:text;not null;uniqueIndex:ux_premium_label,priority:2"`
	Currency        string    `gorm:"type:text;not null"`
	CreateCostMinor int64     `gorm:"not null"`
	RenewCostMinor  int64     `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PremiumLabel) TableName() string { return "premium_labels" }

// Prices is the answer to a premium lookup. For non-premium labels the
// costs are the TLD's standard schedule resolved at the query date.
type Prices struct {
	IsPremium       bool
	Currency        string
	CreateCostMinor int64
	RenewCostMinor  int64
}

// Service resolves create/renew pricing for a label as of a date.
type Service interface {
	GetPrices(ctx context.Context, tld, label string, asOf time.Time) (Prices, error)
}

// Invalidator is implemented by caching lookups that support explicit
// eviction after a premium-list import.
type Invalidator interface {
	Invalidate(tld string)
}

var ErrUnknownTLD = errors.New("unknown_tld")
