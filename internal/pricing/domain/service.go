// Package domain defines the pricing engine surface: fee computation for
// domain create, renew, restore and transfer.
package domain

import (
	"context"
	"errors"
	"time"

	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	feedomain "github.com/zonekeeper/registro/internal/fee/domain"
	tokendomain "github.com/zonekeeper/registro/internal/token/domain"
)

// CreateOptions carries the create-time modifiers that influence price.
type CreateOptions struct {
	Years           int
	IsAnchorTenant  bool
	IsSunriseCreate bool
	Token           *tokendomain.AllocationToken
}

type Service interface {
	// CreatePrice computes the fees for registering domainName for the
	// given number of years as of asOf.
	CreatePrice(ctx context.Context, tld, domainName string, asOf time.Time, opts CreateOptions) (feedomain.FeesAndCredits, error)

	// RenewPrice computes the fees for renewing domainName. A non-nil
	// recurrence selects the renewal-price behavior recorded on the
	// domain's autorenewal; nil means the domain is still in its create
	// flow and standard premium-aware pricing applies.
	RenewPrice(ctx context.Context, tld, domainName string, asOf time.Time, years int, recurrence *billingdomain.Recurrence, token *tokendomain.AllocationToken) (feedomain.FeesAndCredits, error)

	// RestorePrice computes the fees for restoring a domain out of its
	// redemption grace period. Expired domains additionally pay one
	// renewal year.
	RestorePrice(ctx context.Context, tld, domainName string, asOf time.Time, isExpired bool) (feedomain.FeesAndCredits, error)

	// TransferPrice prices a transfer as one renewal year repackaged
	// under the transfer fee type.
	TransferPrice(ctx context.Context, tld, domainName string, asOf time.Time, recurrence *billingdomain.Recurrence) (feedomain.FeesAndCredits, error)
}

var (
	ErrNonPositiveYears           = errors.New("non_positive_years")
	ErrTokenInvalidForPremiumName = errors.New("allocation_token_invalid_for_premium_name")
	// ErrMissingSpecifiedPrice means a SPECIFIED recurrence has no price
	// snapshot. That is data corruption, not caller error.
	ErrMissingSpecifiedPrice  = errors.New("missing_specified_renewal_price")
	ErrUnknownTLD             = errors.New("unknown_tld")
	ErrInvalidRenewalBehavior = errors.New("invalid_renewal_price_behavior")
	// ErrCurrencyMismatch means a premium-list entry is denominated in a
	// different currency than its TLD. Data corruption, not caller error.
	ErrCurrencyMismatch = errors.New("premium_currency_mismatch")
)
